// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package puttykey normalizes private keys written in PuTTY's .ppk container
// format into standard OpenSSH PEM text. Detection is structural, based on
// the PPK header line, never on file extensions.
package puttykey

import (
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/kayrus/putty"
	"golang.org/x/crypto/ssh"

	"github.com/toeirei/keykeeper/internal/security"
)

// headerPrefix starts every PPK file, e.g. "PuTTY-User-Key-File-2: ssh-rsa".
const headerPrefix = "PuTTY-User-Key-File-"

// IsPuTTY reports whether keyText looks like a PuTTY .ppk key.
func IsPuTTY(keyText string) bool {
	return strings.HasPrefix(strings.TrimSpace(keyText), headerPrefix)
}

// Normalize converts a PPK key into an unencrypted OpenSSH PEM block.
// Text that is not in PPK format is returned unchanged, on the assumption
// that it is already something standard SSH tooling understands.
//
// An encrypted PPK is decrypted with the supplied passphrase first. The
// result is re-encoded without a passphrase; consumers that received the
// passphrase alongside the key apply it themselves, and when no passphrase
// was stored there is nothing to protect in the first place.
func Normalize(keyText string, passphrase security.Secret) (string, error) {
	if !IsPuTTY(keyText) {
		return keyText, nil
	}

	ppk, err := putty.New([]byte(keyText))
	if err != nil {
		return "", fmt.Errorf("parse ppk: %w", err)
	}

	var password []byte
	if ppk.Encryption != "none" {
		if passphrase.IsEmpty() {
			return "", fmt.Errorf("ppk key %q is encrypted and no passphrase is stored", ppk.Comment)
		}
		password = passphrase.Bytes()
		defer security.Wipe(password)
	}

	raw, err := ppk.ParseRawPrivateKey(password)
	if err != nil {
		return "", fmt.Errorf("decrypt ppk: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(raw, ppk.Comment)
	if err != nil {
		// Key algorithms OpenSSH encoding has no support for, DSA mainly.
		return "", fmt.Errorf("re-encode ppk as openssh: %w", err)
	}
	return string(pem.EncodeToMemory(block)), nil
}

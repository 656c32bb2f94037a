// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey contains small helpers for judging SSH key material, used
// when pinning host keys.
package sshkey

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// CheckHostKeyAlgorithm returns a warning when the given host key uses an
// algorithm that should no longer be trusted for new pins, or an empty
// string when the algorithm is fine. The caller decides whether to show it;
// pinning is never blocked on the algorithm alone.
func CheckHostKeyAlgorithm(key ssh.PublicKey) string {
	switch key.Type() {
	case ssh.KeyAlgoDSA:
		return fmt.Sprintf("WARNING: host key uses %s, which is insecure and disabled by modern OpenSSH. Ask the host operator for an ed25519 key.", key.Type())
	case ssh.KeyAlgoRSA:
		return fmt.Sprintf("WARNING: host key uses %s. Prefer an ed25519 host key where available.", key.Type())
	}
	return ""
}

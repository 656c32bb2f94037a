// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package sshcred

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/toeirei/keykeeper/internal/security"
)

// SignerForKey parses one resolved key text into an ssh.Signer, applying
// the passphrase when the key turns out to be encrypted.
func SignerForKey(keyText string, passphrase security.Secret) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey([]byte(keyText))
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && !passphrase.IsEmpty() {
		return ssh.ParsePrivateKeyWithPassphrase([]byte(keyText), passphrase.Bytes())
	}
	return nil, err
}

// RawKeyForKey parses one resolved key text into the underlying crypto
// private key, for consumers like ssh-agent that want the key itself
// rather than a signer.
func RawKeyForKey(keyText string, passphrase security.Secret) (interface{}, error) {
	raw, err := ssh.ParseRawPrivateKey([]byte(keyText))
	if err == nil {
		return raw, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && !passphrase.IsEmpty() {
		return ssh.ParseRawPrivateKeyWithPassphrase([]byte(keyText), passphrase.Bytes())
	}
	return nil, err
}

// Signers parses every resolved key of the credential. Keys that fail to
// parse are skipped, mirroring the per-key isolation of resolution itself.
// An error is returned only when the credential resolves no usable key at
// all.
func (c *Credential) Signers() ([]ssh.Signer, error) {
	keys := c.Keys()
	signers := make([]ssh.Signer, 0, len(keys))
	for _, keyText := range keys {
		signer, err := SignerForKey(keyText, c.passphrase)
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("credential %s has no usable private key", c.id)
	}
	return signers, nil
}

// PublicKeyLine renders the authorized_keys line for the credential's
// primary key, with the credential ID as the comment.
func (c *Credential) PublicKeyLine() (string, error) {
	key := c.PrimaryKey()
	if key == "" {
		return "", fmt.Errorf("credential %s resolves no private keys", c.id)
	}
	signer, err := SignerForKey(key, c.passphrase)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	line := string(ssh.MarshalAuthorizedKey(signer.PublicKey()))
	// MarshalAuthorizedKey terminates the line; splice the comment in
	// before the newline.
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return fmt.Sprintf("%s %s\n", line, c.id), nil
}

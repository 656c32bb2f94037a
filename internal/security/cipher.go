// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// blobVersion is the current at-rest blob format version.
	blobVersion = 1

	keyLength   = 32 // AES-256
	saltLength  = 32
	nonceLength = 12 // GCM standard nonce size

	// kdfIterations is the PBKDF2-SHA256 work factor for deriving the
	// per-blob key from the master key.
	kdfIterations = 200000
)

var (
	ErrEmptyMasterKey     = errors.New("master key cannot be empty")
	ErrBlobTooShort       = errors.New("encrypted blob too short")
	ErrUnsupportedVersion = errors.New("unsupported blob version")
)

// Cipher encrypts and decrypts at-rest secrets with AES-256-GCM. Each blob
// carries its own random salt, so the PBKDF2-derived key differs per blob and
// identical plaintexts never produce identical ciphertexts.
//
// Blob layout: [1-byte version][32-byte salt][12-byte nonce][ciphertext+tag].
type Cipher struct {
	master Secret
}

// NewCipher builds a Cipher around the given master key.
func NewCipher(master Secret) (*Cipher, error) {
	if master.IsEmpty() {
		return nil, ErrEmptyMasterKey
	}
	return &Cipher{master: FromBytes(master)}, nil
}

// Close wipes the retained master key copy.
func (c *Cipher) Close() {
	c.master.Zero()
}

// Encrypt seals plaintext into a versioned blob.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	salt, err := randomBytes(saltLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(c.master), salt, kdfIterations, keyLength, sha256.New)
	defer Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce, err := randomBytes(nonceLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal with the nonce as destination so it ends up prepended.
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)

	blob := make([]byte, 0, 1+saltLength+len(sealed))
	blob = append(blob, blobVersion)
	blob = append(blob, salt...)
	blob = append(blob, sealed...)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < 1+saltLength+nonceLength {
		return nil, ErrBlobTooShort
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, blob[0])
	}
	salt := blob[1 : 1+saltLength]
	nonce := blob[1+saltLength : 1+saltLength+nonceLength]
	ciphertext := blob[1+saltLength+nonceLength:]

	key := pbkdf2.Key([]byte(c.master), salt, kdfIterations, keyLength, sha256.New)
	defer Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// EncryptSecret is a convenience wrapper around Encrypt.
func (c *Cipher) EncryptSecret(s Secret) ([]byte, error) {
	return c.Encrypt([]byte(s))
}

// DecryptSecret is a convenience wrapper around Decrypt.
func (c *Cipher) DecryptSecret(blob []byte) (Secret, error) {
	plain, err := c.Decrypt(blob)
	if err != nil {
		return nil, err
	}
	return Secret(plain), nil
}

// Wipe overwrites sensitive data with zeros then random data.
func Wipe(data []byte) {
	if len(data) == 0 {
		return
	}
	for i := range data {
		data[i] = 0
	}
	// Random pass (best effort - memory is already zeroed if this fails).
	_, _ = io.ReadFull(rand.Reader, data)
}

// randomBytes generates cryptographically secure random bytes.
func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

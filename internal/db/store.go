// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"time"

	"github.com/toeirei/keykeeper/internal/model"
)

// CredentialRecord is the persisted shape of a credential definition. Secret
// fields arrive here already encrypted: KeyBlob holds the sealed direct-entry
// key text (nil unless the source kind is direct), PassBlob the sealed
// passphrase (nil when none is set). Encryption and decryption live one layer
// up, in the registry.
type CredentialRecord struct {
	ID          string
	Scope       string
	Username    string
	Description string
	SourceKind  string
	KeyBlob     []byte
	KeyFile     string
	PassBlob    []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store defines the interface for all database operations in Keykeeper.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Credential methods
	AddCredential(rec CredentialRecord) error
	UpdateCredential(rec CredentialRecord) error
	GetCredential(id string) (*CredentialRecord, error)
	GetAllCredentials() ([]CredentialRecord, error)
	DeleteCredential(id string) error

	// Host Key methods
	GetKnownHostKey(hostname string) (string, error)
	AddKnownHostKey(hostname, algorithm, key string) error
	GetAllKnownHosts() ([]model.KnownHost, error)

	// Audit Log methods
	GetAllAuditLogEntries() ([]model.AuditLogEntry, error)
	LogAction(action string, details string) error
}

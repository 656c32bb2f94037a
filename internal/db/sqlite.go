// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Keykeeper.
// This file contains the SQLite implementation of the database store.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/toeirei/keykeeper/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SqliteStore is the SQLite implementation of the Store interface.
type SqliteStore struct {
	bun *bun.DB
}

// AddCredential stores a new credential definition.
func (s *SqliteStore) AddCredential(rec CredentialRecord) error {
	err := AddCredentialBun(s.bun, rec)
	if err == nil {
		_ = s.LogAction("ADD_CREDENTIAL", fmt.Sprintf("credential: %s (%s)", rec.ID, rec.SourceKind))
	}
	return err
}

// UpdateCredential replaces the stored fields of an existing credential.
func (s *SqliteStore) UpdateCredential(rec CredentialRecord) error {
	err := UpdateCredentialBun(s.bun, rec)
	if err == nil {
		_ = s.LogAction("UPDATE_CREDENTIAL", fmt.Sprintf("credential: %s", rec.ID))
	}
	return err
}

// GetCredential fetches one credential definition by ID.
func (s *SqliteStore) GetCredential(id string) (*CredentialRecord, error) {
	return GetCredentialBun(s.bun, id)
}

// GetAllCredentials lists every stored credential definition.
func (s *SqliteStore) GetAllCredentials() ([]CredentialRecord, error) {
	return GetAllCredentialsBun(s.bun)
}

// DeleteCredential removes a credential definition by ID.
func (s *SqliteStore) DeleteCredential(id string) error {
	err := DeleteCredentialBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("DELETE_CREDENTIAL", fmt.Sprintf("credential: %s", id))
	}
	return err
}

// GetKnownHostKey retrieves the trusted public key for a given hostname.
func (s *SqliteStore) GetKnownHostKey(hostname string) (string, error) {
	return GetKnownHostKeyBun(s.bun, hostname)
}

// AddKnownHostKey adds a new trusted host key to the database.
// INSERT OR REPLACE will add the key if it doesn't exist, or update it if it
// does. This is useful if a host is legitimately re-provisioned.
func (s *SqliteStore) AddKnownHostKey(hostname, algorithm, key string) error {
	_, err := ExecRaw(context.Background(), s.bun,
		"INSERT OR REPLACE INTO known_hosts (hostname, algorithm, key, added_at) VALUES (?, ?, ?, ?)",
		hostname, algorithm, key, time.Now().UTC())
	if err == nil {
		_ = s.LogAction("TRUST_HOST", fmt.Sprintf("hostname: %s", hostname))
	}
	return err
}

// GetAllKnownHosts lists every pinned host key.
func (s *SqliteStore) GetAllKnownHosts() ([]model.KnownHost, error) {
	return GetAllKnownHostsBun(s.bun)
}

// GetAllAuditLogEntries retrieves the audit trail, most recent first.
func (s *SqliteStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

// LogAction records an audit trail event.
func (s *SqliteStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

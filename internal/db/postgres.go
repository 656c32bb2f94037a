// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// package db provides the data access layer for Keykeeper.
// This file contains the PostgreSQL implementation of the database store.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/toeirei/keykeeper/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// PostgresStore is the PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	bun *bun.DB
}

// AddCredential stores a new credential definition.
func (s *PostgresStore) AddCredential(rec CredentialRecord) error {
	err := AddCredentialBun(s.bun, rec)
	if err == nil {
		_ = s.LogAction("ADD_CREDENTIAL", fmt.Sprintf("credential: %s (%s)", rec.ID, rec.SourceKind))
	}
	return err
}

// UpdateCredential replaces the stored fields of an existing credential.
func (s *PostgresStore) UpdateCredential(rec CredentialRecord) error {
	err := UpdateCredentialBun(s.bun, rec)
	if err == nil {
		_ = s.LogAction("UPDATE_CREDENTIAL", fmt.Sprintf("credential: %s", rec.ID))
	}
	return err
}

// GetCredential fetches one credential definition by ID.
func (s *PostgresStore) GetCredential(id string) (*CredentialRecord, error) {
	return GetCredentialBun(s.bun, id)
}

// GetAllCredentials lists every stored credential definition.
func (s *PostgresStore) GetAllCredentials() ([]CredentialRecord, error) {
	return GetAllCredentialsBun(s.bun)
}

// DeleteCredential removes a credential definition by ID.
func (s *PostgresStore) DeleteCredential(id string) error {
	err := DeleteCredentialBun(s.bun, id)
	if err == nil {
		_ = s.LogAction("DELETE_CREDENTIAL", fmt.Sprintf("credential: %s", id))
	}
	return err
}

// GetKnownHostKey retrieves the trusted public key for a given hostname.
func (s *PostgresStore) GetKnownHostKey(hostname string) (string, error) {
	return GetKnownHostKeyBun(s.bun, hostname)
}

// AddKnownHostKey adds a new trusted host key to the database.
// Uses Postgres's ON CONFLICT for "UPSERT" behavior.
func (s *PostgresStore) AddKnownHostKey(hostname, algorithm, key string) error {
	_, err := ExecRaw(context.Background(), s.bun, `
		INSERT INTO known_hosts (hostname, algorithm, "key", added_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (hostname) DO UPDATE SET algorithm = EXCLUDED.algorithm, "key" = EXCLUDED.key, added_at = EXCLUDED.added_at`,
		hostname, algorithm, key, time.Now().UTC())
	if err == nil {
		_ = s.LogAction("TRUST_HOST", fmt.Sprintf("hostname: %s", hostname))
	}
	return err
}

// GetAllKnownHosts lists every pinned host key.
func (s *PostgresStore) GetAllKnownHosts() ([]model.KnownHost, error) {
	return GetAllKnownHostsBun(s.bun)
}

// GetAllAuditLogEntries retrieves the audit trail, most recent first.
func (s *PostgresStore) GetAllAuditLogEntries() ([]model.AuditLogEntry, error) {
	return GetAllAuditLogEntriesBun(s.bun)
}

// LogAction records an audit trail event.
func (s *PostgresStore) LogAction(action string, details string) error {
	return LogActionBun(s.bun, action, details)
}

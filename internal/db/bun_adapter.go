// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"os/user"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/toeirei/keykeeper/internal/model"
)

// CredentialModel maps the `credentials` table for Bun queries.
type CredentialModel struct {
	bun.BaseModel `bun:"table:credentials"`
	ID            string    `bun:"id,pk"`
	Scope         string    `bun:"scope"`
	Username      string    `bun:"username"`
	Description   string    `bun:"description"`
	SourceKind    string    `bun:"source_kind"`
	KeyBlob       []byte    `bun:"key_blob"`
	KeyFile       string    `bun:"key_file"`
	PassBlob      []byte    `bun:"pass_blob"`
	CreatedAt     time.Time `bun:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
}

// KnownHostModel maps the `known_hosts` table.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Hostname      string    `bun:"hostname,pk"`
	Algorithm     string    `bun:"algorithm"`
	Key           string    `bun:"key"`
	AddedAt       time.Time `bun:"added_at"`
}

// AuditLogModel maps the `audit_log` table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int    `bun:"id,pk,autoincrement"`
	Timestamp     string `bun:"timestamp"`
	Username      string `bun:"username"`
	Action        string `bun:"action"`
	Details       string `bun:"details"`
}

func credentialModelToRecord(m CredentialModel) CredentialRecord {
	return CredentialRecord{
		ID:          m.ID,
		Scope:       m.Scope,
		Username:    m.Username,
		Description: m.Description,
		SourceKind:  m.SourceKind,
		KeyBlob:     m.KeyBlob,
		KeyFile:     m.KeyFile,
		PassBlob:    m.PassBlob,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func credentialRecordToModel(rec CredentialRecord) CredentialModel {
	return CredentialModel{
		ID:          rec.ID,
		Scope:       rec.Scope,
		Username:    rec.Username,
		Description: rec.Description,
		SourceKind:  rec.SourceKind,
		KeyBlob:     rec.KeyBlob,
		KeyFile:     rec.KeyFile,
		PassBlob:    rec.PassBlob,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// AddCredentialBun inserts a new credential record.
func AddCredentialBun(bdb *bun.DB, rec CredentialRecord) error {
	ctx := context.Background()
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m := credentialRecordToModel(rec)
	_, err := bdb.NewInsert().Model(&m).Exec(ctx)
	return MapDBError(err)
}

// UpdateCredentialBun replaces the stored fields of an existing credential.
func UpdateCredentialBun(bdb *bun.DB, rec CredentialRecord) error {
	ctx := context.Background()
	rec.UpdatedAt = time.Now().UTC()
	m := credentialRecordToModel(rec)
	res, err := bdb.NewUpdate().Model(&m).
		Column("scope", "username", "description", "source_kind", "key_blob", "key_file", "pass_blob", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return MapDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCredentialBun fetches one credential by ID.
func GetCredentialBun(bdb *bun.DB, id string) (*CredentialRecord, error) {
	ctx := context.Background()
	var m CredentialModel
	err := bdb.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec := credentialModelToRecord(m)
	return &rec, nil
}

// GetAllCredentialsBun lists every credential, ordered by ID for stable output.
func GetAllCredentialsBun(bdb *bun.DB) ([]CredentialRecord, error) {
	ctx := context.Background()
	var ms []CredentialModel
	if err := bdb.NewSelect().Model(&ms).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]CredentialRecord, 0, len(ms))
	for _, m := range ms {
		out = append(out, credentialModelToRecord(m))
	}
	return out, nil
}

// DeleteCredentialBun removes a credential by ID.
func DeleteCredentialBun(bdb *bun.DB, id string) error {
	ctx := context.Background()
	res, err := bdb.NewDelete().Model((*CredentialModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetKnownHostKeyBun retrieves the pinned key line for a hostname. A missing
// row is not an error, it is the "never seen this host" state.
func GetKnownHostKeyBun(bdb *bun.DB, hostname string) (string, error) {
	ctx := context.Background()
	var m KnownHostModel
	err := bdb.NewSelect().Model(&m).Where("hostname = ?", hostname).Limit(1).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return m.Key, nil
}

// GetAllKnownHostsBun lists every pinned host key.
func GetAllKnownHostsBun(bdb *bun.DB) ([]model.KnownHost, error) {
	ctx := context.Background()
	var ms []KnownHostModel
	if err := bdb.NewSelect().Model(&ms).Order("hostname ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.KnownHost, 0, len(ms))
	for _, m := range ms {
		out = append(out, model.KnownHost{
			Hostname:  m.Hostname,
			Algorithm: m.Algorithm,
			Key:       m.Key,
			AddedAt:   m.AddedAt,
		})
	}
	return out, nil
}

// LogActionBun inserts an audit log entry with the current OS user.
func LogActionBun(bdb *bun.DB, action string, details string) error {
	ctx := context.Background()
	curUser, err := user.Current()
	username := "unknown"
	if err == nil {
		if parts := strings.Split(curUser.Username, `\`); len(parts) > 1 {
			username = parts[1]
		} else {
			username = curUser.Username
		}
	}
	_, err = ExecRaw(ctx, bdb, "INSERT INTO audit_log (username, action, details) VALUES (?, ?, ?)", username, action, details)
	return MapDBError(err)
}

// GetAllAuditLogEntriesBun returns the audit trail, most recent first.
func GetAllAuditLogEntriesBun(bdb *bun.DB) ([]model.AuditLogEntry, error) {
	ctx := context.Background()
	var am []AuditLogModel
	if err := bdb.NewSelect().Model(&am).OrderExpr("timestamp DESC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(am))
	for _, a := range am {
		out = append(out, model.AuditLogEntry{ID: a.ID, Timestamp: a.Timestamp, Username: a.Username, Action: a.Action, Details: a.Details})
	}
	return out, nil
}

// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"bytes"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	dsn := "file:test_" + t.Name() + "?mode=memory&cache=shared"
	if err := InitDB("sqlite", dsn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return dsn
}

func TestInitDB_Migrations_Applied(t *testing.T) {
	dsn := newTestDB(t)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sql.DB for inspection: %v", err)
	}
	defer func() { _ = sqlDB.Close() }()

	rows, err := sqlDB.Query("SELECT version FROM schema_migrations")
	if err != nil {
		t.Fatalf("query schema_migrations failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	want := map[string]bool{
		"0001_create_credentials": true,
		"0002_create_known_hosts": true,
		"0003_create_audit_log":   true,
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan version failed: %v", err)
		}
		delete(want, v)
	}
	if len(want) != 0 {
		t.Fatalf("missing expected migrations: %v", want)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dsn := "file:test_migrations_idem?mode=memory&cache=shared"
	dbConn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer func() { _ = dbConn.Close() }()

	if err := RunMigrations(dbConn, "sqlite"); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if err := RunMigrations(dbConn, "sqlite"); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	var n int
	if err := dbConn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count schema_migrations failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 applied migrations after re-run, got %d", n)
	}
}

func TestCredential_CRUD(t *testing.T) {
	_ = newTestDB(t)

	rec := CredentialRecord{
		ID:          "deploy-key",
		Scope:       "global",
		Username:    "deploy",
		Description: "production deploy key",
		SourceKind:  "direct",
		KeyBlob:     []byte{0x01, 0x02, 0x03},
		PassBlob:    []byte{0x04, 0x05},
	}
	if err := AddCredential(rec); err != nil {
		t.Fatalf("AddCredential failed: %v", err)
	}

	got, err := GetCredential("deploy-key")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if got.ID != rec.ID || got.Scope != rec.Scope || got.Username != rec.Username || got.Description != rec.Description || got.SourceKind != rec.SourceKind {
		t.Fatalf("round-trip mismatch: got %+v", got)
	}
	if !bytes.Equal(got.KeyBlob, rec.KeyBlob) || !bytes.Equal(got.PassBlob, rec.PassBlob) {
		t.Fatalf("blob round-trip mismatch: key=%x pass=%x", got.KeyBlob, got.PassBlob)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatalf("expected created_at/updated_at to be set, got %v / %v", got.CreatedAt, got.UpdatedAt)
	}

	// Duplicate insert maps to ErrDuplicate.
	if err := AddCredential(rec); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on second insert, got: %v", err)
	}

	// Update replaces stored fields.
	rec.Description = "rotated deploy key"
	rec.KeyBlob = []byte{0x09, 0x08}
	if err := UpdateCredential(rec); err != nil {
		t.Fatalf("UpdateCredential failed: %v", err)
	}
	got, err = GetCredential("deploy-key")
	if err != nil {
		t.Fatalf("GetCredential after update failed: %v", err)
	}
	if got.Description != "rotated deploy key" || !bytes.Equal(got.KeyBlob, []byte{0x09, 0x08}) {
		t.Fatalf("update not applied: %+v", got)
	}

	all, err := GetAllCredentials()
	if err != nil {
		t.Fatalf("GetAllCredentials failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != "deploy-key" {
		t.Fatalf("unexpected GetAllCredentials result: %+v", all)
	}

	if err := DeleteCredential("deploy-key"); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}
	if _, err := GetCredential("deploy-key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}
	if err := DeleteCredential("deploy-key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
	}
}

func TestCredential_GetAllOrder(t *testing.T) {
	_ = newTestDB(t)

	for _, id := range []string{"zeta", "alpha", "mike"} {
		if err := AddCredential(CredentialRecord{ID: id, Scope: "global", SourceKind: "home"}); err != nil {
			t.Fatalf("AddCredential(%s) failed: %v", id, err)
		}
	}
	all, err := GetAllCredentials()
	if err != nil {
		t.Fatalf("GetAllCredentials failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "alpha" || all[1].ID != "mike" || all[2].ID != "zeta" {
		t.Fatalf("expected id-sorted credentials, got: %+v", all)
	}
}

func TestUpdateCredential_Missing(t *testing.T) {
	_ = newTestDB(t)

	err := UpdateCredential(CredentialRecord{ID: "ghost", Scope: "global", SourceKind: "direct"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing credential, got: %v", err)
	}
}

func TestKnownHost_Upsert(t *testing.T) {
	_ = newTestDB(t)

	if err := AddKnownHostKey("git.example.com", "ssh-ed25519", "AAAA_first"); err != nil {
		t.Fatalf("AddKnownHostKey failed: %v", err)
	}
	key, err := GetKnownHostKey("git.example.com")
	if err != nil {
		t.Fatalf("GetKnownHostKey failed: %v", err)
	}
	if key != "AAAA_first" {
		t.Fatalf("expected first key, got %q", key)
	}

	// Re-adding the same hostname replaces the pinned key.
	if err := AddKnownHostKey("git.example.com", "ssh-ed25519", "AAAA_rotated"); err != nil {
		t.Fatalf("AddKnownHostKey upsert failed: %v", err)
	}
	key, err = GetKnownHostKey("git.example.com")
	if err != nil {
		t.Fatalf("GetKnownHostKey after upsert failed: %v", err)
	}
	if key != "AAAA_rotated" {
		t.Fatalf("expected rotated key, got %q", key)
	}

	// Unknown hostnames are not an error, just an empty pin.
	key, err = GetKnownHostKey("unknown.example.com")
	if err != nil {
		t.Fatalf("GetKnownHostKey for unknown host failed: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key for unknown host, got %q", key)
	}

	hosts, err := GetAllKnownHosts()
	if err != nil {
		t.Fatalf("GetAllKnownHosts failed: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Hostname != "git.example.com" || hosts[0].Key != "AAAA_rotated" {
		t.Fatalf("unexpected known hosts: %+v", hosts)
	}
	if hosts[0].AddedAt.IsZero() {
		t.Fatalf("expected added_at to be recorded")
	}
}

func TestAuditTrail_RecordsMutations(t *testing.T) {
	_ = newTestDB(t)

	rec := CredentialRecord{ID: "audited", Scope: "system", SourceKind: "file", KeyFile: "/etc/keys/audited"}
	if err := AddCredential(rec); err != nil {
		t.Fatalf("AddCredential failed: %v", err)
	}
	if err := AddKnownHostKey("ci.example.com", "ssh-rsa", "AAAA_ci"); err != nil {
		t.Fatalf("AddKnownHostKey failed: %v", err)
	}
	if err := DeleteCredential("audited"); err != nil {
		t.Fatalf("DeleteCredential failed: %v", err)
	}
	if err := LogAction("EXPORT", "bundle: 0 credentials"); err != nil {
		t.Fatalf("LogAction failed: %v", err)
	}

	entries, err := GetAllAuditLogEntries()
	if err != nil {
		t.Fatalf("GetAllAuditLogEntries failed: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range entries {
		seen[e.Action] = true
		if e.Username == "" {
			t.Fatalf("audit entry missing username: %+v", e)
		}
		if e.Timestamp == "" {
			t.Fatalf("audit entry missing timestamp: %+v", e)
		}
	}
	for _, action := range []string{"ADD_CREDENTIAL", "TRUST_HOST", "DELETE_CREDENTIAL", "EXPORT"} {
		if !seen[action] {
			t.Fatalf("expected audit action %q, got entries: %+v", action, entries)
		}
	}
}

func TestNewStoreFromDSN_UnsupportedType(t *testing.T) {
	if _, err := NewStoreFromDSN("oracle", "whatever"); err == nil {
		t.Fatalf("expected error for unsupported db type")
	}
}

func TestRunDBMaintenanceSqlite_Smoke(t *testing.T) {
	dsn := "file:test_maint?mode=memory&cache=shared"
	if err := RunDBMaintenance("sqlite", dsn); err != nil {
		t.Fatalf("RunDBMaintenance failed: %v", err)
	}
}

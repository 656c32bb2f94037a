// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/toeirei/keykeeper/internal/db"
	"github.com/toeirei/keykeeper/internal/model"
	"github.com/toeirei/keykeeper/internal/security"
)

func newTestStore(t *testing.T, name string) db.Store {
	t.Helper()
	st, err := db.New("sqlite", "file:registry_"+t.Name()+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	return st
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st := newTestStore(t, "")
	cipher, err := security.NewCipher(security.FromString("unit-test-master-key"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	return New(st, cipher)
}

func TestAddGetRoundTrip(t *testing.T) {
	r := newTestRegistry(t)

	cred := model.Credential{
		ID:          "ci-deploy",
		Scope:       model.ScopeGlobal,
		Username:    "deploy",
		Description: "deploy key for CI",
		Source:      model.SourceDirect,
		KeyText:     security.FromString("keyA\fkeyB"),
		Passphrase:  security.FromString("s3cret"),
	}
	if err := r.Add(cred); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := r.Get("ci-deploy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.KeyText.PlainString() != "keyA\fkeyB" {
		t.Fatalf("key text did not round-trip: %q", got.KeyText.PlainString())
	}
	if got.Passphrase.PlainString() != "s3cret" {
		t.Fatalf("passphrase did not round-trip: %q", got.Passphrase.PlainString())
	}
	if got.Username != "deploy" || got.Scope != model.ScopeGlobal || got.Source != model.SourceDirect {
		t.Fatalf("metadata mismatch: %+v", got)
	}
}

func TestStoredBlobsAreSealed(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Add(model.Credential{
		ID:         "sealed",
		Scope:      model.ScopeGlobal,
		Source:     model.SourceDirect,
		KeyText:    security.FromString("super secret key body"),
		Passphrase: security.FromString("hunter2"),
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	rec, err := r.store.GetCredential("sealed")
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if bytes.Contains(rec.KeyBlob, []byte("super secret key body")) {
		t.Fatalf("key blob stores plaintext")
	}
	if bytes.Contains(rec.PassBlob, []byte("hunter2")) {
		t.Fatalf("passphrase blob stores plaintext")
	}
	if len(rec.KeyBlob) == 0 || len(rec.PassBlob) == 0 {
		t.Fatalf("expected sealed blobs to be present, got key=%d pass=%d bytes", len(rec.KeyBlob), len(rec.PassBlob))
	}
}

func TestListDoesNotDecrypt(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Add(model.Credential{
		ID:         "quiet",
		Scope:      model.ScopeGlobal,
		Source:     model.SourceDirect,
		KeyText:    security.FromString("body"),
		Passphrase: security.FromString("pw"),
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	creds, err := r.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(creds) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(creds))
	}
	if !creds[0].KeyText.IsEmpty() || !creds[0].Passphrase.IsEmpty() {
		t.Fatalf("List decrypted secret fields")
	}
}

func TestLiveInstanceCaching(t *testing.T) {
	r := newTestRegistry(t)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_test")
	if err := os.WriteFile(keyPath, []byte("file key body\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	cred := model.Credential{
		ID:      "file-cred",
		Scope:   model.ScopeSystem,
		Source:  model.SourceFile,
		KeyFile: keyPath,
	}
	if err := r.Add(cred); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	first, err := r.Live("file-cred")
	if err != nil {
		t.Fatalf("Live failed: %v", err)
	}
	second, err := r.Live("file-cred")
	if err != nil {
		t.Fatalf("second Live failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected cached live instance, got distinct pointers")
	}
	keys := first.Keys()
	if len(keys) != 1 || keys[0] != "file key body\n" {
		t.Fatalf("unexpected resolved keys: %q", keys)
	}

	// Updating the definition must drop the cached instance.
	cred.Description = "rotated"
	if err := r.Update(cred); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	third, err := r.Live("file-cred")
	if err != nil {
		t.Fatalf("Live after update failed: %v", err)
	}
	if third == first {
		t.Fatalf("expected a fresh live instance after update")
	}
}

func TestLiveUnknownID(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Live("nope"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestLiveCorruptedPathUpgrade(t *testing.T) {
	r := newTestRegistry(t)

	inline := "---BEGIN FAKE KEY---\nabc\n---END FAKE KEY---"
	if err := r.Add(model.Credential{
		ID:      "mangled",
		Scope:   model.ScopeGlobal,
		Source:  model.SourceFile,
		KeyFile: inline,
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	live, err := r.Live("mangled")
	if err != nil {
		t.Fatalf("Live failed: %v", err)
	}
	if !live.Source().SelfContained() {
		t.Fatalf("expected inline key text to be upgraded to a self-contained source")
	}
	keys := live.Keys()
	if len(keys) != 1 || keys[0] != inline {
		t.Fatalf("expected the inline text as sole key, got %q", keys)
	}
}

func TestExportSnapshotsFileSources(t *testing.T) {
	r := newTestRegistry(t)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "id_export")
	if err := os.WriteFile(keyPath, []byte("portable key body"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if err := r.Add(model.Credential{
		ID:         "portable",
		Scope:      model.ScopeGlobal,
		Username:   "robot",
		Source:     model.SourceFile,
		KeyFile:    keyPath,
		Passphrase: security.FromString("pw"),
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var buf bytes.Buffer
	n, err := r.Export(&buf)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 exported credential, got %d", n)
	}

	// The bundle must stay usable after the backing file is gone.
	if err := os.Remove(keyPath); err != nil {
		t.Fatalf("remove key file: %v", err)
	}

	other := New(newTestStore(t, "_import"), r.cipher)
	res, err := other.Import(bytes.NewReader(buf.Bytes()), false)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Added != 1 || res.Replaced != 0 || res.Skipped != 0 {
		t.Fatalf("unexpected import result: %+v", res)
	}

	got, err := other.Get("portable")
	if err != nil {
		t.Fatalf("Get after import failed: %v", err)
	}
	if got.Source != model.SourceDirect {
		t.Fatalf("imported credential should be direct-entry, got %s", got.Source)
	}
	if got.KeyText.PlainString() != "portable key body" {
		t.Fatalf("imported key text mismatch: %q", got.KeyText.PlainString())
	}
	if got.Passphrase.PlainString() != "pw" {
		t.Fatalf("imported passphrase mismatch")
	}
	if got.Username != "robot" {
		t.Fatalf("imported username mismatch: %q", got.Username)
	}
}

func TestImportDuplicateSkipAndReplace(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Add(model.Credential{
		ID:      "dup",
		Scope:   model.ScopeGlobal,
		Source:  model.SourceDirect,
		KeyText: security.FromString("original"),
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var buf bytes.Buffer
	if _, err := r.Export(&buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// Same bundle back into the same registry: skipped without --replace.
	res, err := r.Import(bytes.NewReader(buf.Bytes()), false)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Skipped != 1 || res.Added != 0 {
		t.Fatalf("expected 1 skipped, got %+v", res)
	}

	// With replace the definition is overwritten.
	res, err = r.Import(bytes.NewReader(buf.Bytes()), true)
	if err != nil {
		t.Fatalf("Import with replace failed: %v", err)
	}
	if res.Replaced != 1 {
		t.Fatalf("expected 1 replaced, got %+v", res)
	}
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	r := newTestRegistry(t)

	// A hand-written bundle with a version this build does not read.
	raw := `{"version": 999, "exported_at": "2026-01-01T00:00:00Z", "credentials": []}`
	var compressed bytes.Buffer
	zw, err := zstd.NewWriter(&compressed)
	if err != nil {
		t.Fatalf("zstd.NewWriter failed: %v", err)
	}
	if _, err := zw.Write([]byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := r.Import(&compressed, false); err == nil || !strings.Contains(err.Error(), "unsupported bundle version") {
		t.Fatalf("expected version error, got: %v", err)
	}
}

func TestGetWrongMasterKey(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Add(model.Credential{
		ID:      "locked",
		Scope:   model.ScopeGlobal,
		Source:  model.SourceDirect,
		KeyText: security.FromString("body"),
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	wrongCipher, err := security.NewCipher(security.FromString("a different master key"))
	if err != nil {
		t.Fatalf("NewCipher failed: %v", err)
	}
	other := New(r.store, wrongCipher)
	if _, err := other.Get("locked"); err == nil {
		t.Fatalf("expected decryption failure with wrong master key")
	}
}

func TestValidate(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Add(model.Credential{Scope: model.ScopeGlobal, Source: model.SourceDirect}); err == nil {
		t.Fatalf("expected error for empty id")
	}
	if err := r.Add(model.Credential{ID: "x", Scope: model.ScopeGlobal, Source: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown source kind")
	}
	if err := r.Add(model.Credential{ID: "x", Scope: model.ScopeGlobal, Source: model.SourceFile}); err == nil {
		t.Fatalf("expected error for file source without path")
	}
}

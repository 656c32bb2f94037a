// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package registry binds persisted credential definitions to live, resolving
// credentials. It owns the at-rest encryption boundary: key text and
// passphrases are sealed before they reach the db package and opened again on
// load. Live credential instances are cached per id so their staleness caches
// keep working across lookups.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/toeirei/keykeeper/internal/db"
	"github.com/toeirei/keykeeper/internal/logging"
	"github.com/toeirei/keykeeper/internal/model"
	"github.com/toeirei/keykeeper/internal/security"
	"github.com/toeirei/keykeeper/internal/sshcred"
)

// Registry is the credential registry: storage, encryption and the live
// instance cache behind one API.
type Registry struct {
	store  db.Store
	cipher *security.Cipher

	mu   sync.Mutex
	live map[string]*sshcred.Credential
}

// New builds a registry over the given store and cipher.
func New(store db.Store, cipher *security.Cipher) *Registry {
	return &Registry{
		store:  store,
		cipher: cipher,
		live:   make(map[string]*sshcred.Credential),
	}
}

// Add seals and persists a new credential definition.
func (r *Registry) Add(cred model.Credential) error {
	if err := validate(cred); err != nil {
		return err
	}
	rec, err := r.sealRecord(cred)
	if err != nil {
		return err
	}
	return r.store.AddCredential(rec)
}

// Update seals and replaces an existing credential definition. Any cached
// live instance for the id is dropped so the next lookup sees the new data.
func (r *Registry) Update(cred model.Credential) error {
	if err := validate(cred); err != nil {
		return err
	}
	rec, err := r.sealRecord(cred)
	if err != nil {
		return err
	}
	if err := r.store.UpdateCredential(rec); err != nil {
		return err
	}
	r.invalidate(cred.ID)
	return nil
}

// Delete removes a credential definition and its cached live instance.
func (r *Registry) Delete(id string) error {
	if err := r.store.DeleteCredential(id); err != nil {
		return err
	}
	r.invalidate(id)
	return nil
}

// Get returns the decrypted definition for one credential. The caller gets
// key text and passphrase in the clear; display code must rely on the
// Secret type's redaction rather than printing fields directly.
func (r *Registry) Get(id string) (model.Credential, error) {
	rec, err := r.store.GetCredential(id)
	if err != nil {
		return model.Credential{}, err
	}
	return r.openRecord(*rec)
}

// List returns all credential definitions without decrypting any secret
// fields. KeyText and Passphrase are left empty.
func (r *Registry) List() ([]model.Credential, error) {
	recs, err := r.store.GetAllCredentials()
	if err != nil {
		return nil, err
	}
	out := make([]model.Credential, 0, len(recs))
	for _, rec := range recs {
		out = append(out, metadata(rec))
	}
	return out, nil
}

// Live returns the resolving credential instance for an id, building and
// caching it on first use. Repeated calls return the same instance, which is
// what keeps the per-credential key cache and file staleness sampling
// effective across commands in one process.
func (r *Registry) Live(id string) (*sshcred.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.live[id]; ok {
		return c, nil
	}
	rec, err := r.store.GetCredential(id)
	if err != nil {
		return nil, err
	}
	cred, err := r.openRecord(*rec)
	if err != nil {
		return nil, err
	}
	live := buildLive(cred)
	r.live[id] = live
	return live, nil
}

// ImportResult summarizes what an Import call did.
type ImportResult struct {
	Added    int
	Replaced int
	Skipped  int
}

// Export writes every stored credential to w as a zstd-compressed JSON
// bundle. Credentials backed by external sources (file paths, home
// directories) are snapshotted first, so the bundle carries the key material
// itself and stays meaningful on a machine where those paths do not exist.
func (r *Registry) Export(w io.Writer) (int, error) {
	recs, err := r.store.GetAllCredentials()
	if err != nil {
		return 0, fmt.Errorf("could not load credentials for export: %w", err)
	}

	bundle := model.Bundle{
		Version:    model.BundleVersion,
		ExportedAt: time.Now().UTC(),
		Creds:      make([]model.BundleCredential, 0, len(recs)),
	}
	for _, rec := range recs {
		live, err := r.Live(rec.ID)
		if err != nil {
			return 0, fmt.Errorf("could not open credential %s for export: %w", rec.ID, err)
		}
		snap := sshcred.Snapshot(live)
		bundle.Creds = append(bundle.Creds, model.BundleCredential{
			ID:          snap.ID(),
			Scope:       string(snap.Scope()),
			Username:    snap.Username(),
			Description: snap.Description(),
			Keys:        snap.Keys(),
			Passphrase:  snap.Passphrase().PlainString(),
		})
	}

	zstdWriter, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("could not create zstd writer: %w", err)
	}
	encoder := json.NewEncoder(zstdWriter)
	encoder.SetIndent("", "  ") // Pretty-print the JSON inside the compressed stream
	if err := encoder.Encode(bundle); err != nil {
		_ = zstdWriter.Close()
		return 0, fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zstdWriter.Close(); err != nil {
		return 0, fmt.Errorf("could not finish zstd stream: %w", err)
	}

	_ = r.store.LogAction("EXPORT", fmt.Sprintf("credentials: %d", len(bundle.Creds)))
	return len(bundle.Creds), nil
}

// Import reads a bundle produced by Export and stores its credentials. All
// imported credentials become direct-entry sources, because the bundle holds
// materialized key text. Existing ids are skipped unless replace is set.
func (r *Registry) Import(rd io.Reader, replace bool) (ImportResult, error) {
	var res ImportResult

	zstdReader, err := zstd.NewReader(rd)
	if err != nil {
		return res, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zstdReader.Close()

	var bundle model.Bundle
	if err := json.NewDecoder(zstdReader).Decode(&bundle); err != nil {
		return res, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	if bundle.Version != model.BundleVersion {
		return res, fmt.Errorf("unsupported bundle version %d (this build reads version %d)", bundle.Version, model.BundleVersion)
	}

	for _, bc := range bundle.Creds {
		scope, err := model.ParseScope(bc.Scope)
		if err != nil {
			logging.Warnf("skipping bundle credential %s: %v", bc.ID, err)
			res.Skipped++
			continue
		}
		cred := model.Credential{
			ID:          bc.ID,
			Scope:       scope,
			Username:    bc.Username,
			Description: bc.Description,
			Source:      model.SourceDirect,
			KeyText:     security.FromString(strings.Join(bc.Keys, sshcred.KeySeparator)),
			Passphrase:  security.FromString(bc.Passphrase),
		}
		switch err := r.Add(cred); {
		case err == nil:
			res.Added++
		case errors.Is(err, db.ErrDuplicate) && replace:
			if err := r.Update(cred); err != nil {
				return res, fmt.Errorf("could not replace credential %s: %w", bc.ID, err)
			}
			res.Replaced++
		case errors.Is(err, db.ErrDuplicate):
			res.Skipped++
		default:
			return res, fmt.Errorf("could not import credential %s: %w", bc.ID, err)
		}
	}

	_ = r.store.LogAction("IMPORT", fmt.Sprintf("added: %d, replaced: %d, skipped: %d", res.Added, res.Replaced, res.Skipped))
	return res, nil
}

func (r *Registry) invalidate(id string) {
	r.mu.Lock()
	delete(r.live, id)
	r.mu.Unlock()
}

// sealRecord encrypts the secret fields of a credential into a storable row.
func (r *Registry) sealRecord(cred model.Credential) (db.CredentialRecord, error) {
	rec := db.CredentialRecord{
		ID:          cred.ID,
		Scope:       string(cred.Scope),
		Username:    cred.Username,
		Description: cred.Description,
		SourceKind:  string(cred.Source),
		KeyFile:     cred.KeyFile,
		CreatedAt:   cred.CreatedAt,
		UpdatedAt:   cred.UpdatedAt,
	}
	if cred.Source == model.SourceDirect {
		blob, err := r.cipher.EncryptSecret(cred.KeyText)
		if err != nil {
			return db.CredentialRecord{}, fmt.Errorf("could not seal key material for %s: %w", cred.ID, err)
		}
		rec.KeyBlob = blob
	}
	if !cred.Passphrase.IsEmpty() {
		blob, err := r.cipher.EncryptSecret(cred.Passphrase)
		if err != nil {
			return db.CredentialRecord{}, fmt.Errorf("could not seal passphrase for %s: %w", cred.ID, err)
		}
		rec.PassBlob = blob
	}
	return rec, nil
}

// openRecord decrypts a stored row back into the domain credential.
func (r *Registry) openRecord(rec db.CredentialRecord) (model.Credential, error) {
	cred := metadata(rec)
	if len(rec.KeyBlob) > 0 {
		s, err := r.cipher.DecryptSecret(rec.KeyBlob)
		if err != nil {
			return model.Credential{}, fmt.Errorf("could not open key material for %s (wrong master key?): %w", rec.ID, err)
		}
		cred.KeyText = s
	}
	if len(rec.PassBlob) > 0 {
		s, err := r.cipher.DecryptSecret(rec.PassBlob)
		if err != nil {
			return model.Credential{}, fmt.Errorf("could not open passphrase for %s (wrong master key?): %w", rec.ID, err)
		}
		cred.Passphrase = s
	}
	return cred, nil
}

// metadata converts a stored row without touching the sealed fields.
func metadata(rec db.CredentialRecord) model.Credential {
	return model.Credential{
		ID:          rec.ID,
		Scope:       model.Scope(rec.Scope),
		Username:    rec.Username,
		Description: rec.Description,
		Source:      model.SourceKind(rec.SourceKind),
		KeyFile:     rec.KeyFile,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// buildLive constructs the resolving credential for a decrypted definition.
// A stored file path that actually holds inline key text is rewritten to a
// direct-entry source inside sshcred.NewFileReference.
func buildLive(cred model.Credential) *sshcred.Credential {
	var src sshcred.Source
	switch cred.Source {
	case model.SourceFile:
		src = sshcred.NewFileReference(cred.KeyFile)
	case model.SourceHome:
		src = sshcred.NewUserHomeScan()
	default:
		src = sshcred.NewDirectEntry(cred.KeyText)
	}
	return sshcred.New(cred.Scope, cred.ID, cred.Username, src, cred.Passphrase, cred.Description)
}

func validate(cred model.Credential) error {
	if cred.ID == "" {
		return fmt.Errorf("credential id cannot be empty")
	}
	if _, err := model.ParseSourceKind(string(cred.Source)); err != nil {
		return err
	}
	if cred.Source == model.SourceFile && cred.KeyFile == "" {
		return fmt.Errorf("file-backed credential %s needs a key file path", cred.ID)
	}
	return nil
}

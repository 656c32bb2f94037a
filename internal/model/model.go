// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the domain types Keykeeper works with: stored
// credentials, pinned host keys, audit entries and export bundles. These are
// plain structs; persistence mappings live in the db package.
package model

import (
	"fmt"
	"time"

	"github.com/toeirei/keykeeper/internal/security"
)

// Scope describes where a credential may be used.
type Scope string

const (
	// ScopeGlobal credentials are available to every consumer of the store.
	ScopeGlobal Scope = "global"
	// ScopeSystem credentials are reserved for the store host itself, for
	// example connections the automation controller makes on its own behalf.
	ScopeSystem Scope = "system"
)

// ParseScope validates a user-supplied scope string.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeGlobal, ScopeSystem:
		return Scope(s), nil
	case "":
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("unknown scope %q (want %q or %q)", s, ScopeGlobal, ScopeSystem)
	}
}

// SourceKind names the strategy a credential uses to obtain private keys.
type SourceKind string

const (
	// SourceDirect holds key material entered directly into the store.
	SourceDirect SourceKind = "direct"
	// SourceFile reads key material from a file path on each resolution.
	SourceFile SourceKind = "file"
	// SourceHome scans the invoking user's ~/.ssh directory.
	SourceHome SourceKind = "home"
)

// ParseSourceKind validates a user-supplied source kind string.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case SourceDirect, SourceFile, SourceHome:
		return SourceKind(s), nil
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}

// Credential is a stored SSH credential: an identity plus a private key
// source. KeyText carries direct-entry material and is empty for other source
// kinds; KeyFile carries the path for file-backed sources.
type Credential struct {
	ID          string
	Scope       Scope
	Username    string
	Description string
	Source      SourceKind
	KeyText     security.Secret
	KeyFile     string
	Passphrase  security.Secret
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// String returns a short identifier for list output and logs. Key material is
// never part of it.
func (c Credential) String() string {
	if c.Username == "" {
		return c.ID
	}
	return fmt.Sprintf("%s (%s)", c.ID, c.Username)
}

// KnownHost is a pinned SSH host key used to authenticate remote hosts
// before any key material is sent their way.
type KnownHost struct {
	Hostname  string
	Algorithm string
	Key       string
	AddedAt   time.Time
}

// AuditLogEntry records a mutating store operation.
type AuditLogEntry struct {
	ID        int
	Timestamp string
	Username  string
	Action    string
	Details   string
}

// BundleVersion is the current export bundle format version.
const BundleVersion = 1

// Bundle is the portable export format. Credentials inside a bundle are
// materialized: their key sources have been resolved and the resulting key
// text embedded, so the bundle is self-contained on any machine.
type Bundle struct {
	Version    int                `json:"version"`
	ExportedAt time.Time          `json:"exported_at"`
	Creds      []BundleCredential `json:"credentials"`
}

// BundleCredential is a single materialized credential in a bundle. Fields
// are plain strings on purpose: an export is an explicit request to move
// secrets, and the surrounding file is what must be protected.
type BundleCredential struct {
	ID          string   `json:"id"`
	Scope       string   `json:"scope"`
	Username    string   `json:"username"`
	Description string   `json:"description,omitempty"`
	Keys        []string `json:"keys"`
	Passphrase  string   `json:"passphrase,omitempty"`
}

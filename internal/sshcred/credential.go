// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package sshcred

import (
	"sync"

	"github.com/toeirei/keykeeper/internal/logging"
	"github.com/toeirei/keykeeper/internal/model"
	"github.com/toeirei/keykeeper/internal/puttykey"
	"github.com/toeirei/keykeeper/internal/security"
)

// Credential is a live SSH private-key credential: identity fields, a
// passphrase, the owning Source, and a cached list of normalized keys.
//
// The cache is guarded by a per-credential mutex. Concurrent callers of
// Keys see exactly one fetch-and-convert cycle per staleness change; see
// the invariants on Keys.
type Credential struct {
	scope       model.Scope
	id          string
	username    string
	description string
	passphrase  security.Secret
	source      Source

	mu sync.Mutex
	// keys is nil until the first resolution, then holds the normalized
	// result, possibly empty. The nil/empty distinction is what keeps an
	// empty source from being refetched on every call.
	keys  []string
	token int64
}

// New builds a credential around a source. The passphrase is copied.
func New(scope model.Scope, id, username string, source Source, passphrase security.Secret, description string) *Credential {
	return &Credential{
		scope:       scope,
		id:          id,
		username:    username,
		description: description,
		passphrase:  security.FromBytes(passphrase),
		source:      source,
	}
}

func (c *Credential) Scope() model.Scope          { return c.scope }
func (c *Credential) ID() string                  { return c.id }
func (c *Credential) Username() string            { return c.username }
func (c *Credential) Description() string         { return c.description }
func (c *Credential) Passphrase() security.Secret { return c.passphrase }
func (c *Credential) Source() Source              { return c.source }

// Keys returns the credential's normalized private keys in source order.
//
// The whole check-and-refresh sequence runs under the credential's lock:
// read the source token, compare it to the cached one, refetch and convert
// when the cache is uninitialized or the token advanced, then hand out a
// copy. Splitting this into separately locked steps would let two callers
// race into duplicate fetches or a half-replaced cache.
//
// A refetch that resolves zero keys still replaces the cache and token; an
// empty result is an answer, not a reason to hammer the source on every
// subsequent call.
func (c *Credential) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.source.StalenessToken()
	if c.keys == nil || current > c.token {
		fetched := c.source.FetchKeys()
		keys := make([]string, 0, len(fetched))
		for _, raw := range fetched {
			normalized, err := puttykey.Normalize(raw, c.passphrase)
			if err != nil {
				// A key that cannot be converted is dropped; its siblings
				// still resolve. Wrong passphrase and corrupt key text are
				// indistinguishable here, both end up as a missing key.
				logging.Warnf("dropping private key for credential %s: %v", c.id, err)
				continue
			}
			keys = append(keys, normalized)
		}
		c.keys = keys
		c.token = current
	}

	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// PrimaryKey returns the first resolved key, or "" when none resolve.
func (c *Credential) PrimaryKey() string {
	keys := c.Keys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshcred implements the private-key resolution core: pluggable key
// sources, staleness-driven caching, format normalization and snapshotting.
//
// A Credential owns exactly one Source. The credential caches the normalized
// key list and consults the source's staleness token to decide when the
// cache must be rebuilt. Sources never fail hard; a broken file or an
// unconvertible key costs that one key, not the whole resolution.
package sshcred

import (
	"math"
	"sync/atomic"
	"time"
)

// KeySeparator joins multiple key blocks inside a direct-entry source.
// Form feed never occurs inside PEM or PPK text, so splitting on it is safe.
const KeySeparator = "\f"

// stalenessPollInterval throttles filesystem stats for file-backed sources.
// Key lookups can happen once per connection attempt; a stat on every call
// would be wasted work.
const stalenessPollInterval = 30 * time.Second

// absentToken is the staleness token reported while a watched file does not
// exist. Any real modification time compares newer than it.
const absentToken int64 = math.MinInt64

// nowFunc is swapped in tests to control staleness sampling.
var nowFunc = time.Now

// Source supplies raw private key text to a Credential.
//
// Implementations never fail hard: FetchKeys returns an empty sequence on
// any read error and reports the problem to the log instead of the caller.
type Source interface {
	// FetchKeys returns the current raw key texts in source order.
	FetchKeys() []string
	// StalenessToken returns a value that is non-decreasing while the
	// underlying data is unchanged and increases when it may have changed.
	// The credential refetches when the token moves past its cached one.
	StalenessToken() int64
	// SelfContained reports whether the key material lives entirely inside
	// the credential definition, making it safe to serialize verbatim.
	SelfContained() bool
}

// stalenessCache implements the poll-interval sampling shared by the
// file-backed sources. Its fields are racy on purpose: concurrent readers
// inside the same poll window may each run a redundant stat, which is
// harmless, and atomics keep that benign race from being a data race.
type stalenessCache struct {
	token     atomic.Int64
	nextCheck atomic.Int64
}

// sample returns the cached token, re-running scan when the poll interval
// has elapsed or when the cached token is the negative "unknown" sentinel.
// A negative token forces a recheck on every call, so an absent file is
// noticed as soon as it appears.
func (c *stalenessCache) sample(scan func() int64) int64 {
	now := nowFunc().UnixMilli()
	if now >= c.nextCheck.Load() || c.token.Load() < 0 {
		c.token.Store(scan())
		c.nextCheck.Store(now + stalenessPollInterval.Milliseconds())
	}
	return c.token.Load()
}

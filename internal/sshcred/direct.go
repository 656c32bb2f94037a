// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package sshcred

import (
	"strings"

	"github.com/toeirei/keykeeper/internal/security"
)

// DirectEntrySource holds key material pasted straight into the credential
// definition. One or more key blocks are stored joined by KeySeparator.
type DirectEntrySource struct {
	text security.Secret
}

// NewDirectEntry wraps already-joined key text.
func NewDirectEntry(text security.Secret) *DirectEntrySource {
	return &DirectEntrySource{text: text}
}

// NewDirectEntryFromKeys joins individual key blocks into a single source.
func NewDirectEntryFromKeys(keys []string) *DirectEntrySource {
	return &DirectEntrySource{text: security.FromString(strings.Join(keys, KeySeparator))}
}

// FetchKeys splits the stored text back into individual key blocks. Empty
// chunks are dropped, so trailing or doubled separators cannot produce
// phantom empty keys.
func (s *DirectEntrySource) FetchKeys() []string {
	if s.text.IsEmpty() {
		return nil
	}
	parts := strings.Split(s.text.PlainString(), KeySeparator)
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		keys = append(keys, p)
	}
	return keys
}

// StalenessToken is constant: pasted text cannot change behind the
// credential's back.
func (s *DirectEntrySource) StalenessToken() int64 { return 1 }

// SelfContained is always true for direct entry.
func (s *DirectEntrySource) SelfContained() bool { return true }

// KeyText exposes the joined key text for persistence.
func (s *DirectEntrySource) KeyText() security.Secret { return s.text }

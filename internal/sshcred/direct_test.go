// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.
package sshcred

import (
	"reflect"
	"testing"

	"github.com/toeirei/keykeeper/internal/security"
)

func TestDirectEntrySplit(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{"two keys", "keyA\fkeyB", []string{"keyA", "keyB"}},
		{"single key", "keyA", []string{"keyA"}},
		{"empty text", "", nil},
		{"trailing separator", "keyA\f", []string{"keyA"}},
		{"doubled separator", "keyA\f\fkeyB", []string{"keyA", "keyB"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := NewDirectEntry(security.FromString(tc.text))
			got := src.FetchKeys()
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("FetchKeys() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDirectEntryTokenAndSelfContainment(t *testing.T) {
	src := NewDirectEntry(security.FromString("keyA"))
	if src.StalenessToken() != src.StalenessToken() {
		t.Fatalf("direct entry token must be constant")
	}
	if !src.SelfContained() {
		t.Fatalf("direct entry must be self-contained")
	}
}

func TestDirectEntryFromKeysRoundTrip(t *testing.T) {
	src := NewDirectEntryFromKeys([]string{"keyA", "keyB"})
	if got := src.FetchKeys(); !reflect.DeepEqual(got, []string{"keyA", "keyB"}) {
		t.Fatalf("round trip failed: %v", got)
	}
	if got := src.KeyText().PlainString(); got != "keyA\fkeyB" {
		t.Fatalf("unexpected joined text %q", got)
	}

	empty := NewDirectEntryFromKeys(nil)
	if got := empty.FetchKeys(); len(got) != 0 {
		t.Fatalf("expected no keys from empty source, got %v", got)
	}
}

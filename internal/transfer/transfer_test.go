// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package transfer

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/toeirei/keykeeper/internal/db"
)

func initTestDB(t *testing.T) {
	t.Helper()
	if err := db.InitDB("sqlite", "file:transfer_"+t.Name()+"?mode=memory&cache=shared"); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
}

func testPublicKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer from key: %v", err)
	}
	return signer.PublicKey()
}

func pin(t *testing.T, host string, key ssh.PublicKey) {
	t.Helper()
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
	if err := db.AddKnownHostKey(host, key.Type(), line); err != nil {
		t.Fatalf("AddKnownHostKey failed: %v", err)
	}
}

func TestVerifyHostKeyUnknownHost(t *testing.T) {
	initTestDB(t)

	err := verifyHostKey("fresh.example.com", testPublicKey(t))
	if err == nil || !strings.Contains(err.Error(), "trust-host") {
		t.Fatalf("expected unknown-host error pointing at trust-host, got: %v", err)
	}
}

func TestVerifyHostKeyMatch(t *testing.T) {
	initTestDB(t)

	key := testPublicKey(t)
	pin(t, "pinned.example.com", key)

	if err := verifyHostKey("pinned.example.com", key); err != nil {
		t.Fatalf("expected pinned key to verify, got: %v", err)
	}
}

func TestVerifyHostKeyMismatch(t *testing.T) {
	initTestDB(t)

	pin(t, "mitm.example.com", testPublicKey(t))

	err := verifyHostKey("mitm.example.com", testPublicKey(t))
	if err == nil || !strings.Contains(err.Error(), "HOST KEY MISMATCH") {
		t.Fatalf("expected mismatch error, got: %v", err)
	}
}

func TestHostKeyCallbackStripsPort(t *testing.T) {
	initTestDB(t)

	key := testPublicKey(t)
	pin(t, "ported.example.com", key)

	if err := hostKeyCallback("ported.example.com:22", nil, key); err != nil {
		t.Fatalf("expected port-qualified hostname to verify, got: %v", err)
	}
}

func TestWithDefaultPort(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com:22"},
		{"example.com:2222", "example.com:2222"},
		{"::1", "[::1]:22"},
		{"[::1]:2022", "[::1]:2022"},
	}
	for _, c := range cases {
		if got := withDefaultPort(c.in); got != c.want {
			t.Errorf("withDefaultPort(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

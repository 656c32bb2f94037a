// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	cfg "github.com/toeirei/keykeeper/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Database.Type != "sqlite" || got.Database.DSN != "./keykeeper.db" {
		t.Fatalf("unexpected database defaults: %+v", got.Database)
	}
	if got.Language != "en" {
		t.Fatalf("unexpected language default: %q", got.Language)
	}
	if got.Encryption.MasterKey != "" {
		t.Fatalf("expected empty master key default, got %q", got.Encryption.MasterKey)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := strings.Join([]string{
		"database:",
		"  type: postgres",
		"  dsn: host=localhost dbname=keykeeper",
		"language: de",
		"encryption:",
		"  master_key: bm90LWEtcmVhbC1rZXk=",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Database.Type != "postgres" {
		t.Fatalf("expected postgres, got %q", got.Database.Type)
	}
	if got.Language != "de" {
		t.Fatalf("expected de, got %q", got.Language)
	}
	if got.Encryption.MasterKey != "bm90LWEtcmVhbC1rZXk=" {
		t.Fatalf("master key not read: %q", got.Encryption.MasterKey)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KEYKEEPER_DATABASE_TYPE", "mysql")

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Database.Type != "mysql" {
		t.Fatalf("expected env override to win, got %q", got.Database.Type)
	}
}

func TestLoadConfig_FlagOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := &cobra.Command{}
	cmd.Flags().String("language", "", "")
	if err := cmd.Flags().Set("language", "de"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Language != "de" {
		t.Fatalf("expected flag override to win, got %q", got.Language)
	}
}

func TestLoadConfig_LegacyMerge(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := os.WriteFile(".keykeeper.yaml", []byte("language: de\n"), 0o600); err != nil {
		t.Fatalf("write legacy config: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got.Language != "de" {
		t.Fatalf("expected legacy file to merge, got %q", got.Language)
	}
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	key, err := cfg.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey failed: %v", err)
	}
	c := cfg.Config{
		Database:   cfg.DatabaseConfig{Type: "sqlite", DSN: "./keykeeper.db"},
		Language:   "en",
		Encryption: cfg.EncryptionConfig{MasterKey: key},
	}
	if err := cfg.WriteConfigFile(&c, false); err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}

	path, err := cfg.ConfigFilePath(false)
	if err != nil {
		t.Fatalf("ConfigFilePath failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &path)
	if err != nil {
		t.Fatalf("LoadConfig after write failed: %v", err)
	}
	if got.Encryption.MasterKey != key {
		t.Fatalf("master key did not round-trip")
	}
}

func TestGenerateMasterKey(t *testing.T) {
	first, err := cfg.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(first)
	if err != nil {
		t.Fatalf("master key is not base64: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 key bytes, got %d", len(raw))
	}
	second, err := cfg.GenerateMasterKey()
	if err != nil {
		t.Fatalf("second GenerateMasterKey failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct keys per call")
	}
}

func TestResolveMasterKey(t *testing.T) {
	t.Setenv("KEYKEEPER_MASTER_KEY", "")

	raw := []byte("0123456789abcdef0123456789abcdef")
	encoded := base64.StdEncoding.EncodeToString(raw)

	c := cfg.Config{Encryption: cfg.EncryptionConfig{MasterKey: encoded}}
	got, err := cfg.ResolveMasterKey(c)
	if err != nil {
		t.Fatalf("ResolveMasterKey failed: %v", err)
	}
	if !bytes.Equal(got.Bytes(), raw) {
		t.Fatalf("config master key did not decode")
	}

	// The environment variable wins over the config value.
	envRaw := []byte("ffffffffffffffffffffffffffffffff")
	t.Setenv("KEYKEEPER_MASTER_KEY", base64.StdEncoding.EncodeToString(envRaw))
	got, err = cfg.ResolveMasterKey(c)
	if err != nil {
		t.Fatalf("ResolveMasterKey with env failed: %v", err)
	}
	if !bytes.Equal(got.Bytes(), envRaw) {
		t.Fatalf("env master key should override config")
	}

	t.Setenv("KEYKEEPER_MASTER_KEY", "")
	if _, err := cfg.ResolveMasterKey(cfg.Config{}); err == nil || !strings.Contains(err.Error(), "keykeeper init") {
		t.Fatalf("expected guidance error without a key, got: %v", err)
	}

	if _, err := cfg.ResolveMasterKey(cfg.Config{Encryption: cfg.EncryptionConfig{MasterKey: "%%%not-base64%%%"}}); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}

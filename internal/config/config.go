// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads and writes the keykeeper configuration file. The
// config carries the database coordinates, the UI language and the at-rest
// master key, which is why written files are always 0600.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toeirei/keykeeper/internal/security"
)

// Config is the on-disk configuration shape.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	Language   string           `mapstructure:"language" yaml:"language"`
	Encryption EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	DSN  string `mapstructure:"dsn" yaml:"dsn"`
}

// EncryptionConfig holds the base64-encoded at-rest master key.
type EncryptionConfig struct {
	MasterKey string `mapstructure:"master_key" yaml:"master_key"`
}

// Defaults returns the default configuration values keyed the way viper
// expects them.
func Defaults() map[string]any {
	return map[string]any{
		"database.type":         "sqlite",
		"database.dsn":          "./keykeeper.db",
		"language":              "en",
		"encryption.master_key": "",
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		// System-wide configuration paths
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Keykeeper")
		default: // Linux, macOS, etc.
			configDir = "/etc/keykeeper"
		}
	} else {
		// User-specific configuration paths
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "keykeeper")
	}

	return filepath.Join(configDir, "keykeeper.yaml"), nil
}

// LoadConfig builds the effective configuration from defaults, the config
// file, environment variables (KEYKEEPER_*) and the command's flags, in
// ascending precedence.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	// 1. Set defaults
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// 2. Set up file search paths
	v.SetConfigName("keykeeper")
	v.SetConfigType("yaml")

	// 3. An explicit --config path wins over the search locations.
	if explicitPath != nil {
		v.SetConfigFile(*explicitPath)
	}

	// 4. Add standard config locations
	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".") // Look for keykeeper.yaml in current dir

	// 5. Read in the primary config file.
	if err := v.ReadInConfig(); err != nil {
		// It's okay if the file is not found, but other errors are fatal.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	// 6. Merge a legacy `.keykeeper.yaml` from the current directory.
	mergeLegacyConfig(v)

	// 7. Read from environment variables
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("keykeeper")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 8. Command-line flags take precedence over everything else.
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	return c, nil
}

// mergeLegacyConfig checks for a `.keykeeper.yaml` file in the current
// directory and merges it into the viper configuration if found.
func mergeLegacyConfig(v *viper.Viper) {
	legacyConfigFile := ".keykeeper.yaml"
	if _, err := os.Stat(legacyConfigFile); err == nil {
		v.SetConfigFile(legacyConfigFile)
		// A malformed legacy file should not break startup.
		_ = v.MergeInConfig()
		v.SetConfigFile("")
	}
}

// WriteConfigFile marshals the config and writes it to the user (or system)
// config location with 0600 permissions.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600: the file carries the master key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}
	return nil
}

// ConfigFilePath returns where WriteConfigFile would place the file, for
// user-facing messages.
func ConfigFilePath(system bool) (string, error) {
	return getConfigPath(system)
}

// GenerateMasterKey produces a fresh random master key, base64-encoded for
// the config file.
func GenerateMasterKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("could not generate master key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ResolveMasterKey returns the decoded master key. The KEYKEEPER_MASTER_KEY
// environment variable overrides the config value, so deployments can keep
// the key out of the file entirely.
func ResolveMasterKey(c Config) (security.Secret, error) {
	encoded := os.Getenv("KEYKEEPER_MASTER_KEY")
	if encoded == "" {
		encoded = c.Encryption.MasterKey
	}
	if encoded == "" {
		return nil, fmt.Errorf("no master key configured. run 'keykeeper init' or set KEYKEEPER_MASTER_KEY")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid base64: %w", err)
	}
	return security.FromBytes(raw), nil
}

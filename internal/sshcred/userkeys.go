// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package sshcred

import (
	"os"
	"path/filepath"

	"github.com/toeirei/keykeeper/internal/logging"
)

// homeCandidates are the well-known private key filenames under ~/.ssh, in
// priority order. Ed25519 leads, then the historical set ssh clients have
// looked for over the years.
var homeCandidates = []string{"id_ed25519", "id_ecdsa", "id_rsa", "id_dsa", "identity"}

// homeDirFunc is swapped in tests to point the scan at a temp directory.
var homeDirFunc = os.UserHomeDir

// UserHomeScanSource resolves keys from the invoking user's ~/.ssh
// directory. It persists no fields of its own; the home directory is looked
// up fresh on every resolution.
type UserHomeScanSource struct {
	stale stalenessCache
}

// NewUserHomeScan returns a source scanning the running user's SSH keys.
func NewUserHomeScan() *UserHomeScanSource {
	return &UserHomeScanSource{}
}

// sshDir resolves ~/.ssh, or "" when no home directory is available.
func (s *UserHomeScanSource) sshDir() string {
	home, err := homeDirFunc()
	if err != nil {
		logging.Warnf("could not determine home directory: %v", err)
		return ""
	}
	return filepath.Join(home, ".ssh")
}

// FetchKeys returns the contents of every candidate key file that exists,
// in candidate order. Unreadable files cost only themselves.
func (s *UserHomeScanSource) FetchKeys() []string {
	dir := s.sshDir()
	if dir == "" {
		return nil
	}
	var keys []string
	for _, name := range homeCandidates {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Warnf("could not read private key file %s: %v", path, err)
			}
			continue
		}
		keys = append(keys, string(data))
	}
	return keys
}

// StalenessToken reports the newest modification time across the candidate
// files, or absentToken when none exist, with the same poll-interval
// sampling as FileReferenceSource.
func (s *UserHomeScanSource) StalenessToken() int64 {
	return s.stale.sample(func() int64 {
		dir := s.sshDir()
		if dir == "" {
			return absentToken
		}
		newest := absentToken
		for _, name := range homeCandidates {
			fi, err := os.Stat(filepath.Join(dir, name))
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
			if mod := fi.ModTime().UnixMilli(); mod > newest {
				newest = mod
			}
		}
		return newest
	})
}

// SelfContained is false: the scan depends on whatever machine runs it.
func (s *UserHomeScanSource) SelfContained() bool { return false }

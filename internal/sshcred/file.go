// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package sshcred

import (
	"os"
	"strings"

	"github.com/toeirei/keykeeper/internal/logging"
	"github.com/toeirei/keykeeper/internal/security"
)

// FileReferenceSource reads key material from a single file path on the
// store host. The file's modification time doubles as the staleness token,
// sampled at most once per poll interval.
type FileReferenceSource struct {
	path  string
	stale stalenessCache
}

// NewFileReference builds a source reading from path.
//
// Definitions written by a defective early release stored inline key text in
// the path field. Those are recognizable because a filesystem path never
// starts with dashes, and are upgraded in place to a DirectEntrySource so
// the old data keeps working without ever hitting the filesystem.
func NewFileReference(path string) Source {
	if looksLikeInlineKey(path) {
		logging.Debugf("upgrading corrupted key file path to direct entry")
		return NewDirectEntry(security.FromString(path))
	}
	return &FileReferenceSource{path: path}
}

func looksLikeInlineKey(path string) bool {
	return strings.HasPrefix(path, "---") &&
		strings.Contains(path, "---BEGIN") &&
		strings.Contains(path, "---END")
}

// FetchKeys returns the file contents as a single-element sequence, or an
// empty sequence when the file is missing or unreadable.
func (s *FileReferenceSource) FetchKeys() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		logging.Warnf("could not read private key file %s: %v", s.path, err)
		return nil
	}
	return []string{string(data)}
}

// StalenessToken reports the file's modification time in Unix milliseconds,
// or absentToken while the file does not exist.
func (s *FileReferenceSource) StalenessToken() int64 {
	return s.stale.sample(func() int64 {
		fi, err := os.Stat(s.path)
		if err != nil || !fi.Mode().IsRegular() {
			return absentToken
		}
		return fi.ModTime().UnixMilli()
	})
}

// SelfContained is false: the path is meaningless on any other host.
func (s *FileReferenceSource) SelfContained() bool { return false }

// Path exposes the configured file path for persistence.
func (s *FileReferenceSource) Path() string { return s.path }

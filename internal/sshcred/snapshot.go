// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

package sshcred

// Snapshot returns a self-contained equivalent of cred for crossing a
// serialization boundary.
//
// A credential backed by a self-contained source is returned as-is, same
// instance. Anything else gets rebuilt around a DirectEntrySource holding
// the keys as resolved right now: a file path or a home-directory scan
// means nothing on the other side of the boundary, so the material is
// frozen at the moment of crossing.
func Snapshot(cred *Credential) *Credential {
	if cred.Source().SelfContained() {
		return cred
	}
	return New(
		cred.Scope(),
		cred.ID(),
		cred.Username(),
		NewDirectEntryFromKeys(cred.Keys()),
		cred.Passphrase(),
		cred.Description(),
	)
}

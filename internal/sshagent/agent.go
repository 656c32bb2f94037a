// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshagent loads stored credentials into a running ssh-agent. The
// agent is located per platform: the SSH_AUTH_SOCK Unix socket on POSIX
// systems, Pageant or the OpenSSH named pipe on Windows.
package sshagent // import "github.com/toeirei/keykeeper/internal/sshagent"

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh/agent"

	"github.com/toeirei/keykeeper/internal/logging"
	"github.com/toeirei/keykeeper/internal/sshcred"
)

// ErrNoAgent is returned when no running ssh-agent can be reached.
var ErrNoAgent = errors.New("no running ssh-agent found")

// Connect locates and connects to the system's ssh-agent.
func Connect() (agent.Agent, error) {
	if ag := systemAgent(); ag != nil {
		return ag, nil
	}
	return nil, ErrNoAgent
}

// AddCredential resolves the credential's keys and adds each one to the
// agent. Keys that fail to parse or that the agent rejects are skipped; the
// call fails only when nothing could be added. A zero lifetime adds keys
// without expiry.
func AddCredential(ag agent.Agent, cred *sshcred.Credential, lifetime time.Duration) (int, error) {
	keys := cred.Keys()
	if len(keys) == 0 {
		return 0, fmt.Errorf("credential %s resolves no private keys", cred.ID())
	}

	comment := "keykeeper:" + cred.ID()
	added := 0
	for _, keyText := range keys {
		raw, err := sshcred.RawKeyForKey(keyText, cred.Passphrase())
		if err != nil {
			logging.Warnf("skipping key for credential %s: %v", cred.ID(), err)
			continue
		}
		if err := ag.Add(agent.AddedKey{
			PrivateKey:   raw,
			Comment:      comment,
			LifetimeSecs: uint32(lifetime / time.Second),
		}); err != nil {
			logging.Warnf("agent rejected key for credential %s: %v", cred.ID(), err)
			continue
		}
		added++
	}
	if added == 0 {
		return 0, fmt.Errorf("no key from credential %s could be added to the agent", cred.ID())
	}
	return added, nil
}

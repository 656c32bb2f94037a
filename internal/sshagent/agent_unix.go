//go:build !windows
// +build !windows

// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// This file contains the Unix-specific implementation for locating the SSH agent.
package sshagent

import (
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
)

// systemAgent attempts to connect to a running SSH agent on Unix-like
// systems via the socket path in SSH_AUTH_SOCK.
func systemAgent() agent.Agent {
	if sshAgentSocket := os.Getenv("SSH_AUTH_SOCK"); sshAgentSocket != "" {
		if conn, err := net.Dial("unix", sshAgentSocket); err == nil {
			return agent.NewClient(conn)
		}
	}
	return nil
}

// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transfer moves exported credential bundles to remote hosts over
// SSH/SFTP. Remote hosts are authenticated against the known_hosts table
// only; there is no trust-on-first-use. Authentication uses a stored
// credential's resolved keys, with a running ssh-agent as fallback.
package transfer // import "github.com/toeirei/keykeeper/internal/transfer"

import (
	"fmt"
	"net"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/toeirei/keykeeper/internal/db"
	"github.com/toeirei/keykeeper/internal/sshagent"
	"github.com/toeirei/keykeeper/internal/sshcred"
)

// Pusher handles the connection and bundle upload to a remote host.
type Pusher struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// verifyHostKey checks a presented host key against the pinned key in the
// known_hosts table. An unpinned host is an error; pushing key material to a
// host nobody has vouched for is exactly what this check exists to prevent.
func verifyHostKey(host string, key ssh.PublicKey) error {
	// The key is presented in the format "ssh-ed25519 AAA..."
	presentedKey := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))

	knownKey, err := db.GetKnownHostKey(host)
	if err != nil {
		return fmt.Errorf("failed to query known_hosts database: %w", err)
	}
	if knownKey == "" {
		return fmt.Errorf("unknown host key for %s. run 'keykeeper trust-host' to add it", host)
	}
	if strings.TrimSpace(knownKey) != presentedKey {
		return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
	}
	return nil
}

func hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	// The hostname passed to the callback can include the port. Strip it so
	// the lookup matches what trust-host stored.
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}
	return verifyHostKey(host, key)
}

func withDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, "22")
	}
	return host
}

// NewPusher connects to host as user. When cred is non-nil its resolved keys
// are tried first; on an authentication failure (and only then) a running
// ssh-agent is used as fallback.
func NewPusher(host, user string, cred *sshcred.Credential) (*Pusher, error) {
	addr := withDefaultPort(host)
	var finalErr error

	if cred != nil {
		signers, err := cred.Signers()
		if err != nil {
			return nil, err
		}
		config := &ssh.ClientConfig{
			User:            user,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signers...)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         10 * time.Second,
		}
		client, err := ssh.Dial("tcp", addr, config)
		if err == nil {
			return newPusher(client)
		}
		// A host key or network failure should not be retried with other
		// credentials; only an auth rejection falls through to the agent.
		if !strings.Contains(err.Error(), "unable to authenticate") {
			return nil, fmt.Errorf("connection with credential %s failed: %w", cred.ID(), err)
		}
		finalErr = err
	}

	agentClient, err := sshagent.Connect()
	if err != nil {
		if finalErr != nil {
			return nil, fmt.Errorf("credential authentication failed, and no SSH agent available for fallback: %w", finalErr)
		}
		return nil, fmt.Errorf("no authentication method available (no credential selected and no ssh agent found)")
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
	}
	return newPusher(client)
}

func newPusher(client *ssh.Client) (*Pusher, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	return &Pusher{client: client, sftp: sftpClient}, nil
}

// PushBundle uploads bundle content to destPath and moves it into place
// atomically. The upload goes to a temporary name in the destination
// directory, gets chmodded to 0600, then is renamed over the target, so a
// reader never sees a half-written bundle.
func (p *Pusher) PushBundle(content []byte, destPath string) error {
	if dir := path.Dir(destPath); dir != "." && dir != "/" {
		_ = p.sftp.MkdirAll(dir) // Ignore error if it already exists.
	}

	tmpPath := fmt.Sprintf("%s.keykeeper.%d", destPath, time.Now().UnixNano())
	f, err := p.sftp.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file on remote: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		// Best effort to clean up the failed upload
		_ = p.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to write to temporary file on remote: %w", err)
	}
	f.Close()

	if err := p.sftp.Chmod(tmpPath, 0600); err != nil {
		_ = p.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temporary file: %w", err)
	}
	if err := p.sftp.Rename(tmpPath, destPath); err != nil {
		_ = p.sftp.Remove(tmpPath)
		return fmt.Errorf("failed to atomically rename bundle file: %w", err)
	}
	return nil
}

// Close closes the underlying SSH and SFTP clients.
func (p *Pusher) Close() {
	if p.sftp != nil {
		p.sftp.Close()
	}
	if p.client != nil {
		p.client.Close()
	}
}

// FetchHostKey connects to a host just to retrieve its public key, for the
// trust-host flow. The handshake is aborted as soon as the key arrives.
func FetchHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		// No authentication needed, the key arrives during the handshake.
		User: "keykeeper-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			// Return a specific error to gracefully stop the handshake.
			return fmt.Errorf("keykeeper: successfully retrieved host key")
		},
		Timeout: 5 * time.Second,
	}

	addr := withDefaultPort(host)

	// ssh.Dial is expected to fail with the sentinel error from the callback.
	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), "keykeeper: successfully retrieved host key") {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}
	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}

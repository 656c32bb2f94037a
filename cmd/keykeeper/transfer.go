// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// transfer.go holds the subcommands that talk to remote hosts: push, which
// deploys a credential's public key, and trust-host, which pins a host key.

package main

import (
	"fmt"
	"net"
	"os"
	"strings"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/toeirei/keykeeper/internal/db"
	"github.com/toeirei/keykeeper/internal/i18n"
	"github.com/toeirei/keykeeper/internal/sshcred"
	"github.com/toeirei/keykeeper/internal/sshkey"
	"github.com/toeirei/keykeeper/internal/transfer"
	"golang.org/x/crypto/ssh"
)

var (
	pushAuth string
	pushDest string
)

// pushCmd represents the 'push' command.
// It installs a credential's public key on a remote host so the credential
// can log in there.
var pushCmd = &cobra.Command{
	Use:   "push <id> <user@host>",
	Short: "Deploy a credential's public key to a remote host",
	Long: `Derives the public key of the stored credential and uploads it to the
remote host over SFTP, written atomically with mode 0600. The remote host
must have been trusted with 'keykeeper trust-host' first.

Authentication uses the credential named by --auth, falling back to the
local ssh-agent. The private key being pushed never leaves the store.

The destination defaults to '.ssh/keykeeper_authorized_keys' so an existing
authorized_keys file is never overwritten; point your sshd at it with an
additional AuthorizedKeysFile entry, or pass --dest explicitly.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		id, target := args[0], args[1]

		var user, host string
		if parts := splitUserHost(target); parts != nil {
			user = parts[0]
			host = parts[1]
		} else {
			log.Fatalf("%s", i18n.T("push.error_invalid_target", target))
		}

		live := mustLive(id)
		line, err := live.PublicKeyLine()
		if err != nil {
			log.Fatalf("%s", i18n.T("pubkey.error_derive", err))
		}

		var authCred *sshcred.Credential
		if pushAuth != "" {
			authCred = mustLive(pushAuth)
		}

		fmt.Println(i18n.T("push.starting", id, target))
		pusher, err := transfer.NewPusher(host, user, authCred)
		if err != nil {
			// The host key callback's error only survives the handshake as
			// text, so the unpinned-host case is matched on it.
			if strings.Contains(err.Error(), "unknown host key") {
				log.Fatalf("%s", i18n.T("push.host_not_trusted", host, host))
			}
			log.Fatalf("%s", i18n.T("push.error_connect", target, err))
		}
		defer pusher.Close()

		if err := pusher.PushBundle([]byte(line), pushDest); err != nil {
			log.Fatalf("%s", i18n.T("push.error_upload", err))
		}
		fmt.Println(i18n.T("push.success", id, target))
	},
}

// trustHostCmd represents the 'trust-host' command.
// It facilitates the initial trust of a new host by fetching its public SSH
// key, displaying its fingerprint, and prompting the user to save it as a
// known host. Keykeeper never trusts a host on first use by itself.
var trustHostCmd = &cobra.Command{
	Use:   "trust-host <host>",
	Short: "Fetch a host's public key and pin it",
	Long: `Connects to a host, retrieves its public key and, after confirmation,
pins it in the database. 'push' refuses to talk to hosts that have not been
trusted this way. A user@ prefix and a :port suffix are accepted.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]
		hostname := target
		if parts := splitUserHost(target); parts != nil {
			hostname = parts[1]
		}
		// Pins are stored without the port, matching how they are looked up
		// during connection.
		storeHost := hostname
		if h, _, err := net.SplitHostPort(hostname); err == nil {
			storeHost = h
		}

		fmt.Println(i18n.T("trust_host.fetching", hostname))
		key, err := transfer.FetchHostKey(hostname)
		if err != nil {
			log.Fatalf("%s", i18n.T("trust_host.error_fetch", err))
		}

		fmt.Println(i18n.T("trust_host.authenticity", storeHost))
		fmt.Println(i18n.T("trust_host.fingerprint", key.Type(), ssh.FingerprintSHA256(key)))
		if warn := sshkey.CheckHostKeyAlgorithm(key); warn != "" {
			fmt.Println(warn)
		}

		answer := promptForConfirmation(i18n.T("trust_host.confirm_prompt"))
		if answer != "yes" && answer != "y" {
			fmt.Println(i18n.T("trust_host.aborted"))
			os.Exit(1)
		}

		line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(key)))
		previous, _ := db.GetKnownHostKey(storeHost)
		if err := db.AddKnownHostKey(storeHost, key.Type(), line); err != nil {
			log.Fatalf("%s", i18n.T("trust_host.error_save", err))
		}
		if previous != "" && previous != line {
			fmt.Println(i18n.T("trust_host.replaced", storeHost))
		} else {
			fmt.Println(i18n.T("trust_host.added_success", key.Type(), storeHost))
		}
	},
}

// splitUserHost splits a user@host identifier into components.
func splitUserHost(s string) []string {
	if s == "" {
		return nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			return []string{s[:i], s[i+1:]}
		}
	}
	return nil
}

func init() {
	pushCmd.Flags().StringVar(&pushAuth, "auth", "", "Credential ID used to authenticate (default: local ssh-agent)")
	pushCmd.Flags().StringVar(&pushDest, "dest", ".ssh/keykeeper_authorized_keys", "Remote path the public key is written to")
}

// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// credentials.go holds the credential lifecycle subcommands: add, list,
// show, rm, pubkey and agent-load.

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/toeirei/keykeeper/internal/db"
	"github.com/toeirei/keykeeper/internal/i18n"
	"github.com/toeirei/keykeeper/internal/model"
	"github.com/toeirei/keykeeper/internal/security"
	"github.com/toeirei/keykeeper/internal/sshagent"
	"golang.org/x/crypto/ssh"
)

var (
	addScope         string
	addUsername      string
	addDescription   string
	addKeyFile       string
	addKeyText       bool
	addFromHome      bool
	addPassphrase    string
	addAskPassphrase bool
)

// addCmd stores a new credential. The key source follows from which flag is
// set: --key-text reads PEM from stdin and stores it in the database,
// --key-file stores the path and reads the file on every resolution,
// --from-home stores no location at all and scans ~/.ssh at runtime.
var addCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Store a new SSH credential",
	Long: `Stores a credential under the given ID. Exactly one key source must be
chosen:

  --key-text   read private key text from stdin and keep it in the store
  --key-file   keep only the path; the file is re-read when keys change
  --from-home  resolve keys from the invoking user's ~/.ssh at runtime

Multiple keys can be supplied to --key-text by concatenating PEM blocks.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]

		scope, err := model.ParseScope(addScope)
		if err != nil {
			log.Fatalf("%v", err)
		}

		sources := 0
		if addKeyText {
			sources++
		}
		if addKeyFile != "" {
			sources++
		}
		if addFromHome {
			sources++
		}
		if sources == 0 {
			log.Fatalf("%s", i18n.T("add.error_no_source"))
		}
		if sources > 1 {
			log.Fatalf("%s", i18n.T("add.error_conflicting_sources"))
		}

		cred := model.Credential{
			ID:          id,
			Scope:       scope,
			Username:    addUsername,
			Description: addDescription,
		}
		switch {
		case addKeyText:
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				log.Fatalf("%s", i18n.T("add.error_store", err))
			}
			cred.Source = model.SourceDirect
			cred.KeyText = security.FromBytes(data)
		case addKeyFile != "":
			cred.Source = model.SourceFile
			cred.KeyFile = addKeyFile
		case addFromHome:
			cred.Source = model.SourceHome
		}

		if addAskPassphrase {
			pass, err := promptForPassphrase(i18n.T("common.passphrase_prompt"))
			if err != nil {
				log.Fatalf("%s", i18n.T("common.error_read_passphrase", err))
			}
			cred.Passphrase = pass
		} else if addPassphrase != "" {
			cred.Passphrase = security.FromString(addPassphrase)
		}

		if err := reg.Add(cred); err != nil {
			log.Fatalf("%s", i18n.T("add.error_store", err))
		}
		fmt.Println(i18n.T("add.success", id))

		// A credential with no resolvable keys is legal (the file may appear
		// later), but worth flagging right away.
		if live, err := reg.Live(id); err == nil && len(live.Keys()) == 0 {
			fmt.Println(i18n.T("add.warn_no_keys", id))
		}
	},
}

// listCmd prints a table of stored credentials. Key material is neither
// decrypted nor resolved for this.
var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List stored credentials",
	Args:    cobra.NoArgs,
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		creds, err := reg.List()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if len(creds) == 0 {
			fmt.Println(i18n.T("list.empty"))
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, i18n.T("list.header"))
		for _, c := range creds {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Scope, c.Username, sourceLabel(c.Source), c.Description)
		}
		w.Flush()
	},
}

// showCmd prints one credential's metadata plus how many keys currently
// resolve. The key material itself is never printed.
var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show details of a stored credential",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		cred, err := reg.Get(id)
		if err != nil {
			if err == db.ErrNotFound {
				log.Fatalf("%s", i18n.T("common.error_credential_not_found", id))
			}
			log.Fatalf("%v", err)
		}

		fmt.Printf("ID:          %s\n", cred.ID)
		fmt.Printf("Scope:       %s\n", cred.Scope)
		if cred.Username != "" {
			fmt.Printf("Username:    %s\n", cred.Username)
		}
		if cred.Description != "" {
			fmt.Printf("Description: %s\n", cred.Description)
		}
		source := sourceLabel(cred.Source)
		if cred.Source == model.SourceFile {
			source = fmt.Sprintf("%s (%s)", source, cred.KeyFile)
		}
		fmt.Printf("Source:      %s\n", source)
		if !cred.CreatedAt.IsZero() {
			fmt.Printf("Created:     %s\n", cred.CreatedAt.Format(time.RFC3339))
		}
		if !cred.UpdatedAt.IsZero() {
			fmt.Printf("Updated:     %s\n", cred.UpdatedAt.Format(time.RFC3339))
		}
		if cred.Passphrase.IsEmpty() {
			fmt.Println(i18n.T("show.passphrase_unset"))
		} else {
			fmt.Println(i18n.T("show.passphrase_set"))
		}

		if live, err := reg.Live(id); err == nil {
			fmt.Println(i18n.T("show.keys_resolved", len(live.Keys())))
		}
	},
}

// rmCmd deletes a credential and its sealed key material.
var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Short:   "Remove a stored credential",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		if err := reg.Delete(id); err != nil {
			if err == db.ErrNotFound {
				log.Fatalf("%s", i18n.T("common.error_credential_not_found", id))
			}
			log.Fatalf("%s", i18n.T("rm.error_delete", err))
		}
		fmt.Println(i18n.T("rm.success", id))
	},
}

var pubkeyCopy bool

// pubkeyCmd derives the authorized_keys line from the credential's primary
// private key. The line goes to stdout so it can be piped; the fingerprint
// goes to stderr.
var pubkeyCmd = &cobra.Command{
	Use:     "pubkey <id>",
	Short:   "Print the public key for a credential",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		live := mustLive(id)

		line, err := live.PublicKeyLine()
		if err != nil {
			log.Fatalf("%s", i18n.T("pubkey.error_derive", err))
		}

		if pub, _, _, _, perr := ssh.ParseAuthorizedKey([]byte(line)); perr == nil {
			fmt.Fprintln(os.Stderr, i18n.T("pubkey.fingerprint", ssh.FingerprintSHA256(pub)))
		}

		if pubkeyCopy {
			if err := clipboard.WriteAll(line); err != nil {
				log.Fatalf("%v", err)
			}
			fmt.Println(i18n.T("pubkey.copied", id))
			return
		}
		fmt.Print(line)
	},
}

var agentLifetime time.Duration

// agentLoadCmd adds a credential's private keys to the local ssh-agent, so
// tools that only speak the agent protocol can use stored credentials.
var agentLoadCmd = &cobra.Command{
	Use:     "agent-load <id>",
	Short:   "Load a credential's keys into the local ssh-agent",
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		live := mustLive(id)

		ag, err := sshagent.Connect()
		if err != nil {
			log.Fatalf("%s", i18n.T("agent.error_connect", err))
		}
		added, err := sshagent.AddCredential(ag, live, agentLifetime)
		if err != nil {
			log.Fatalf("%s", i18n.T("agent.error_add", err))
		}
		fmt.Println(i18n.T("agent.loaded", added, id))
	},
}

// sourceLabel localizes a source kind for display.
func sourceLabel(kind model.SourceKind) string {
	return i18n.T("source." + string(kind))
}

func init() {
	addCmd.Flags().StringVar(&addScope, "scope", "global", `Credential scope ("global" or "system")`)
	addCmd.Flags().StringVarP(&addUsername, "username", "u", "", "Username the credential belongs to")
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Free-form description")
	addCmd.Flags().StringVar(&addKeyFile, "key-file", "", "Path to a private key file (stored as a reference)")
	addCmd.Flags().BoolVar(&addKeyText, "key-text", false, "Read private key text from stdin")
	addCmd.Flags().BoolVar(&addFromHome, "from-home", false, "Resolve keys from ~/.ssh at runtime")
	addCmd.Flags().StringVar(&addPassphrase, "passphrase", "", "Passphrase for the private key (prefer --ask-passphrase)")
	addCmd.Flags().BoolVar(&addAskPassphrase, "ask-passphrase", false, "Prompt for the passphrase without echo")

	pubkeyCmd.Flags().BoolVar(&pubkeyCopy, "copy", false, "Copy the public key to the clipboard instead of printing it")

	agentLoadCmd.Flags().DurationVar(&agentLifetime, "lifetime", 0, "Remove the keys from the agent after this duration (0 keeps them)")
}

// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// bundle.go holds the export and import subcommands for moving credentials
// between Keykeeper instances.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/toeirei/keykeeper/internal/i18n"
)

// exportCmd represents the 'export' command.
// It serializes every stored credential into a compressed bundle file.
var exportCmd = &cobra.Command{
	Use:   "export [output-file]",
	Short: "Export all credentials to a compressed (zstd) JSON bundle",
	Long: `Writes every stored credential into a single Zstandard-compressed JSON
bundle. Credentials backed by files or the user's ~/.ssh are materialized
first, so the bundle carries the key text itself and imports cleanly on a
machine where those paths do not exist.

The bundle contains DECRYPTED private keys and passphrases. It is written
with mode 0600; treat it like a private key file and delete it after the
transfer.

If an output file is specified, '.zst' will be appended to the name if it's
not already present. If no output file is specified, a default filename
'keykeeper-export-YYYY-MM-DD.json.zst' is used.

Examples:
  # Export to a default file (e.g., keykeeper-export-2026-08-25.json.zst)
  keykeeper export

  # Export to a specific file
  keykeeper export handover.json`, // .zst will be appended
	Args:    cobra.MaximumNArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		var outputFile string
		if len(args) == 0 {
			outputFile = fmt.Sprintf("keykeeper-export-%s.json.zst", time.Now().Format("2006-01-02"))
		} else {
			outputFile = args[0]
			if !strings.HasSuffix(outputFile, ".zst") {
				outputFile += ".zst"
			}
		}
		fmt.Println(i18n.T("export.starting"))

		// 0600 because the bundle holds plaintext key material.
		outf, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			log.Fatalf("%s", i18n.T("export.error_write", err))
		}
		defer func() { _ = outf.Close() }()

		count, err := reg.Export(outf)
		if err != nil {
			_ = os.Remove(outputFile)
			log.Fatalf("%s", i18n.T("export.error_collect", err))
		}
		fmt.Println(i18n.T("export.success", count, outputFile))
	},
}

var importReplace bool

// importCmd represents the 'import' command.
// It reads a bundle produced by 'export' and stores its credentials.
var importCmd = &cobra.Command{
	Use:   "import <bundle-file.zst>",
	Short: "Import credentials from an exported bundle",
	Long: `Reads a Zstandard-compressed JSON bundle produced by 'keykeeper export'
and stores its credentials. Imported credentials always become direct-entry
sources, because the bundle carries materialized key text.

Credentials whose ID already exists are skipped unless --replace is given.

Example:
  keykeeper import ./keykeeper-export-2026-08-25.json.zst`,
	Args:    cobra.ExactArgs(1),
	PreRunE: setupServices,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile := args[0]
		fmt.Println(i18n.T("import.starting", inputFile))

		f, err := os.Open(inputFile)
		if err != nil {
			log.Fatalf("%s", i18n.T("import.error_read", err))
		}
		defer func() { _ = f.Close() }()

		res, err := reg.Import(f, importReplace)
		if err != nil {
			log.Fatalf("%s", i18n.T("import.error_decode", err))
		}
		fmt.Println(i18n.T("import.success", res.Added+res.Replaced, res.Skipped))
	},
}

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "Overwrite existing credentials with the bundle's version")
}

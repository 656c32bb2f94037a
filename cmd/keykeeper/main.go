// Copyright (c) 2026 Keykeeper Team
// Keykeeper - SSH credential store for automation platforms
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface (CLI) for the Keykeeper
// application using the Cobra library. It defines the root command, wires the
// configuration, i18n and storage services, and registers the subcommands
// (add, list, export, push and friends).

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/toeirei/keykeeper/buildvars"
	"github.com/toeirei/keykeeper/internal/config"
	"github.com/toeirei/keykeeper/internal/db"
	"github.com/toeirei/keykeeper/internal/i18n"
	"github.com/toeirei/keykeeper/internal/registry"
	"github.com/toeirei/keykeeper/internal/security"
	"github.com/toeirei/keykeeper/internal/sshcred"
	"golang.org/x/term"
)

var cfgFile string
var verbose bool

// appConfig holds the merged configuration once the root command has run.
var appConfig config.Config

// reg is the credential registry shared by the store-backed subcommands. It
// is populated by setupServices.
var reg *registry.Registry

// main is the entry point of the application.
func main() {
	if err := rootCmd.Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd()
}

// newRootCmd creates and configures a new root cobra command.
// This function is used to create the main application command as well as
// fresh instances for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keykeeper",
		Short: "Keykeeper is an encrypted store for the SSH keys your automation uses.",
		Long: `Keykeeper keeps the SSH private keys of service accounts and build
agents in one encrypted database instead of scattered across job
configs and homedirs. Keys can be pasted in directly, referenced from
a file on disk, or picked up from the user's ~/.ssh directory; either
way jobs resolve them by ID and never see where they came from.`,
		PersistentPreRunE: loadAppConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = buildvars.VersionOrDefault("dev")

	// Define flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is keykeeper.yaml next to the user config dir)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().String("database.type", "sqlite", "Database type (e.g., sqlite, postgres, mysql)")
	cmd.PersistentFlags().String("database.dsn", "./keykeeper.db", "Database connection string (DSN)")
	cmd.PersistentFlags().String("language", "en", `Output language ("en", "de")`)

	// Add subcommands to the newly created root command.
	cmd.AddCommand(
		initCmd,
		addCmd,
		listCmd,
		showCmd,
		rmCmd,
		pubkeyCmd,
		agentLoadCmd,
		exportCmd,
		importCmd,
		pushCmd,
		trustHostCmd,
		versionCmd,
	)

	return cmd
}

// loadAppConfig is the root PersistentPreRunE. It merges config file,
// environment and flags, then brings up i18n so every later message is
// localized. It deliberately does not touch the master key or the database;
// commands that need those set setupServices as their PreRunE.
func loadAppConfig(cmd *cobra.Command, args []string) error {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	explicitPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	// A missing config file just means we run on defaults; LoadConfig only
	// errors on a real problem.
	appConfig, err = config.LoadConfig[config.Config](cmd, config.Defaults(), explicitPath)
	if err != nil {
		return errors.New(i18n.T("config.error_load", err))
	}

	i18n.Init(appConfig.Language)
	return nil
}

// setupServices opens the encrypted store: master key, cipher, database,
// registry. Commands that read or write credentials use it as their PreRunE
// so that `keykeeper init` and `keykeeper version` still work on a machine
// with no master key configured.
func setupServices(cmd *cobra.Command, args []string) error {
	if reg != nil {
		return nil
	}

	master, err := config.ResolveMasterKey(appConfig)
	if err != nil {
		return err
	}
	cipher, err := security.NewCipher(master)
	master.Zero()
	if err != nil {
		return err
	}

	store, err := db.New(appConfig.Database.Type, appConfig.Database.DSN)
	if err != nil {
		return errors.New(i18n.T("common.error_init_db", err))
	}

	reg = registry.New(store, cipher)
	return nil
}

// getConfigPathFromCli returns the --config flag value when the user set it
// explicitly, after checking the file actually exists.
func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// mustLive fetches the live credential for id or exits with a localized
// error.
func mustLive(id string) *sshcred.Credential {
	live, err := reg.Live(id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			log.Fatalf("%s", i18n.T("common.error_credential_not_found", id))
		}
		log.Fatalf("%v", err)
	}
	return live
}

// promptForConfirmation displays a prompt and reads a line from stdin.
func promptForConfirmation(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	return strings.TrimSpace(strings.ToLower(answer))
}

// promptForPassphrase reads a passphrase from the terminal without echoing
// it. When stdin is not a terminal (tests, pipes) it falls back to reading a
// plain line.
func promptForPassphrase(prompt string) (security.Secret, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return nil, err
		}
		return security.FromBytes(raw), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	return security.FromString(strings.TrimRight(line, "\r\n")), nil
}

var initSystem bool

// initCmd writes a default configuration with a freshly generated master key
// and creates the database schema. Running it twice is safe; an existing
// master key is never overwritten.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the credential store and write a default config",
	Long: `Generates a master key, writes the default configuration file and
creates the database schema. An existing master key is kept, so re-running
init after changing database settings is safe.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(i18n.T("init.starting"))

		if appConfig.Encryption.MasterKey == "" && os.Getenv("KEYKEEPER_MASTER_KEY") == "" {
			key, err := config.GenerateMasterKey()
			if err != nil {
				log.Fatalf("%v", err)
			}
			appConfig.Encryption.MasterKey = key
		}

		if err := config.WriteConfigFile(&appConfig, initSystem); err != nil {
			log.Fatalf("%s", i18n.T("init.error_write_config", err))
		}
		if path, err := config.ConfigFilePath(initSystem); err == nil {
			fmt.Println(i18n.T("init.config_written", path))
		}

		if err := db.InitDB(appConfig.Database.Type, appConfig.Database.DSN); err != nil {
			log.Fatalf("%s", i18n.T("common.error_init_db", err))
		}
		fmt.Println(i18n.T("init.success", appConfig.Database.Type))
	},
}

// versionCmd prints the version baked in at build time, falling back to the
// module version recorded by the Go toolchain.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		resolved := buildvars.VersionOrDefault("dev")
		if info, ok := debug.ReadBuildInfo(); ok && resolved == "dev" {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				resolved = info.Main.Version
			}
		}
		fmt.Println(i18n.T("version.app", resolved))
	},
}

func init() {
	initCmd.Flags().BoolVar(&initSystem, "system", false, "Write the configuration to the system-wide location")
}

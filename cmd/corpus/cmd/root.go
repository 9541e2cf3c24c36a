// Package cmd provides the CLI commands for corpus.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/corpus/internal/config"
	"github.com/Aman-CERP/corpus/internal/logging"
	"github.com/Aman-CERP/corpus/pkg/version"
)

var (
	flagDataDir  string
	flagLogLevel string
)

// NewRootCmd creates the root command for the corpus CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Local-first hybrid document memory",
		Long: `Corpus stores free-form documents and PDF-derived passages and
retrieves them by keyword, meaning, or entity relationship.

One authoritative SQLite store backs three derived indexes (lexical,
vector, graph); queries fan out to all three and fuse the scores.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("corpus version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default: ~/.corpus)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig builds the effective config from file, env, and global flags.
func loadConfig() (*config.Config, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return cfg, nil
}

func configDir() (string, error) {
	// Config is read from the working directory; the data dir location
	// inside it may point anywhere.
	return ".", nil
}

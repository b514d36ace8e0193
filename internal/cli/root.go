// Package cli provides the command-line interface for complycheck.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/complycheck/internal/client"
	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string

	// Global config, logger and server client
	cfg         config.Config
	logger      *slog.Logger
	closeLogger = func() error { return nil }
	apiClient   *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "complycheck",
	Short: "Check documents against fixed compliance checklists",
	Long: `complycheck checks a document against one or more fixed compliance
checklists. Each requirement is answered from the passages of the document
that best match it, and the result is a verdict table with evidence pages.

Run a check in this process with 'run', or hand it to a complycheck-server
with 'submit' and follow it with 'watch'.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		url := serverURL
		if url == "" {
			url = cfg.ServerURL
		}
		apiClient = client.New(url)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := closeLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $COMPLYCHECK_SERVER_URL)")
}

// Package cmd provides CLI commands for billing-portal.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/billing-portal/pkg/config"
)

var (
	cfgFile  string
	debug    bool
	logLevel = new(slog.LevelVar)
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "billing-portal",
	Short: "Billing client portal with invoice PDF export",
	Long: `billing-portal serves a web portal where clients review their invoices,
payments and notifications from the billing API and download invoices as PDF.

It supports:
- Session-gated dashboard, invoice, payment and notification pages
- Sorting and filtering of invoice and payment tables
- PDF export over HTTP (POST /api/generate-pdf) and from the command line
- A local billing API emulator for development
- An optional SQLite history of exported invoices

Example:
  billing-portal emulator
  billing-portal serve
  billing-portal export --invoice <id> --email client@example.com --password password
  billing-portal history`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		if debug {
			logLevel.Set(slog.LevelDebug)
		}

		opts := &slog.HandlerOptions{Level: logLevel}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cmd.Annotations["log"] == "json" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		}
		slog.SetDefault(slog.New(handler))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(emulatorCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(historyCmd)
}

// loadConfig loads and validates the configuration.
func loadConfig(required ...[]string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
	}
	if err := cfg.Validate(required...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

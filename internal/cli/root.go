// Package cli provides the command-line client for a vidscribe server.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	serverURL string
	timeout   time.Duration

	client *Client
)

var rootCmd = &cobra.Command{
	Use:   "vidscribe",
	Short: "Submit videos for transcription",
	Long: `vidscribe talks to a running vidscribe server. Jobs are started with
"submit" and collected with "result"; "drive-auth" authorizes the optional
Google Drive archive.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		client = NewClient(serverURL, timeout)
	},
}

// ExecuteContext runs the root command with ctx available to subcommands.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	defaultURL := os.Getenv("VIDSCRIBE_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:10000"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "server base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "http-timeout", 30*time.Second, "per-request timeout")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(driveAuthCmd)
}

// Fatal prints err and exits with code 1.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/vidscribe/internal/config"
	"github.com/codebuildervaibhav/vidscribe/internal/storage"
)

var driveAuthConfig string

var driveAuthCmd = &cobra.Command{
	Use:   "drive-auth",
	Short: "Authorize the Google Drive transcript archive",
	Long: `Run the OAuth consent flow for the Drive archive and write the token
file named in the server config. The server never prompts; it only reads
the token written here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(driveAuthConfig)
		if err != nil {
			return err
		}
		gd := cfg.GoogleDrive
		if gd.CredentialsFile == "" || gd.TokenFile == "" {
			return fmt.Errorf("google_drive.credentials_file and google_drive.token_file must be set")
		}
		if err := storage.AuthorizeDrive(cmd.Context(), gd.CredentialsFile, gd.TokenFile, os.Stdin, cmd.OutOrStdout()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nToken saved to %s\n", gd.TokenFile)
		return nil
	},
}

func init() {
	driveAuthCmd.Flags().StringVar(&driveAuthConfig, "config", config.DefaultPath, "server config file")
}

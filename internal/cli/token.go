package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/credentials"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/token"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show or refresh the stored credential",
	Long: `Show the status of the stored OAuth credential, or force a
refresh against the authorization server.

Example:
  bankwatch token
  bankwatch token --refresh`,
	RunE: runToken,
}

var tokenFlags struct {
	Refresh bool
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenFlags.Refresh, "refresh", false, "Force a token refresh")

	RootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(globalFlags.Config).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(logging.WithLevel(logging.LevelWarn))
	credStore := credentials.NewStore(cfg.Credentials.Path, logger)

	cred, err := credStore.Load()
	if err != nil {
		return fmt.Errorf("failed to read credential file: %w", err)
	}
	if cred == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No credential stored. Run \"bankwatch authorize\" first.")
		return nil
	}

	if tokenFlags.Refresh {
		manager := token.NewManager(credStore, cfg.OAuth, cfg.Credentials.ExpiryBuffer, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// force a refresh by treating the current token as expired
		cred.ExpiresAt = 0
		if err := credStore.Save(cred); err != nil {
			return fmt.Errorf("failed to update credential file: %w", err)
		}
		if _, err := manager.AccessToken(ctx); err != nil {
			return fmt.Errorf("token refresh failed: %w", err)
		}
		cred, err = credStore.Load()
		if err != nil || cred == nil {
			return fmt.Errorf("refreshed credential could not be read back: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Token refreshed.")
	}

	expires := time.Unix(cred.ExpiresAt, 0)
	status := "valid"
	if !cred.Valid(time.Now(), cfg.Credentials.ExpiryBuffer) {
		status = "expired"
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Status:        %s\n", status)
	fmt.Fprintf(cmd.OutOrStdout(), "Expires:       %s\n", expires.Format(time.RFC3339))
	fmt.Fprintf(cmd.OutOrStdout(), "Refresh token: %v\n", cred.RefreshToken != "")

	return nil
}

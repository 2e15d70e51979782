package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bankwatch/bankwatch/internal/authflow"
	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/credentials"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/token"
)

// authorizeCmd represents the authorize command
var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run the browser authorization flow",
	Long: `Start the OAuth callback listener and print the authorization
URL. Open the URL in a browser and approve access; the resulting
credential is saved to the configured credential file.

This runs the flow even when a credential is already stored, replacing
it on success.`,
	RunE: runAuthorize,
}

func init() {
	RootCmd.AddCommand(authorizeCmd)
}

func runAuthorize(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(globalFlags.Config).Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.LevelInfo
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(level))

	credStore := credentials.NewStore(cfg.Credentials.Path, logger)
	manager := token.NewManager(credStore, cfg.OAuth, cfg.Credentials.ExpiryBuffer, logger)

	listener := authflow.NewListener(manager, cfg.OAuth, logger)
	go func() {
		if err := listener.Start(); err != nil {
			logger.Error("callback listener failed", "error", err.Error())
		}
	}()
	defer func() {
		_ = listener.Shutdown(context.Background())
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Open this URL in a browser to authorize access:")
	fmt.Fprintln(cmd.OutOrStdout(), authflow.AuthorizeURL(cfg.OAuth))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Credentials.WaitTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return fmt.Errorf("authorization not completed: %w", ctx.Err())
	case cred := <-listener.Done():
		fmt.Fprintf(cmd.OutOrStdout(), "Credential saved to %s (expires at %d).\n",
			credStore.Path(), cred.ExpiresAt)
		return nil
	}
}

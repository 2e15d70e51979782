package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bankwatch/bankwatch/internal/authflow"
	"github.com/bankwatch/bankwatch/internal/bank"
	"github.com/bankwatch/bankwatch/internal/config"
	"github.com/bankwatch/bankwatch/internal/credentials"
	"github.com/bankwatch/bankwatch/internal/logging"
	"github.com/bankwatch/bankwatch/internal/metrics"
	"github.com/bankwatch/bankwatch/internal/models"
	"github.com/bankwatch/bankwatch/internal/monitor"
	"github.com/bankwatch/bankwatch/internal/notify"
	"github.com/bankwatch/bankwatch/internal/secure"
	"github.com/bankwatch/bankwatch/internal/store"
	"github.com/bankwatch/bankwatch/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s", "run"},
	Short:   "Run the synchronization loop",
	Long: `Run the transaction synchronization loop in main mode.

The command ensures a usable OAuth credential (starting the browser
authorization flow when none is stored), then polls the banking API on
the configured interval, ingesting new transactions into the local
store until interrupted.

Example:
  bankwatch serve --config config.yaml --db ./data/bankwatch.db`,
	RunE: runServe,
}

var serveFlags struct {
	ConfigReloadInterval time.Duration
}

func init() {
	serveCmd.Flags().DurationVar(&serveFlags.ConfigReloadInterval, "config-reload-interval", 30*time.Second, "How often to check the config file for changes")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.ParseLevel(cfg.Logging.Level)
	if globalFlags.Verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewLogger(logging.WithLevel(level))

	sqliteStore, err := store.NewSQLiteStore(globalFlags.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open transaction store: %w", err)
	}
	defer func() {
		if err := sqliteStore.Close(); err != nil {
			logger.Error("error closing store", "error", err.Error())
		}
	}()

	m := metrics.NewMetrics("bankwatch")

	credStore := credentials.NewStore(cfg.Credentials.Path, logger)
	manager := token.NewManager(credStore, cfg.OAuth, cfg.Credentials.ExpiryBuffer, logger,
		token.WithRefreshCallback(func(*models.Credential) {
			m.RecordTokenRefresh("success")
		}),
	)

	pipeline := secure.NewPipeline(cfg.Security)
	client := bank.NewClient(cfg.Bank, cfg.Security, manager, pipeline, logger, bank.WithMetrics(m))
	notifier := notify.NewNotifier(cfg.Telegram, logger)
	syncer := monitor.NewSyncer(client, sqliteStore, notifier, cfg.Sync, logger, monitor.WithMetrics(m))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := authflow.EnsureCredential(ctx, credStore, manager, cfg.OAuth, cfg.Credentials, logger); err != nil {
		return fmt.Errorf("failed to obtain credential: %w", err)
	}

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:              cfg.Metrics.ListenAddr,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting metrics server", "addr", cfg.Metrics.ListenAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err.Error())
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	loader.SetOnChange(func(*config.Config) {
		logger.Info("configuration reloaded", "path", globalFlags.Config)
	})
	loader.StartWatcher(serveFlags.ConfigReloadInterval)
	defer loader.StopWatcher()

	syncer.Run(ctx)
	return nil
}

package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feedlens/feedlens/internal/appid"
	"github.com/feedlens/feedlens/internal/core"
	"github.com/feedlens/feedlens/internal/core/engine"
	"github.com/feedlens/feedlens/internal/core/store"
	errwrap "github.com/feedlens/feedlens/internal/errors"
	"github.com/feedlens/feedlens/internal/observability"
	"github.com/feedlens/feedlens/internal/server"
	"github.com/feedlens/feedlens/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// sessionStoreAdapter narrows the store to the session endpoints' contract.
type sessionStoreAdapter struct {
	db *store.Store
}

func (a *sessionStoreAdapter) ListSessions(ctx context.Context, subject string, status core.SessionStatus, limit int) ([]core.CollectionSession, error) {
	return a.db.ListSessions(ctx, store.SessionQuery{Subject: subject, Status: status, Limit: limit})
}

func (a *sessionStoreAdapter) GetSession(ctx context.Context, id string) (*core.CollectionSession, error) {
	return a.db.GetSession(ctx, id)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP status server",
	Long: `Start the HTTP status server with graceful shutdown support.

The server exposes health probes, version info, the pacing catalog, and
read-only snapshots of sessions and rate-limit state.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (restart recommended)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := appid.Get()
		namespace := identity.TelemetryNamespace()

		cfg, db, err := loadConfigAndStore(cmd.Context())
		if err != nil {
			return err
		}

		host := cfg.Server.Host
		port := cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serverHost
		}
		if cmd.Flags().Changed("port") {
			port = serverPort
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}
		if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", host),
			zap.Int("port", port),
			zap.Int("metrics_port", metricsPort))

		// Health manager: the store is the only hard dependency.
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("store", db)
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})

		// Wire the read-only snapshot endpoints.
		handlers.SetAppIdentity(identity)
		handlers.SetSessionSource(&sessionStoreAdapter{db: db})
		handlers.SetPacingSource(func(ctx context.Context) ([]handlers.PacingRow, error) {
			entries, err := db.ListPacingStates(ctx, store.PacingQuery{All: true})
			if err != nil {
				return nil, err
			}
			rows := make([]handlers.PacingRow, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, handlers.PacingRow{Scope: entry.Scope, State: entry.State})
			}
			return rows, nil
		})

		// The status endpoint reports an idle controller primed with the
		// configured profile; per-run controllers live in the CLI process.
		profile, err := resolveProfile("", cfg.Collector.Profile)
		if err != nil {
			return err
		}
		controller := engine.NewAdmissionController(*profile)
		controller.ConfigureBreaker(cfg.Collector.BreakerThreshold, cfg.Collector.BreakerResetWindow)
		handlers.SetStatusSource(controller.Status)

		srv := server.New(host, port)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the store
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing store...")
			return db.Close()
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Config is loaded once and passed by value; a SIGHUP cannot rewire
		// running components.
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: configuration is loaded at startup; restart to apply changes")
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", host),
				zap.Int("port", port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}

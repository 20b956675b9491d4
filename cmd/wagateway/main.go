package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wagateway/internal/backend"
	"wagateway/internal/bus"
	"wagateway/internal/config"
	"wagateway/internal/gateway"
	"wagateway/internal/metrics"
	"wagateway/internal/relay"
	"wagateway/internal/session"
	"wagateway/internal/storage"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // optional YAML file, via --config
	envFile    string
	storageDir string // overrides the configured storage root for maintenance commands
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "wagateway",
		Short: "WhatsApp session gateway",
		Long: `wagateway keeps a WhatsApp session alive, forwards inbound direct messages
to the backend webhook and exposes an HTTP API for sending messages and
chat presence. Running it without a subcommand starts the gateway.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
		RunE: runServe,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file (environment variables take precedence)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&storageDir, "storage-dir", "", "storage root for status/backup/restore (default: STORAGE_DIR)")

	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background service",
	}
	daemonCmd.AddCommand(installDaemonCmd())
	daemonCmd.AddCommand(uninstallDaemonCmd())
	root.AddCommand(daemonCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway (session, relay and HTTP API)",
		Long:  "Connects the WhatsApp session, relays inbound messages to the backend and serves the HTTP API. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

// newLogger builds the process logger from the configured level and format.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// cleanStorage prepares the storage tree and removes stale browser locks.
func cleanStorage(layout storage.Layout) error {
	if err := layout.Prepare(); err != nil {
		return err
	}
	for _, r := range layout.CleanLocks() {
		switch r.Outcome {
		case storage.Removed:
			logger.Info("removed stale lock file", "file", r.Name)
		case storage.Ignored:
			logger.Debug("lock file left in place", "file", r.Name, "err", r.Err)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	layout := storage.NewLayout(cfg.StorageDir)
	if err := cleanStorage(layout); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.OpenStore(ctx, layout.CredentialDB(), logger)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer store.Close()

	// Event bus (closed during graceful shutdown below)
	eventBus := bus.New(100, logger)

	engine, err := session.NewEngine(ctx, session.EngineConfig{
		Store:  store,
		Events: eventBus,
		Logger: logger.With("component", "session"),
	})
	if err != nil {
		return fmt.Errorf("session engine: %w", err)
	}

	backendClient := backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})

	pipeline := relay.NewPipeline(relay.PipelineConfig{
		RestaurantID: cfg.RestaurantID,
		DebugFilter:  cfg.DebugPhoneNumber,
		MediaReply:   cfg.MediaReplyText,
		Responder:    engine,
		Forwarder:    backendClient,
		Logger:       logger.With("component", "relay"),
	})

	var qrOut io.Writer
	if cfg.QRTerminal {
		qrOut = os.Stderr
	}
	dispatcher := relay.NewDispatcher(relay.DispatcherConfig{
		Events:     eventBus.Subscribe(),
		Pipeline:   pipeline,
		GatewayURL: cfg.GatewayURL,
		QROut:      qrOut,
		Logger:     logger.With("component", "relay"),
	})
	dispatchDone := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(dispatchDone)
	}()

	if cfg.DebugPhoneNumber != "" {
		logger.Warn("debug filter active: only matching senders are relayed", "filter", cfg.DebugPhoneNumber)
	}
	if err := engine.Start(ctx); err != nil {
		eventBus.Close()
		<-dispatchDone
		return fmt.Errorf("start session: %w", err)
	}

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = metrics.Default.Handler()
	}
	srv := gateway.New(gateway.Config{
		Port:      cfg.Port,
		Token:     cfg.GatewayToken,
		Messenger: engine,
		Session:   engine.State(),
		Metrics:   metricsHandler,
		Logger:    logger.With("component", "gateway"),
	})

	logger.Info("gateway started",
		"version", version,
		"url", cfg.GatewayURL,
		"backend", backendClient.Endpoint(),
		"storage", layout.Root,
	)
	serveErr := srv.Run(ctx)

	// Graceful shutdown: disconnect the session so no new events arrive, then
	// close the bus; the dispatcher relays everything already queued.
	stop()
	engine.Stop()
	eventBus.Close()
	<-dispatchDone
	logger.Info("gateway stopped")
	return serveErr
}

// resolveLayout finds the storage tree for maintenance commands. These only
// need the storage root, so an otherwise incomplete configuration is fine.
func resolveLayout() storage.Layout {
	if storageDir != "" {
		return storage.NewLayout(config.ExpandPath(storageDir))
	}
	if cfg, err := config.Load(configPath); err == nil {
		return storage.NewLayout(cfg.StorageDir)
	}
	root := config.Defaults().StorageDir
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		root = config.ExpandPath(v)
	}
	return storage.NewLayout(root)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := resolveLayout()
			dbPath := layout.CredentialDB()
			if _, err := os.Stat(dbPath); err != nil {
				logger.Info("session", "paired", false, "store", dbPath)
				return nil
			}

			ctx := context.Background()
			store, err := session.OpenStore(ctx, dbPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			device, err := store.Device(ctx)
			if err != nil {
				return err
			}
			if device.ID == nil {
				logger.Info("session", "paired", false, "store", dbPath)
				return nil
			}
			logger.Info("session", "paired", true, "jid", device.ID.String(), "name", device.PushName, "store", dbPath)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration is complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(configPath); err != nil {
				return err
			}
			fmt.Println("configuration OK")
			return nil
		},
	})

	return cmd
}

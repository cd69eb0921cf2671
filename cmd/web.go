package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/cloudcli-push/internal/api"
	"github.com/shaharia-lab/cloudcli-push/internal/build"
	"github.com/shaharia-lab/cloudcli-push/internal/config"
	"github.com/shaharia-lab/cloudcli-push/internal/eventbus"
	"github.com/shaharia-lab/cloudcli-push/internal/logger"
	"github.com/shaharia-lab/cloudcli-push/internal/notification"
	"github.com/shaharia-lab/cloudcli-push/internal/scheduler"
	"github.com/shaharia-lab/cloudcli-push/internal/server"
	"github.com/shaharia-lab/cloudcli-push/internal/service"
	"github.com/shaharia-lab/cloudcli-push/internal/storage"
)

const (
	dedupePruneInterval = time.Minute
	pushClientTimeout   = 30 * time.Second
)

// NewWebCmd returns the "web" subcommand that starts the HTTP server.
func NewWebCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Start the push notification API server",
		Long: `Start the HTTP server that manages browser push subscriptions and
delivers CloudCLI session notifications.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			logFile := filepath.Join(cfg.LogDir(), "system.log")
			printBanner(build.Version, fmt.Sprintf("http://localhost:%d", cfg.Port), logFile)

			if err := runWeb(cfg); err != nil {
				return fmt.Errorf("%w (see %s)", err, logFile)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", cfg.Port, "HTTP server port (overrides PORT env var)")
	return cmd
}

func runWeb(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLogger, logCloser, err := logger.NewSystemLogger(cfg.LogDir(), cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	sysLogger.Info("cloudcli-push starting",
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)
	if cfg.JWTSecret == "" {
		sysLogger.Warn("CLOUDCLI_JWT_SECRET is not set; authenticated routes will answer 401")
	}

	db, fresh, err := storage.NewSQLiteDB(cfg.DatabaseFile())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if fresh {
		sysLogger.Info("initialized new database", "path", cfg.DatabaseFile())
	}

	subStore := storage.NewSQLitePushSubscriptionStore(db)
	deliveryLog := storage.NewSQLiteDeliveryLogStore(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := notification.NewMetrics(registry)

	keys := newKeyManager(cfg, sysLogger)
	dedupe := notification.NewDedupeWindow(nil, notification.DefaultDedupeWindow)
	pusher := notification.NewPusher(notification.PusherConfig{
		Keys:          keys,
		Subscriptions: subStore,
		Dedupe:        dedupe,
		Transport:     notification.NewWebPushTransport(&http.Client{Timeout: pushClientTimeout}, cfg.PushTTL()),
		DeliveryLog:   deliveryLog,
		Metrics:       metrics,
		Logger:        sysLogger,
	})

	bus := eventbus.New(0, sysLogger)
	defer bus.Close()
	metrics.ObserveDroppedEvents(bus)
	bus.Subscribe(notification.NewEventHandler(pusher, sysLogger).Handle)

	sched, err := scheduler.New(sysLogger)
	if err != nil {
		return err
	}
	if err := sched.Schedule(ctx, scheduler.Job{
		Name:  "dedupe-prune",
		Every: dedupePruneInterval,
		Run: func(context.Context) {
			if n := dedupe.Prune(); n > 0 {
				sysLogger.Debug("pruned dedupe window", "removed", n)
			}
			metrics.SetDedupeEntries(dedupe.Len())
		},
	}); err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = sched.Stop() }()

	// Warm the identity so a broken key setup shows up at boot, not on first push.
	if _, err := keys.Identity(ctx); err != nil {
		sysLogger.Error("VAPID identity not available yet", "error", err)
	}

	pushSvc := service.NewPushService(service.PushServiceDeps{
		Keys:          keys,
		Subscriptions: subStore,
		Sender:        pusher,
		Events:        bus,
		DeliveryLog:   deliveryLog,
		Logger:        sysLogger,
	})

	apiSrv := api.New(pushSvc, cfg.JWTSecret, sysLogger)
	srv := server.New(apiSrv, server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins(),
		Gatherer:       registry,
		Assets:         WebFS,
		Logger:         sysLogger,
	})

	sysLogger.Info("server ready", "url", fmt.Sprintf("http://localhost:%d", cfg.Port))
	return srv.Run(ctx)
}

func newKeyManager(cfg *config.AppConfig, logger *slog.Logger) *notification.KeyManager {
	return notification.NewKeyManager(notification.KeyManagerConfig{
		EnvPublicKey:  cfg.VAPIDPublicKey,
		EnvPrivateKey: cfg.VAPIDPrivateKey,
		KeyFile:       cfg.VAPIDKeysFile(),
		Subject:       cfg.VAPIDSubject,
		Logger:        logger,
	})
}

var (
	bannerTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	bannerLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	bannerBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ade80")).
			Padding(0, 2)
)

// printBanner writes the startup banner to stdout. It is the only output
// visible in the terminal during normal operation; all structured logs go
// to the log file instead.
func printBanner(version, serverURL, logFile string) {
	body := lipgloss.JoinVertical(lipgloss.Left,
		bannerTitle.Render("CloudCLI Push "+version),
		"",
		bannerLabel.Render("API")+serverURL+"/api/notifications",
		bannerLabel.Render("Metrics")+serverURL+"/metrics",
		bannerLabel.Render("Logs")+logFile,
	)
	fmt.Println(bannerBox.Render(body))
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Micjeal/personal-agent/internal/config"
	"github.com/Micjeal/personal-agent/internal/connector"
	"github.com/Micjeal/personal-agent/internal/handler"
	"github.com/Micjeal/personal-agent/internal/message"
	"github.com/Micjeal/personal-agent/internal/notifier"
	"github.com/Micjeal/personal-agent/internal/ratelimit"
	"github.com/Micjeal/personal-agent/internal/router"
	"github.com/Micjeal/personal-agent/internal/server"
	"github.com/Micjeal/personal-agent/internal/status"
	"github.com/Micjeal/personal-agent/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	dryRun := flag.Bool("dry-run", false, "Log owner notifications instead of sending them")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	msgStore, err := store.New(cfg.StorePath)
	if err != nil {
		slog.Error("Failed to open message store", "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}

	var ownerNotifier notifier.Notifier
	if cfg.Pushover.Configured() {
		if *dryRun {
			ownerNotifier = notifier.NewMockNotifier()
			slog.Info("Running in dry-run mode, owner notifications are logged only")
		} else {
			ownerNotifier = notifier.NewPushoverNotifier(cfg.Pushover.AppToken, cfg.Pushover.UserToken)
		}
	}

	tracker := status.NewTracker()
	limiter := ratelimit.New(cfg.RateLimitPerMinute, time.Minute)
	r := router.New(handler.New(msgStore, ownerNotifier), limiter, tracker)

	registerConnectors(cfg, r)

	if cfg.Server.Enabled {
		srv := server.New(msgStore, tracker, cfg.Server.Port)
		if err := srv.Start(); err != nil {
			slog.Error("Failed to start status server", "error", err)
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				srv.Shutdown(shutdownCtx)
			}()
		}
	}

	// Blocks until every connector has exited.
	r.Start(ctx)
	r.Stop()

	slog.Info("Shutdown complete")
}

// registerConnectors builds and registers one connector per channel
// whose credentials are present. Channels without credentials are
// simply absent from the registry.
func registerConnectors(cfg *config.Config, r *router.Router) {
	if cfg.Email.Configured() {
		r.Register(message.ChannelEmail, connector.NewEmailConnector(cfg.Email, r))
	}
	if cfg.Telegram.Configured() {
		r.Register(message.ChannelTelegram, connector.NewTelegramConnector(cfg.Telegram, r))
	}
	if cfg.WhatsApp.Configured() {
		r.Register(message.ChannelWhatsApp, connector.NewWhatsAppConnector(cfg.WhatsApp, r))
	}
	if cfg.Slack.Configured() {
		r.Register(message.ChannelSlack, connector.NewSlackConnector(cfg.Slack, r))
	}
	if cfg.LinkedIn.Configured() {
		r.Register(message.ChannelLinkedIn, connector.NewLinkedInConnector(cfg.LinkedIn, r))
	}
	if cfg.Instagram.Configured() {
		r.Register(message.ChannelInstagram, connector.NewInstagramConnector(cfg.Instagram, r))
	}
}

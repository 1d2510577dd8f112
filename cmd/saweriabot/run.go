package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/alert"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/bus"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/channel"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/config"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/metrics"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/processor"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/relay"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/server"
)

const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot (Discord listener + relay + keep-alive server)",
		Long:  "Connects to Discord, relays every donation notification to the configured endpoint, and serves the keep-alive endpoints. Press Ctrl+C to stop.",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.RequireDiscord(cfg); err != nil {
		return err
	}
	logger = newLogger(cfg.General.LogLevel, cfg.General.LogFormat, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messageBus := bus.New(bus.Config{BufferSize: cfg.Relay.BufferSize, Logger: logger})
	events := bus.NewEventBus(logger, 0)

	relayClient, err := relay.NewClient(relay.Config{
		Endpoint:     cfg.Relay.Endpoint,
		SourceHeader: cfg.Relay.SourceHeader,
		HTTPClient:   relay.NewHTTPClient(time.Duration(cfg.Relay.TimeoutSeconds) * time.Second),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	dispatcher, err := buildAlerts(cfg)
	if err != nil {
		return err
	}
	alertHandler := dispatcher.Attach(events)

	discord := channel.NewDiscord(channel.DiscordConfig{
		Token:          cfg.Discord.Token,
		ChannelID:      cfg.Discord.ChannelID,
		GuildID:        cfg.Discord.GuildID,
		RequireWebhook: cfg.Discord.RequireWebhook,
		Events:         events,
		Logger:         logger,
	})

	loop := processor.NewLoop(processor.LoopConfig{
		Bus:         messageBus,
		Relay:       relayClient,
		Events:      events,
		Logger:      logger,
		Concurrency: cfg.Relay.Concurrency,
		AckEmoji:    cfg.Discord.AckEmoji,
		React:       cfg.Discord.React,
	})
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		// The loop ends when the queue is closed, so queued donations are
		// still relayed during shutdown.
		loop.Run(context.WithoutCancel(ctx))
	}()

	var srv *server.Server
	if cfg.Server.Enabled {
		srvCfg := server.Config{
			Host:   cfg.Server.Host,
			Port:   cfg.Server.Port,
			Bot:    discord,
			Queue:  messageBus,
			Events: events,
			Logger: logger,
		}
		if cfg.Metrics.Enabled {
			srvCfg.Metrics = metrics.Collector.Handler()
			srvCfg.MetricsEndpoint = cfg.Metrics.Endpoint
		}
		srv = server.New(srvCfg)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("keep-alive server error", "error", err)
				stop()
			}
		}()
	}

	discordErr := make(chan error, 1)
	go func() {
		discordErr <- discord.Start(ctx, messageBus)
	}()

	logger.Info("saweriabot started",
		"endpoint", relayClient.Endpoint(),
		"channel_id", cfg.Discord.ChannelID,
		"alerts", dispatcher.Len(),
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case runErr = <-discordErr:
		if runErr != nil {
			logger.Error("discord channel error", "error", runErr)
		}
		stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if srv != nil {
			if err := srv.Stop(shutdownCtx); err != nil {
				logger.Warn("keep-alive server shutdown", "error", err)
			}
		}
		messageBus.Close()
		<-loopDone
		dispatcher.Detach(events, alertHandler)
		dispatcher.Wait()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		if runErr == nil {
			runErr = fmt.Errorf("shutdown timed out")
		}
	}

	return runErr
}

// buildAlerts creates the failure-alert dispatcher from the enabled notifiers.
func buildAlerts(cfg *config.Config) (*alert.Dispatcher, error) {
	var notifiers []alert.Notifier
	if t := cfg.Alerts.Telegram; t.Enabled {
		tg, err := alert.NewTelegram(alert.TelegramConfig{Token: t.Token, ChatID: t.ChatID})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}
	if s := cfg.Alerts.Slack; s.Enabled {
		sl, err := alert.NewSlack(s.WebhookURL)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, sl)
	}
	return alert.NewDispatcher(logger, notifiers...), nil
}

// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tomtom215/slackiveroo/internal/api"
	"github.com/tomtom215/slackiveroo/internal/config"
	"github.com/tomtom215/slackiveroo/internal/deliveroo"
	"github.com/tomtom215/slackiveroo/internal/events"
	"github.com/tomtom215/slackiveroo/internal/keepalive"
	"github.com/tomtom215/slackiveroo/internal/logging"
	"github.com/tomtom215/slackiveroo/internal/slack"
	"github.com/tomtom215/slackiveroo/internal/supervisor"
	"github.com/tomtom215/slackiveroo/internal/supervisor/services"
	"github.com/tomtom215/slackiveroo/internal/tokenstore"
	"github.com/tomtom215/slackiveroo/internal/tracker"
)

// Populated at build time via -ldflags.
var version = "dev"

type flags struct {
	configPath string
	port       int
	logLevel   string
	mock       bool
}

func main() {
	f := &flags{}

	cmd := &cli.Command{
		Name:    "slackiveroo",
		Usage:   "Relay Deliveroo order status to Slack channels",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to a YAML config file",
				Sources:     cli.EnvVars(config.ConfigPathEnvVar),
				Destination: &f.configPath,
			},
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "HTTP listen port (overrides config)",
				Destination: &f.port,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (trace, debug, info, warn, error)",
				Destination: &f.logLevel,
			},
			&cli.BoolFlag{
				Name:        "mock",
				Usage:       "replay recorded Deliveroo responses instead of calling the API",
				Destination: &f.mock,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(f, c)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Fatal().Err(err).Msg("Slackiveroo exited with error")
	}
}

func loadConfig(f *flags, c *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	overridden := false
	if c.IsSet("port") {
		cfg.Server.Port = f.port
		overridden = true
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = f.logLevel
		overridden = true
	}
	if c.IsSet("mock") {
		cfg.Mock.Enabled = f.mock
		overridden = true
	}
	if overridden {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return cfg, nil
}

func run(parent context.Context, cfg *config.Config) error {
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("version", version).
		Bool("mock", cfg.Mock.Enabled).
		Bool("oauth", cfg.OAuthEnabled()).
		Bool("events", cfg.Events.Enabled).
		Msg("Starting Slackiveroo")

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := tokenstore.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing token store")
		}
	}()

	slackClient := slack.NewClient(cfg.Slack, store)
	installer := slack.NewInstaller(slackClient, store)

	trackerCfg := tracker.Config{
		Notifier:     slackClient,
		PollInterval: cfg.Tracker.PollInterval,
		Formatter: tracker.Formatter{
			ImageWidth:  cfg.Deliveroo.ImageWidth,
			ImageHeight: cfg.Deliveroo.ImageHeight,
		},
	}

	if cfg.Mock.Enabled {
		replay, err := deliveroo.NewReplaySource(cfg.Mock.ResponsesDir, cfg.Mock.Delay)
		if err != nil {
			return fmt.Errorf("load mock responses: %w", err)
		}
		trackerCfg.Resolver = replay
		trackerCfg.Source = replay
		logging.Warn().Str("dir", cfg.Mock.ResponsesDir).Msg("Mock mode: replaying recorded Deliveroo responses")
	} else {
		client := deliveroo.NewClient(cfg.Deliveroo)
		trackerCfg.Resolver = client
		trackerCfg.Source = client
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(cfg.Events)
		if err != nil {
			return fmt.Errorf("create event publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event publisher")
			}
		}()
		trackerCfg.Events = publisher
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	registry, err := tracker.NewRegistry(tree.Trackers(), trackerCfg)
	if err != nil {
		return fmt.Errorf("create tracker registry: %w", err)
	}

	handler, err := api.NewHandler(ctx, api.Deps{
		Dispatcher:      tracker.NewDispatcher(registry),
		Trackers:        registry,
		Installer:       installer,
		Installations:   store,
		ShortLinkDomain: cfg.Deliveroo.ShortLinkDomain,
		ClientID:        cfg.Slack.ClientID,
		Version:         version,
	})
	if err != nil {
		return fmt.Errorf("create API handler: %w", err)
	}

	server := &http.Server{
		Addr: cfg.Server.ListenAddr(),
		Handler: api.NewRouter(handler, api.RouterConfig{
			SigningSecret:     cfg.Slack.SigningSecret,
			SignatureMaxAge:   cfg.Slack.SignatureMaxAge,
			RateLimitRequests: cfg.Security.RateLimitReqs,
			RateLimitWindow:   cfg.Security.RateLimitWindow,
			RateLimitDisabled: cfg.Security.RateLimitDisabled,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddBackgroundService(keepalive.New(cfg.Keepalive, registry))
	if publisher != nil && publisher.InProcess() {
		tree.AddBackgroundService(events.NewJournal(publisher))
		logging.Info().Msg("Events stay in process; set events.nats_url to publish them to NATS")
	}
	if !cfg.Store.InMemory {
		tree.AddBackgroundService(services.NewTokenStoreGCService(store, 0))
	}
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// The root only returns once ctx is cancelled or the tree terminates.
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}
	cancel()

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	handler.Wait()
	logging.Info().Int("abandoned_trackers", registry.Len()).Msg("Slackiveroo stopped")
	return nil
}

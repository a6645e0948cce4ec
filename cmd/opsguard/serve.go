package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/opsguard/opsguard/internal/alerter"
	"github.com/opsguard/opsguard/internal/api"
	"github.com/opsguard/opsguard/internal/config"
	"github.com/opsguard/opsguard/internal/grpcserver"
	"github.com/opsguard/opsguard/internal/heartbeat"
	"github.com/opsguard/opsguard/internal/metrics"
	"github.com/opsguard/opsguard/internal/notifier"
	"github.com/opsguard/opsguard/internal/ops"
	"github.com/opsguard/opsguard/internal/scheduler"
	"github.com/opsguard/opsguard/internal/types"
	"github.com/opsguard/opsguard/internal/version"
	"github.com/opsguard/opsguard/internal/webui"
)

// serve wires every component and runs until ctx is cancelled
func serve(ctx context.Context, configPath, levelOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Create log buffer for web UI
	logBuffer := webui.NewLogBuffer(cfg.Log.BufferSize)
	logger := newLogger(io.MultiWriter(os.Stdout, logBuffer), cfg.Log.Level, levelOverride)

	logger.Info().
		Str("config_path", configPath).
		Int("triggers", len(cfg.Protocols.Triggers)).
		Msg("Starting OpsGuard")

	m := metrics.New()
	core := ops.New(ops.Options{
		Metrics: m,
		Store: alerter.StoreOptions{
			MaxEscalationLevel:              cfg.Escalation.MaxLevel,
			RequireAcknowledgeBeforeResolve: cfg.Alerts.RequireAcknowledgeBeforeResolve,
		},
		Policy: alerter.EscalationPolicy{
			BaseThreshold:      cfg.Escalation.BaseThreshold(),
			CriticalMultiplier: cfg.Escalation.CriticalMultiplier,
			MaxLevel:           cfg.Escalation.MaxLevel,
		},
		NotifyTimeout: cfg.Escalation.NotifyTimeout,
		Cutoffs: heartbeat.Cutoffs{
			DegradedAfter: cfg.Heartbeat.DegradedAfter,
			PoorAfter:     cfg.Heartbeat.PoorAfter,
		},
		FlapThreshold: cfg.Heartbeat.FlapThreshold,
		FlapWindow:    cfg.Heartbeat.FlapWindow,
		Triggers:      cfg.TriggerRules(),
	}, logger)

	if len(cfg.Notifications.Routes) > 0 {
		core.Subscribe(notifier.NewNotifier(notifierOptions(cfg), logger))
	}

	var grpcSrv *grpcserver.Server
	if cfg.Server.GRPCAddr != "" {
		grpcSrv = grpcserver.New(cfg.Server.GRPCAddr, logger)
	}

	sched := scheduler.New(logger)
	if err := sched.Add(scheduler.Job{
		Name:     "escalation",
		Interval: cfg.Escalation.PollInterval,
		Run: func(ctx context.Context) error {
			_, err := core.EvaluateEscalations(ctx)
			return err
		},
	}); err != nil {
		return err
	}
	if err := sched.Add(scheduler.Job{
		Name:     "liveness-sync",
		Interval: cfg.Heartbeat.SyncInterval,
		Run: func(ctx context.Context) error {
			if err := core.SyncLiveness(ctx); err != nil {
				return err
			}
			if grpcSrv != nil {
				grpcSrv.Sync(core.ModuleStatuses(), core.HealthSnapshot().Status)
			}
			return nil
		},
	}); err != nil {
		return err
	}

	apiServer := api.NewServer(core, logger, cfg.Server.HTTPAddr)
	apiServer.SetLogBuffer(logBuffer)
	build := version.Get()
	apiServer.SetVersion(build.Version, build.Commit, build.BuildDate)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiServer.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	if grpcSrv != nil {
		g.Go(func() error { return grpcSrv.Run(gctx) })
	}

	logger.Info().
		Str("http_addr", cfg.Server.HTTPAddr).
		Str("grpc_addr", cfg.Server.GRPCAddr).
		Msg("OpsGuard running, press Ctrl+C to stop")

	err = g.Wait()
	logger.Info().Msg("Shutting down...")
	core.Wait()

	if err != nil {
		logger.Error().Err(err).Msg("OpsGuard stopped with error")
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info().Msg("OpsGuard stopped")
	return nil
}

// newLogger builds the root logger; an unparsable level falls back to info
func newLogger(w io.Writer, configured, override string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	raw := configured
	if override != "" {
		raw = override
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil || raw == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("version", version.Version).
		Str("commit", version.Commit).
		Logger()
}

// notifierOptions resolves configured routes into Apprise channels
func notifierOptions(cfg *config.Config) notifier.Options {
	routes := make(map[types.Severity][]notifier.Channel, len(cfg.Notifications.Routes))
	for severity, names := range cfg.Notifications.Routes {
		for _, name := range names {
			routes[types.Severity(severity)] = append(routes[types.Severity(severity)], notifier.Channel{
				Name: name,
				URL:  cfg.ResolveChannelURL(name),
			})
		}
	}
	return notifier.Options{
		APIURL:   cfg.Notifications.AppriseURL,
		Routes:   routes,
		MinLevel: cfg.Notifications.MinLevel,
		Timeout:  cfg.Notifications.Timeout,
	}
}

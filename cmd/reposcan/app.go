package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fyrsmithlabs/reposcan/internal/cache"
	"github.com/fyrsmithlabs/reposcan/internal/config"
	"github.com/fyrsmithlabs/reposcan/internal/logging"
	"github.com/fyrsmithlabs/reposcan/internal/metrics"
	"github.com/fyrsmithlabs/reposcan/internal/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the process-wide services shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	metrics   *metrics.Metrics
	telemetry *telemetry.Telemetry
	fs        afero.Fs
}

// newApp loads settings, applies flag overrides and starts logging,
// metrics and tracing. The caller must call close.
func newApp(ctx context.Context, cmd *cobra.Command, f *searchFlags, logOut io.Writer) (context.Context, *app, error) {
	cfg, err := config.LoadWithFile(f.configPath)
	if err != nil {
		return ctx, nil, &usageError{msg: " " + err.Error()}
	}
	f.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return ctx, nil, &usageError{msg: " " + err.Error()}
	}

	logCfg, err := logging.FromSettings(cfg.Log)
	if err != nil {
		return ctx, nil, &usageError{msg: " " + err.Error()}
	}
	logCfg.Output = logOut
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return ctx, nil, fmt.Errorf("creating logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
	if err != nil {
		logger.Warn(ctx, "tracing disabled", zap.Error(err))
	}

	ctx = logging.WithRunID(ctx, logging.NewRunID())
	ctx = logging.WithLogger(ctx, logger)

	return ctx, &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.New(),
		telemetry: tel,
		fs:        afero.NewOsFs(),
	}, nil
}

// cache opens the content cache, or returns nil when it is disabled.
func (a *app) cache() (*cache.Cache, error) {
	if a.cfg.Cache.Disabled {
		return nil, nil
	}
	dir := a.cfg.Cache.Dir
	if dir == "" {
		var err error
		if dir, err = cache.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return cache.New(a.fs, dir, cache.WithLogger(a.logger.Named("cache")), cache.WithMetrics(a.metrics)), nil
}

func (a *app) close(ctx context.Context) {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Warn(ctx, "metrics not written", zap.String("path", path), zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "flushing logs: %v\n", err)
	}
}

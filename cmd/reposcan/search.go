package main

import (
	"context"
	"errors"
	"strings"

	"github.com/fyrsmithlabs/reposcan/internal/config"
	"github.com/fyrsmithlabs/reposcan/internal/ghclient"
	"github.com/fyrsmithlabs/reposcan/internal/logging"
	"github.com/fyrsmithlabs/reposcan/internal/report"
	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"github.com/fyrsmithlabs/reposcan/internal/scan"
	"github.com/fyrsmithlabs/reposcan/internal/secrets"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const missingTokenMessage = ` Cannot find a valid GitHub access token.

 Provide a token for your own account so the private repositories can be searched.
 The token is only used to run the search; read access to repository contents is enough.
 Create one at https://github.com/settings/tokens and set it as GITHUB_TOKEN,
 REPOSCAN_GITHUB_TOKEN or github.token in the config file.`

// locator adapts ghclient.Locator to the scan pipeline.
type locator struct {
	*ghclient.Locator
}

func (l locator) Locate(ctx context.Context, repos []repository.Repository, filenameFilter, token string) (scan.SearchResults, error) {
	results, err := l.Locator.Locate(ctx, repos, filenameFilter, token)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func runSearch(cmd *cobra.Command, f *searchFlags, token string) error {
	out := cmd.OutOrStdout()

	ctx, a, err := newApp(cmd.Context(), cmd, f, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close(ctx)
	cfg := a.cfg

	var detector *secrets.Detector
	if cfg.Output.DetectSecrets || cfg.Output.RedactSecrets {
		if detector, err = secrets.NewDetector(); err != nil {
			return err
		}
	}

	printOpts := report.Options{
		UseHTMLURL:       cfg.Output.Mode == config.OutputModeHTMLURL,
		SurroundingLines: cfg.Output.SurroundingLines,
		Quiet:            cfg.Output.Quiet,
	}
	if cfg.Output.RedactSecrets {
		printOpts.Redactor = detector
	}
	printer := report.NewPrinter(out, printOpts)
	printer.Banner(version)

	if !cfg.GitHub.Token.IsSet() {
		return &usageError{msg: missingTokenMessage}
	}
	if err := cfg.RequireSearchSettings(); err != nil {
		var missing *config.MissingSettingsError
		if errors.As(err, &missing) {
			return &usageError{msg: " The following required settings do not have a valid value:\n " +
				strings.Join(missing.Settings, ", ")}
		}
		return err
	}

	// Past this point failures are reported, not treated as usage errors.
	if err := search(ctx, a, f, printer, detector, token); err != nil {
		a.logger.Error(ctx, "search failed", zap.Error(err))
		printer.Error(err)
	}
	return nil
}

func search(ctx context.Context, a *app, f *searchFlags, printer *report.Printer, detector *secrets.Detector, token string) error {
	cfg := a.cfg
	logger := a.logger

	opts := ghclient.OptionsFromConfig(cfg.GitHub)
	opts.Logger = logger.Named("github")
	opts.Metrics = a.metrics
	opts.Tracer = a.telemetry.Tracer("github.com/fyrsmithlabs/reposcan/internal/ghclient")
	client, err := ghclient.NewClient(ctx, opts)
	if err != nil {
		return err
	}

	login, err := client.Authenticate(ctx)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "authenticated", zap.String("login", login), logging.Secret("token", cfg.GitHub.Token))

	store, err := a.cache()
	if err != nil {
		return err
	}
	var contentStore scan.ContentStore
	if store != nil {
		if f.flushCache {
			if err := flushCache(ctx, printer, store); err != nil {
				return err
			}
		}
		contentStore = store
	}

	tracker := scan.NewTracker()
	matcherOpts := []scan.MatcherOption{
		scan.WithWorkers(cfg.Search.Workers),
		scan.WithLiteral(cfg.Search.Literal),
		scan.WithMatcherLogger(logger.Named("scan")),
		scan.WithMatcherMetrics(a.metrics),
	}
	if cfg.Output.DetectSecrets {
		matcherOpts = append(matcherOpts, scan.WithSecretScanner(detector))
	}
	fetcher := scan.NewFetcher(client, contentStore, a.metrics)
	matcher := scan.NewMatcher(fetcher, tracker, matcherOpts...)

	var reporter *scan.Reporter

	printer.Resolving(cfg.GitHub.Target)
	svc := scan.NewService(ghclient.NewResolver(client), locator{ghclient.NewLocator(client)}, matcher, tracker,
		scan.WithServiceLogger(logger),
		scan.WithHooks(scan.Hooks{
			OnResolved: func(repos []repository.Repository) {
				printer.Resolved(cfg.GitHub.Target, cfg.Search.FilenameFilter, repos)
			},
			OnSearchStarted: func(total int) {
				printer.SearchStarted(token, total)
				reporter = scan.StartReporter(tracker, cfg.Search.ProgressInterval, printer.Progress)
			},
		}),
	)

	result, err := svc.Run(ctx, scan.Request{
		Account:        cfg.GitHub.Target,
		Filters:        cfg.Search.RepositoryFilters,
		FilenameFilter: cfg.Search.FilenameFilter,
		Token:          token,
	})
	if reporter != nil {
		reporter.Stop()
		printer.EndProgress()
	}
	if err != nil {
		return err
	}

	highlight, err := scan.CompilePattern(token, cfg.Search.Literal)
	if err != nil {
		return err
	}
	printer.Hits(result.Hits, highlight)
	printer.Summary(result.Summary, cfg.Search.FilenameFilter, token)
	if f.cacheStats && store != nil {
		return printCacheStats(printer, store)
	}
	return nil
}

package main

import (
	"context"

	"github.com/fyrsmithlabs/reposcan/internal/cache"
	"github.com/fyrsmithlabs/reposcan/internal/report"
	"github.com/spf13/cobra"
)

// runCacheOnly handles --flush-cache and --cache-stats given without a
// search token. Failures are printed like search failures.
func runCacheOnly(cmd *cobra.Command, f *searchFlags) error {
	ctx, a, err := newApp(cmd.Context(), cmd, f, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close(ctx)

	p := report.NewPrinter(cmd.OutOrStdout(), report.Options{})
	store, err := a.cache()
	switch {
	case err != nil:
		p.Error(err)
	case store == nil:
		p.Line("Cache is disabled.")
	default:
		if f.flushCache {
			if err := flushCache(ctx, p, store); err != nil {
				p.Error(err)
				return nil
			}
		}
		if f.cacheStats {
			if err := printCacheStats(p, store); err != nil {
				p.Error(err)
			}
		}
	}
	return nil
}

func flushCache(ctx context.Context, p *report.Printer, store *cache.Cache) error {
	if err := store.Flush(ctx); err != nil {
		return err
	}
	p.Line("Cache flushed: %s", store.Root())
	return nil
}

func printCacheStats(p *report.Printer, store *cache.Cache) error {
	stats, err := store.Stats()
	if err != nil {
		return err
	}
	p.CacheStats(stats.Root, stats.Repositories, stats.Files, stats.Bytes)
	return nil
}

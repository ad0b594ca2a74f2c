package main

import (
	"github.com/fyrsmithlabs/reposcan/internal/config"
	"github.com/spf13/cobra"
)

// searchFlags holds command-line overrides. A flag only replaces the
// configured value when it was given explicitly.
type searchFlags struct {
	configPath    string
	logLevel      string
	target        string
	repositories  string
	filename      string
	output        string
	lines         int
	quiet         bool
	flushCache    bool
	cacheStats    bool
	noCache       bool
	literal       bool
	workers       int
	detectSecrets bool
	redactSecrets bool
	metricsFile   string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "config file (default ~/.config/reposcan/config.yaml)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")

	fl := cmd.Flags()
	fl.StringVarP(&f.target, "target", "t", "", "GitHub organization or user owning the repositories")
	fl.StringVarP(&f.repositories, "repositories", "r", "", "'|'-separated repository name filters")
	fl.StringVarP(&f.filename, "filename", "f", "", "filename filter passed to the code search")
	fl.StringVarP(&f.output, "output", "o", "", "how hit files are named: path or html_url")
	fl.IntVarP(&f.lines, "lines", "l", 0, "number of lines shown around each match")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "only print the summary")
	fl.BoolVarP(&f.flushCache, "flush-cache", "c", false, "empty the content cache; without a token nothing is searched")
	fl.BoolVar(&f.cacheStats, "cache-stats", false, "show what the content cache holds; with a token, after the summary")
	fl.BoolVar(&f.noCache, "no-cache", false, "always download file contents")
	fl.BoolVar(&f.literal, "literal", false, "match the token verbatim instead of as a pattern")
	fl.IntVar(&f.workers, "workers", 0, "number of files fetched and matched in parallel (1-8)")
	fl.BoolVar(&f.detectSecrets, "detect-secrets", false, "flag credentials on matching lines")
	fl.BoolVar(&f.redactSecrets, "redact-secrets", false, "mask credentials in printed lines")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")
}

// apply copies explicitly set flags onto cfg.
func (f *searchFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}

	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("target") {
		cfg.GitHub.Target = f.target
	}
	if changed("repositories") {
		cfg.Search.RepositoryFilters = config.SplitFilters(f.repositories)
	}
	if changed("filename") {
		cfg.Search.FilenameFilter = f.filename
	}
	if changed("output") {
		cfg.Output.Mode = f.output
	}
	if changed("lines") {
		cfg.Output.SurroundingLines = f.lines
	}
	if changed("quiet") {
		cfg.Output.Quiet = f.quiet
	}
	if changed("no-cache") {
		cfg.Cache.Disabled = f.noCache
	}
	if changed("literal") {
		cfg.Search.Literal = f.literal
	}
	if changed("workers") {
		cfg.Search.Workers = f.workers
	}
	if changed("detect-secrets") {
		cfg.Output.DetectSecrets = f.detectSecrets
	}
	if changed("redact-secrets") {
		cfg.Output.RedactSecrets = f.redactSecrets
	}
	if changed("metrics-file") {
		cfg.Metrics.Textfile = f.metricsFile
	}
}

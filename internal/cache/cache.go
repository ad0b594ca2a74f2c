// Package cache stores downloaded file contents on disk, keyed by the
// revision fingerprint reported by code search.
//
// Layout:
//
//	{root}/{owner}/{repo}/{normalized-path}-{fingerprint}.cache
//
// At most one entry per (repository, path) is kept: fetching a new
// fingerprint purges the older ones before the new content is written.
// Cache persistence is best-effort. Read, write and purge failures are
// logged and counted but never fail a lookup.
//
// Example usage:
//
//	c := cache.New(afero.NewOsFs(), dir, cache.WithLogger(logger))
//	text, err := c.Get(ctx, repo.ID, repo.FullName, path, sha, api.Download)
package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/reposcan/internal/logging"
	"github.com/fyrsmithlabs/reposcan/internal/metrics"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const fileExt = ".cache"

// FetchFunc retrieves the current content of a file from its origin.
type FetchFunc func(ctx context.Context, repoID int64, path string) (string, error)

// Cache is a fingerprint-keyed file content store.
//
// Cache is safe for concurrent use as long as concurrent callers do not
// target the same (repository, path) pair, which a single search pass never
// does.
type Cache struct {
	fs      afero.Fs
	root    string
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for non-fatal storage failures.
func WithLogger(l *logging.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithMetrics enables hit/miss/error counting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// New creates a cache rooted at root on fsys. A root that cannot be created
// is logged; the cache then degrades to always fetching.
func New(fsys afero.Fs, root string, opts ...Option) *Cache {
	c := &Cache{
		fs:     fsys,
		root:   filepath.Clean(root),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.fs.MkdirAll(c.root, 0o755); err != nil {
		c.logger.Warn(context.Background(), "cache root unavailable",
			zap.String("root", c.root), zap.Error(err))
		c.metrics.RecordCacheError(metrics.OpWrite)
	}
	return c
}

// DefaultDir returns the per-user cache location.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache dir: %w", err)
	}
	return filepath.Join(base, "reposcan", "cache"), nil
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Get returns the content of path in the given repository at fingerprint.
//
// A stored entry is returned without calling fetch. Otherwise fetch is
// called, entries for other fingerprints of the same path are purged, and
// the new content is stored. Only a fetch failure is returned as an error.
func (c *Cache) Get(ctx context.Context, repoID int64, repoName, path, fingerprint string, fetch FetchFunc) (string, error) {
	ctx = logging.WithRepository(ctx, repoName)

	if !validFingerprint(fingerprint) {
		// Without a usable fingerprint there is no way to tell stale entries apart.
		c.logger.Debug(ctx, "bypassing cache", zap.String("path", path), zap.String("fingerprint", fingerprint))
		c.metrics.RecordCacheMiss()
		return c.fetch(ctx, repoID, path, fetch)
	}

	dir := c.repoDir(repoName)
	prefix := normalize(path)
	file := filepath.Join(dir, prefix+"-"+fingerprint+fileExt)

	if content, ok := c.read(ctx, file); ok {
		c.metrics.RecordCacheHit()
		return content, nil
	}
	c.metrics.RecordCacheMiss()

	content, err := c.fetch(ctx, repoID, path, fetch)
	if err != nil {
		return "", err
	}

	if err := c.purge(dir, prefix); err != nil {
		for _, e := range multierr.Errors(err) {
			c.logger.Warn(ctx, "cache purge failed", zap.String("path", path), zap.Error(e))
			c.metrics.RecordCacheError(metrics.OpPurge)
		}
	}

	if err := c.write(dir, file, content); err != nil {
		c.logger.Warn(ctx, "cache write failed", zap.String("file", file), zap.Error(err))
		c.metrics.RecordCacheError(metrics.OpWrite)
	}

	return content, nil
}

func (c *Cache) fetch(ctx context.Context, repoID int64, path string, fetch FetchFunc) (string, error) {
	content, err := fetch(ctx, repoID, path)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", path, err)
	}
	return content, nil
}

func (c *Cache) read(ctx context.Context, file string) (string, bool) {
	data, err := afero.ReadFile(c.fs, file)
	switch {
	case err == nil:
		return string(data), true
	case errors.Is(err, fs.ErrNotExist):
		return "", false
	default:
		c.logger.Warn(ctx, "cache read failed, refetching", zap.String("file", file), zap.Error(err))
		c.metrics.RecordCacheError(metrics.OpRead)
		return "", false
	}
}

func (c *Cache) write(dir, file, content string) error {
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return afero.WriteFile(c.fs, file, []byte(content), 0o644)
}

// purge removes every entry for prefix regardless of fingerprint.
// Entries of other paths sharing the prefix ("a" vs "a/b") are left alone
// because a fingerprint never contains '-'.
func (c *Cache) purge(dir, prefix string) error {
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs error
	for _, entry := range entries {
		if entry.IsDir() || !isEntryFor(entry.Name(), prefix) {
			continue
		}
		if err := c.fs.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Flush discards every cached entry.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.fs.RemoveAll(c.root); err != nil {
		c.metrics.RecordCacheError(metrics.OpFlush)
		return fmt.Errorf("flushing cache %s: %w", c.root, err)
	}
	if err := c.fs.MkdirAll(c.root, 0o755); err != nil {
		c.metrics.RecordCacheError(metrics.OpFlush)
		return fmt.Errorf("recreating cache %s: %w", c.root, err)
	}
	c.logger.Info(ctx, "cache flushed", zap.String("root", c.root))
	return nil
}

// Stats describes what the cache currently holds.
type Stats struct {
	Root         string
	Repositories int
	Files        int
	Bytes        int64
}

// Stats walks the cache root and counts entries.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{Root: c.root}
	repos := make(map[string]struct{})

	err := afero.Walk(c.fs, c.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), fileExt) {
			return nil
		}
		stats.Files++
		stats.Bytes += info.Size()
		repos[filepath.Dir(p)] = struct{}{}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walking cache %s: %w", c.root, err)
	}
	stats.Repositories = len(repos)
	return stats, nil
}

func (c *Cache) repoDir(repoName string) string {
	return filepath.Join(c.root, filepath.FromSlash(repoName))
}

// normalize flattens a repository path into a single file name component.
func normalize(path string) string {
	return strings.NewReplacer("/", "-", `\`, "-").Replace(path)
}

func isEntryFor(name, prefix string) bool {
	if !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, fileExt) {
		return false
	}
	fp := name[len(prefix)+1 : len(name)-len(fileExt)]
	return validFingerprint(fp)
}

func validFingerprint(fp string) bool {
	if fp == "" {
		return false
	}
	for _, r := range fp {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

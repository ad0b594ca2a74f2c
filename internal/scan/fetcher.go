package scan

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/reposcan/internal/cache"
	"github.com/fyrsmithlabs/reposcan/internal/metrics"
	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fyrsmithlabs/reposcan/internal/scan"

// Downloader retrieves file content from GitHub.
type Downloader interface {
	Download(ctx context.Context, repoID int64, path string) (string, error)
}

// ContentStore is a fingerprint-keyed content cache.
type ContentStore interface {
	Get(ctx context.Context, repoID int64, repoName, path, fingerprint string, fetch cache.FetchFunc) (string, error)
}

// Fetcher resolves candidates to their text, going through the cache when
// one is configured.
type Fetcher struct {
	downloader Downloader
	store      ContentStore
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewFetcher creates a Fetcher. store may be nil to always download.
func NewFetcher(downloader Downloader, store ContentStore, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		downloader: downloader,
		store:      store,
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
	}
}

// Fetch returns the content of c.
func (f *Fetcher) Fetch(ctx context.Context, c repository.Candidate) (string, error) {
	ctx, span := f.tracer.Start(ctx, "scan.fetch", trace.WithAttributes(
		attribute.String("repository", c.Repository.FullName),
		attribute.String("path", c.Path),
	))
	defer span.End()

	start := time.Now()
	defer func() { f.metrics.RecordFetch(time.Since(start).Seconds()) }()

	var (
		content string
		err     error
	)
	if f.store == nil {
		content, err = f.downloader.Download(ctx, c.Repository.ID, c.Path)
	} else {
		content, err = f.store.Get(ctx, c.Repository.ID, c.Repository.FullName, c.Path, c.Fingerprint, f.downloader.Download)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetAttributes(attribute.Int("bytes", len(content)))
	return content, nil
}

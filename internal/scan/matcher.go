package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/reposcan/internal/logging"
	"github.com/fyrsmithlabs/reposcan/internal/metrics"
	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of candidates processed concurrently.
const DefaultWorkers = 8

// CandidateSource yields search candidates until io.EOF.
type CandidateSource interface {
	Next(ctx context.Context) (repository.Candidate, error)
}

// ContentFetcher resolves a candidate to its text.
type ContentFetcher interface {
	Fetch(ctx context.Context, c repository.Candidate) (string, error)
}

// SecretScanner classifies matching lines.
type SecretScanner interface {
	ScanLines(content string, lines []int) []repository.SecretFinding
}

// Matcher fetches candidates with a fixed pool of workers and keeps the
// ones containing the search token.
type Matcher struct {
	fetcher  ContentFetcher
	tracker  *Tracker
	workers  int
	literal  bool
	detector SecretScanner
	logger   *logging.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithWorkers sets the pool size.
func WithWorkers(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithLiteral matches the token verbatim instead of as a pattern.
func WithLiteral(literal bool) MatcherOption {
	return func(m *Matcher) {
		m.literal = literal
	}
}

// WithSecretScanner classifies credentials on matching lines.
func WithSecretScanner(s SecretScanner) MatcherOption {
	return func(m *Matcher) {
		m.detector = s
	}
}

// WithMatcherLogger sets the logger.
func WithMatcherLogger(l *logging.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = l
	}
}

// WithMatcherMetrics enables scan counters.
func WithMatcherMetrics(mt *metrics.Metrics) MatcherOption {
	return func(m *Matcher) {
		m.metrics = mt
	}
}

// WithMatcherTracer sets the tracer for the match span.
func WithMatcherTracer(t trace.Tracer) MatcherOption {
	return func(m *Matcher) {
		m.tracer = t
	}
}

// NewMatcher creates a Matcher reporting completions to tracker.
func NewMatcher(fetcher ContentFetcher, tracker *Tracker, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		fetcher: fetcher,
		tracker: tracker,
		workers: DefaultWorkers,
		logger:  logging.NewNop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracker == nil {
		m.tracker = NewTracker()
	}
	return m
}

// Match consumes src and returns the candidates with at least one line
// matching token, sorted by repository name then path.
//
// The first failure stops the run. Every failure seen before the workers
// wound down is returned, combined with multierr.
func (m *Matcher) Match(ctx context.Context, src CandidateSource, token string) ([]repository.Hit, error) {
	re, err := CompilePattern(token, m.literal)
	if err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "scan.match", trace.WithAttributes(attribute.Int("workers", m.workers)))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)
	candidates := make(chan repository.Candidate)

	var (
		mu   sync.Mutex
		hits []repository.Hit
		errs error
	)
	fail := func(err error) error {
		// Cancellation caused by an earlier failure is not a failure of its own.
		if gctx.Err() == nil || !errors.Is(err, context.Canceled) {
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
		}
		return err
	}

	g.Go(func() error {
		defer close(candidates)
		for {
			c, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fail(err)
			}
			select {
			case candidates <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	for i := 0; i < m.workers; i++ {
		g.Go(func() error {
			for c := range candidates {
				if err := gctx.Err(); err != nil {
					return err
				}
				hit, ok, err := m.process(gctx, c, re)
				m.tracker.Increment()
				if err != nil {
					return fail(fmt.Errorf("%s in %s: %w", c.Path, c.Repository, err))
				}
				if ok {
					mu.Lock()
					hits = append(hits, hit)
					mu.Unlock()
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if errs != nil {
		span.RecordError(errs)
		return nil, errs
	}
	if waitErr != nil {
		return nil, waitErr
	}

	SortHits(hits)
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

func (m *Matcher) process(ctx context.Context, c repository.Candidate, re *regexp.Regexp) (repository.Hit, bool, error) {
	ctx = logging.WithRepository(ctx, c.Repository.FullName)

	content, err := m.fetcher.Fetch(ctx, c)
	if err != nil {
		return repository.Hit{}, false, err
	}

	lines := MatchLines(content, re)
	m.metrics.RecordScan(len(lines))
	if len(lines) == 0 {
		m.logger.Trace(ctx, "no match", zap.String("path", c.Path))
		return repository.Hit{}, false, nil
	}

	hit := repository.Hit{Candidate: c, Content: content, Lines: lines}
	if m.detector != nil {
		hit.Secrets = m.detector.ScanLines(content, lines)
	}
	m.logger.Debug(ctx, "match", zap.String("path", c.Path), zap.Int("lines", len(lines)))
	return hit, true, nil
}

// SortHits orders hits by repository name, then full name, then path.
func SortHits(hits []repository.Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i].Repository, hits[j].Repository
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return hits[i].Path < hits[j].Path
	})
}

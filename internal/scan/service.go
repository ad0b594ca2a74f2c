// Package scan runs a search pass: resolve repositories, locate candidate
// files, fetch and match them in parallel, then summarize the hits.
package scan

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/reposcan/internal/logging"
	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RepositoryResolver lists the repositories of an account matching filters.
type RepositoryResolver interface {
	Resolve(ctx context.Context, account string, filters []string) ([]repository.Repository, error)
}

// SearchResults is a located result set whose total is known up front.
type SearchResults interface {
	CandidateSource
	Total() int
}

// CodeLocator runs the code search.
type CodeLocator interface {
	Locate(ctx context.Context, repos []repository.Repository, filenameFilter, token string) (SearchResults, error)
}

// Request describes one search pass.
type Request struct {
	Account        string
	Filters        []string
	FilenameFilter string
	Token          string
}

// Validate checks the request is complete.
func (r Request) Validate() error {
	switch {
	case r.Token == "":
		return ErrEmptyToken
	case r.Account == "":
		return errors.New("no target account given")
	case len(r.Filters) == 0:
		return errors.New("no repository filters given")
	case r.FilenameFilter == "":
		return errors.New("no filename filter given")
	}
	return nil
}

// Report is the outcome of a search pass.
type Report struct {
	Repositories []repository.Repository
	Total        int // candidates reported by the code search
	Hits         []repository.Hit
	Summary      Summary
}

// Hooks let the caller follow a pass as it runs. Any hook may be nil.
type Hooks struct {
	OnResolved      func(repos []repository.Repository)
	OnSearchStarted func(total int)
}

// Service wires the pipeline stages together.
type Service struct {
	resolver RepositoryResolver
	locator  CodeLocator
	matcher  *Matcher
	tracker  *Tracker
	hooks    Hooks
	logger   *logging.Logger
	tracer   trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithHooks installs progress callbacks.
func WithHooks(h Hooks) ServiceOption {
	return func(s *Service) {
		s.hooks = h
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *logging.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTracer sets the tracer used for the pass spans.
func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = t
	}
}

// NewService creates a Service. tracker must be the one given to matcher.
func NewService(resolver RepositoryResolver, locator CodeLocator, matcher *Matcher, tracker *Tracker, opts ...ServiceOption) *Service {
	s := &Service{
		resolver: resolver,
		locator:  locator,
		matcher:  matcher,
		tracker:  tracker,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = matcher.tracker
	}
	return s
}

// Run executes a search pass. Any failure aborts the pass; there are no
// partial results.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "reposcan.search", trace.WithAttributes(
		attribute.String("account", req.Account),
		attribute.String("filename_filter", req.FilenameFilter),
	))
	defer span.End()

	report, err := s.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("repositories", len(report.Repositories)),
		attribute.Int("candidates", report.Total),
		attribute.Int("hits", len(report.Hits)),
	)
	return report, nil
}

func (s *Service) run(ctx context.Context, req Request) (*Report, error) {
	repos, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.hooks.OnResolved != nil {
		s.hooks.OnResolved(repos)
	}

	results, err := s.locate(ctx, repos, req)
	if err != nil {
		return nil, err
	}
	total := results.Total()
	s.tracker.SetTotal(total)
	if s.hooks.OnSearchStarted != nil {
		s.hooks.OnSearchStarted(total)
	}

	hits, err := s.matcher.Match(ctx, results, req.Token)
	if err != nil {
		return nil, err
	}

	summary := Summarize(hits)
	s.logger.Info(ctx, "search pass finished",
		zap.Int("repositories", len(repos)),
		zap.Int("candidates", total),
		zap.Int("files_matched", summary.TotalFiles),
		zap.Int("lines_matched", summary.TotalHits),
	)
	return &Report{Repositories: repos, Total: total, Hits: hits, Summary: summary}, nil
}

func (s *Service) resolve(ctx context.Context, req Request) ([]repository.Repository, error) {
	ctx, span := s.tracer.Start(ctx, "scan.resolve")
	defer span.End()

	repos, err := s.resolver.Resolve(ctx, req.Account, req.Filters)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("repositories", len(repos)))
	return repos, nil
}

func (s *Service) locate(ctx context.Context, repos []repository.Repository, req Request) (SearchResults, error) {
	ctx, span := s.tracer.Start(ctx, "scan.locate")
	defer span.End()

	results, err := s.locator.Locate(ctx, repos, req.FilenameFilter, req.Token)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if results == nil {
		return nil, errors.New("code search returned no result set")
	}
	span.SetAttributes(attribute.Int("total", results.Total()))
	return results, nil
}

// Package ghclient talks to the GitHub REST API on behalf of a search pass:
// account lookup, repository listing, code search and content download.
//
// Every call goes through the same path: a shared rate limiter, retry with
// exponential backoff that honours GitHub rate-limit resets, a request
// counter and an OpenTelemetry span.
package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/reposcan/internal/config"
	"github.com/fyrsmithlabs/reposcan/internal/logging"
	"github.com/fyrsmithlabs/reposcan/internal/metrics"
	"github.com/google/go-github/v57/github"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/fyrsmithlabs/reposcan/internal/ghclient"

// Options configures a Client.
type Options struct {
	Token             config.Secret
	BaseURL           string // GitHub Enterprise API root; empty for github.com
	RequestsPerSecond float64
	Timeout           time.Duration
	Retry             RetryConfig

	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

// OptionsFromConfig maps the github section of the settings onto Options.
func OptionsFromConfig(c config.GitHubConfig) Options {
	retries := c.MaxRetries
	if retries == 0 {
		retries = -1 // zero in the settings means no retries
	}
	return Options{
		Token:             c.Token,
		BaseURL:           c.BaseURL,
		RequestsPerSecond: c.RequestsPerSecond,
		Timeout:           c.Timeout,
		Retry:             RetryConfig{MaxRetries: retries},
	}
}

// Client is a rate-limited, retrying GitHub API client.
type Client struct {
	gh      *github.Client
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewClient creates a GitHub client authenticated with opts.Token.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if !opts.Token.IsSet() {
		return nil, fmt.Errorf("GitHub token not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token.Value()})
	httpClient := oauth2.NewClient(ctx, ts)
	if opts.Timeout > 0 {
		httpClient.Timeout = opts.Timeout
	}

	gh := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		if gh, err = gh.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", opts.BaseURL, err)
		}
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	c := &Client{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   opts.Retry,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c, nil
}

// Authenticate verifies the token and returns the authenticated login.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var user *github.User
	resp, err := c.call(ctx, "users.get_authenticated", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		user, resp, err = c.gh.Users.Get(ctx, "")
		return resp, err
	})
	if err != nil {
		if isUnauthorized(resp, err) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("verifying github token: %w", err)
	}
	return user.GetLogin(), nil
}

// call runs one GitHub operation with pacing, retry, metrics and a span.
func (c *Client) call(ctx context.Context, operation string, fn func(ctx context.Context) (*github.Response, error)) (*github.Response, error) {
	ctx, span := c.tracer.Start(ctx, "github."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	attempt := func() (*github.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		return fn(ctx)
	}
	onRetry := func() {
		c.metrics.RecordRequest(operation, metrics.OutcomeRetry)
	}

	resp, err := withRetry(ctx, c.retry, c.logger, attempt, onRetry)

	code := statusCode(resp, err)
	span.SetAttributes(attribute.Int("http.status_code", code))
	if err != nil {
		c.metrics.RecordRequest(operation, metrics.OutcomeError)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Debug(ctx, "github call failed",
			zap.String("operation", operation), zap.Int("status_code", code), zap.Error(err))
		return resp, err
	}
	c.metrics.RecordRequest(operation, metrics.OutcomeSuccess)
	if resp != nil && resp.Rate.Limit > 0 {
		span.SetAttributes(attribute.Int("github.rate.remaining", resp.Rate.Remaining))
	}
	return resp, nil
}

// rawGet issues a GET for a path relative to the API root, or an absolute URL.
func (c *Client) rawGet(ctx context.Context, urlStr string, v interface{}) (*github.Response, error) {
	req, err := c.gh.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	return c.gh.Do(ctx, req, v)
}

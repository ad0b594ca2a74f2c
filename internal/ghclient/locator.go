package ghclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// MaxSearchResults is the most results the code search API will page through.
const MaxSearchResults = 1000

// Locator runs code searches scoped to a set of repositories.
type Locator struct {
	client *Client
}

// NewLocator creates a Locator.
func NewLocator(c *Client) *Locator {
	return &Locator{client: c}
}

// BuildQuery assembles the code search query for token, restricted to files
// matching filenameFilter in repos.
func BuildQuery(token, filenameFilter string, repos []repository.Repository) string {
	var b strings.Builder
	b.WriteString(token)
	b.WriteString(" filename:")
	b.WriteString(filenameFilter)
	for _, r := range repos {
		b.WriteString(" repo:")
		b.WriteString(r.FullName)
	}
	return b.String()
}

// Locate issues the search and fetches its first page, so Total is known
// before any candidate is consumed.
//
// A search that matches more than MaxSearchResults files, or that GitHub
// rejects as invalid, fails with *SearchQueryError.
func (l *Locator) Locate(ctx context.Context, repos []repository.Repository, filenameFilter, token string) (*Results, error) {
	if len(repos) == 0 {
		return &Results{done: true}, nil
	}

	res := &Results{
		client: l.client,
		query:  BuildQuery(token, filenameFilter, repos),
		byID:   make(map[int64]repository.Repository, len(repos)),
		byName: make(map[string]repository.Repository, len(repos)),
	}
	for _, r := range repos {
		res.byID[r.ID] = r
		res.byName[strings.ToLower(r.FullName)] = r
	}

	if err := res.fetchPage(ctx, 1); err != nil {
		return nil, err
	}
	if res.total > MaxSearchResults {
		return nil, &SearchQueryError{Query: res.query, Total: res.total}
	}
	return res, nil
}

// Results is a single-pass sequence of search candidates. Pages after the
// first are fetched on demand. Results is not safe for concurrent use.
type Results struct {
	client   *Client
	query    string
	total    int
	page     []repository.Candidate
	pos      int
	nextPage int
	done     bool

	byID   map[int64]repository.Repository
	byName map[string]repository.Repository
}

// Total is the result count reported by GitHub.
func (r *Results) Total() int {
	return r.total
}

// Query is the search query that was issued.
func (r *Results) Query() string {
	return r.query
}

// Next returns the next candidate, or io.EOF once the results are exhausted.
// After io.EOF or any other error every further call returns io.EOF.
func (r *Results) Next(ctx context.Context) (repository.Candidate, error) {
	for r.pos >= len(r.page) {
		if r.done || r.nextPage == 0 {
			r.done = true
			return repository.Candidate{}, io.EOF
		}
		if err := r.fetchPage(ctx, r.nextPage); err != nil {
			r.done = true
			return repository.Candidate{}, err
		}
	}
	c := r.page[r.pos]
	r.pos++
	return c, nil
}

func (r *Results) fetchPage(ctx context.Context, page int) error {
	opts := &github.SearchOptions{ListOptions: github.ListOptions{Page: page, PerPage: pageSize}}

	var result *github.CodeSearchResult
	resp, err := r.client.call(ctx, "search.code", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		result, resp, err = r.client.gh.Search.Code(ctx, r.query, opts)
		return resp, err
	})
	switch {
	case isStatus(resp, err, http.StatusUnprocessableEntity):
		return &SearchQueryError{Query: r.query, Err: err}
	case isUnauthorized(resp, err):
		return ErrInvalidCredentials
	case err != nil:
		return fmt.Errorf("code search page %d: %w", page, err)
	}

	if page == 1 {
		r.total = result.GetTotal()
	}
	if result.GetIncompleteResults() {
		r.client.logger.Warn(ctx, "code search timed out on GitHub, results may be incomplete",
			zap.Int("page", page))
	}

	r.page = make([]repository.Candidate, 0, len(result.CodeResults))
	for _, cr := range result.CodeResults {
		r.page = append(r.page, r.candidate(cr))
	}
	r.pos = 0
	r.nextPage = 0
	if resp != nil {
		r.nextPage = resp.NextPage
	}

	r.client.logger.Debug(ctx, "code search page fetched",
		zap.Int("page", page), zap.Int("items", len(r.page)), zap.Int("total", r.total))
	return nil
}

func (r *Results) candidate(cr *github.CodeResult) repository.Candidate {
	repo, ok := r.byID[cr.GetRepository().GetID()]
	if !ok {
		repo, ok = r.byName[strings.ToLower(cr.GetRepository().GetFullName())]
	}
	if !ok {
		gr := cr.GetRepository()
		repo = repository.Repository{
			ID:       gr.GetID(),
			Name:     gr.GetName(),
			FullName: gr.GetFullName(),
			Owner:    gr.GetOwner().GetLogin(),
		}
	}
	return repository.Candidate{
		Repository:  repo,
		Path:        cr.GetPath(),
		Fingerprint: cr.GetSHA(),
		HTMLURL:     cr.GetHTMLURL(),
	}
}

package ghclient

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
)

// Account types reported by the users API.
const (
	accountOrganization = "Organization"
	accountUser         = "User"
)

const pageSize = 100

// Resolver finds the repositories of an account whose names match a filter.
type Resolver struct {
	client *Client
}

// NewResolver creates a Resolver.
func NewResolver(c *Client) *Resolver {
	return &Resolver{client: c}
}

// Resolve looks up account, lists every repository it owns and keeps those
// whose name matches at least one filter. Filters are case-insensitive and
// must match the whole name. The result is sorted by name.
func (r *Resolver) Resolve(ctx context.Context, account string, filters []string) ([]repository.Repository, error) {
	patterns, err := CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	kind, login, err := r.lookup(ctx, account)
	if err != nil {
		return nil, err
	}

	var all []*github.Repository
	switch kind {
	case accountOrganization:
		all, err = r.listOrg(ctx, login)
	case accountUser:
		all, err = r.listUser(ctx, login)
	}
	if err != nil {
		return nil, err
	}

	repos := make([]repository.Repository, 0, len(all))
	for _, gr := range all {
		if !matchesAny(patterns, gr.GetName()) {
			continue
		}
		repos = append(repos, repository.Repository{
			ID:       gr.GetID(),
			Name:     gr.GetName(),
			FullName: fullName(gr, login),
			Owner:    login,
		})
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })

	r.client.logger.Info(ctx, "repositories resolved",
		zap.String("account", login),
		zap.String("type", kind),
		zap.Int("listed", len(all)),
		zap.Int("matched", len(repos)),
	)
	return repos, nil
}

// lookup returns the account type and canonical login.
func (r *Resolver) lookup(ctx context.Context, account string) (string, string, error) {
	var user *github.User
	resp, err := r.client.call(ctx, "users.get", func(ctx context.Context) (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		user, resp, err = r.client.gh.Users.Get(ctx, account)
		return resp, err
	})
	switch {
	case isStatus(resp, err, http.StatusNotFound):
		return "", "", &TargetNotFoundError{Account: account}
	case isUnauthorized(resp, err):
		return "", "", ErrInvalidCredentials
	case err != nil:
		return "", "", fmt.Errorf("looking up account %q: %w", account, err)
	}

	login := user.GetLogin()
	if login == "" || !strings.EqualFold(login, account) {
		return "", "", &TargetNotFoundError{Account: account}
	}

	switch kind := user.GetType(); kind {
	case accountOrganization, accountUser:
		return kind, login, nil
	default:
		return "", "", &TargetNotFoundError{Account: account}
	}
}

func (r *Resolver) listOrg(ctx context.Context, org string) ([]*github.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	var all []*github.Repository
	for {
		var page []*github.Repository
		resp, err := r.client.call(ctx, "repos.list_by_org", func(ctx context.Context) (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			page, resp, err = r.client.gh.Repositories.ListByOrg(ctx, org, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("listing repositories of organization %q: %w", org, err)
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (r *Resolver) listUser(ctx context.Context, user string) ([]*github.Repository, error) {
	opts := &github.RepositoryListOptions{
		Type:        "owner",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	var all []*github.Repository
	for {
		var page []*github.Repository
		resp, err := r.client.call(ctx, "repos.list_by_user", func(ctx context.Context) (*github.Response, error) {
			var (
				resp *github.Response
				err  error
			)
			page, resp, err = r.client.gh.Repositories.List(ctx, user, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("listing repositories of user %q: %w", user, err)
		}
		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// CompileFilters turns repository name filters into anchored,
// case-insensitive expressions.
func CompileFilters(filters []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(filters))
	for _, f := range filters {
		if strings.TrimSpace(f) == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)^(?:` + f + `)$`)
		if err != nil {
			return nil, fmt.Errorf("invalid repository filter %q: %w", f, err)
		}
		patterns = append(patterns, re)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no repository filters given")
	}
	return patterns, nil
}

func matchesAny(patterns []*regexp.Regexp, name string) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func fullName(gr *github.Repository, owner string) string {
	if fn := gr.GetFullName(); fn != "" {
		return fn
	}
	return owner + "/" + gr.GetName()
}

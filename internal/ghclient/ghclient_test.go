package ghclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/reposcan/internal/config"
	"github.com/fyrsmithlabs/reposcan/internal/metrics"
	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiPrefix is where go-github sends requests for an enterprise base URL.
const apiPrefix = "/api/v3"

func newTestServer(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	m := metrics.New()
	c, err := NewClient(context.Background(), Options{
		Token:             config.Secret("ghp_test"),
		BaseURL:           srv.URL + "/",
		RequestsPerSecond: 1000,
		Retry:             RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		Metrics:           m,
	})
	require.NoError(t, err)
	return c, srv, m
}

func handleJSON(mux *http.ServeMux, path, body string) {
	mux.HandleFunc(apiPrefix+path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
}

func failHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	}
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/user", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer ghp_test", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"login":"octocat","type":"User"}`)
		})
		c, _, _ := newTestServer(t, mux)

		login, err := c.Authenticate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "octocat", login)
	})

	t.Run("rejected token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc(apiPrefix+"/user", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
		})
		c, _, _ := newTestServer(t, mux)

		_, err := c.Authenticate(context.Background())
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestResolve_OrganizationFollowsPages(t *testing.T) {
	mux := http.NewServeMux()
	handleJSON(mux, "/users/ACME", `{"login":"acme","type":"Organization"}`)
	mux.HandleFunc(apiPrefix+"/users/acme/repos", failHandler(t))

	var srvURL string
	mux.HandleFunc(apiPrefix+"/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"id":3,"name":"svc-auth","full_name":"acme/svc-auth"},{"id":4,"name":"website","full_name":"acme/website"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/orgs/acme/repos?page=2&per_page=100>; rel="next"`, srvURL))
		fmt.Fprint(w, `[{"id":1,"name":"svc-billing","full_name":"acme/svc-billing"},{"id":2,"name":"SVC-Search","full_name":"acme/SVC-Search"}]`)
	})

	c, srv, m := newTestServer(t, mux)
	srvURL = srv.URL

	repos, err := NewResolver(c).Resolve(context.Background(), "ACME", []string{"^svc-.*$"})
	require.NoError(t, err)

	names := make([]string, 0, len(repos))
	for _, r := range repos {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"SVC-Search", "svc-auth", "svc-billing"}, names)
	assert.Equal(t, repository.Repository{ID: 3, Name: "svc-auth", FullName: "acme/svc-auth", Owner: "acme"}, repos[1])
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GitHubRequestsTotal.WithLabelValues("repos.list_by_org", metrics.OutcomeSuccess)))
}

func TestResolve_User(t *testing.T) {
	mux := http.NewServeMux()
	handleJSON(mux, "/users/octocat", `{"login":"octocat","type":"User"}`)
	mux.HandleFunc(apiPrefix+"/orgs/octocat/repos", failHandler(t))
	handleJSON(mux, "/users/octocat/repos", `[{"id":9,"name":"dotfiles"},{"id":8,"name":"blog"}]`)
	c, _, _ := newTestServer(t, mux)

	repos, err := NewResolver(c).Resolve(context.Background(), "octocat", []string{"dot.*", "BLOG"})
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "blog", repos[0].Name)
	assert.Equal(t, "octocat/blog", repos[0].FullName)
}

func TestResolve_TargetNotFound(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "404",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message":"Not Found"}`)
			},
		},
		{
			name: "login mismatch",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"login":"someone-else","type":"Organization"}`)
			},
		},
		{
			name: "empty login",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"type":"Organization"}`)
			},
		},
		{
			name: "unknown type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"login":"acme","type":"Bot"}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc(apiPrefix+"/users/acme", tt.handler)
			c, _, _ := newTestServer(t, mux)

			_, err := NewResolver(c).Resolve(context.Background(), "acme", []string{".*"})
			var notFound *TargetNotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, "acme", notFound.Account)
		})
	}
}

func TestCompileFilters(t *testing.T) {
	patterns, err := CompileFilters([]string{"svc-.*", "", "lib"})
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	assert.True(t, matchesAny(patterns, "SVC-auth"))
	assert.True(t, matchesAny(patterns, "lib"))
	assert.False(t, matchesAny(patterns, "mylib"), "filters match the whole name")
	assert.False(t, matchesAny(patterns, "libs"))

	_, err = CompileFilters([]string{"("})
	assert.ErrorContains(t, err, `invalid repository filter "("`)

	_, err = CompileFilters(nil)
	assert.Error(t, err)
}

var testRepos = []repository.Repository{
	{ID: 1, Name: "svc-auth", FullName: "acme/svc-auth", Owner: "acme"},
	{ID: 2, Name: "svc-billing", FullName: "acme/svc-billing", Owner: "acme"},
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "ApiKey filename:*.config repo:acme/svc-auth repo:acme/svc-billing",
		BuildQuery("ApiKey", "*.config", testRepos))
}

func TestLocate_PagesLazily(t *testing.T) {
	var pages int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/search/code", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		assert.Equal(t, "ApiKey filename:*.config repo:acme/svc-auth repo:acme/svc-billing", r.URL.Query().Get("q"))
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"total_count":3,"items":[{"path":"b.config","sha":"s3","repository":{"id":2,"full_name":"acme/svc-billing"}}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/api/v3/search/code?page=2>; rel="next"`, srvURL))
		fmt.Fprint(w, `{"total_count":3,"items":[
			{"path":"a.config","sha":"s1","html_url":"https://github.com/acme/svc-auth/blob/s1/a.config","repository":{"id":1,"full_name":"acme/svc-auth"}},
			{"path":"conf/b.config","sha":"s2","repository":{"id":99,"full_name":"ACME/svc-auth"}}
		]}`)
	})
	c, srv, _ := newTestServer(t, mux)
	srvURL = srv.URL
	ctx := context.Background()

	res, err := NewLocator(c).Locate(ctx, testRepos, "*.config", "ApiKey")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total())
	assert.Equal(t, int32(1), atomic.LoadInt32(&pages), "only the first page is fetched eagerly")

	var got []repository.Candidate
	for {
		cand, err := res.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, cand)
	}

	require.Len(t, got, 3)
	assert.Equal(t, testRepos[0], got[0].Repository)
	assert.Equal(t, "s1", got[0].Fingerprint)
	assert.Equal(t, "https://github.com/acme/svc-auth/blob/s1/a.config", got[0].HTMLURL)
	assert.Equal(t, testRepos[0], got[1].Repository, "falls back to full name")
	assert.Equal(t, testRepos[1], got[2].Repository)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pages))

	_, err = res.Next(ctx)
	assert.ErrorIs(t, err, io.EOF, "exhausted results stay exhausted")
}

func TestLocate_NoRepositories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", failHandler(t))
	c, _, _ := newTestServer(t, mux)

	res, err := NewLocator(c).Locate(context.Background(), nil, "*.config", "ApiKey")
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	_, err = res.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLocate_TooManyResults(t *testing.T) {
	mux := http.NewServeMux()
	handleJSON(mux, "/search/code", `{"total_count":1500,"items":[]}`)
	c, _, _ := newTestServer(t, mux)

	_, err := NewLocator(c).Locate(context.Background(), testRepos, "*", "a")
	var sqe *SearchQueryError
	require.ErrorAs(t, err, &sqe)
	assert.Equal(t, 1500, sqe.Total)
	assert.Contains(t, err.Error(), "narrow the query")
}

func TestLocate_RejectedQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/search/code", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Validation Failed"}`)
	})
	c, _, _ := newTestServer(t, mux)

	_, err := NewLocator(c).Locate(context.Background(), testRepos, "*", "a")
	var sqe *SearchQueryError
	require.ErrorAs(t, err, &sqe)
	assert.Zero(t, sqe.Total)
	assert.Contains(t, err.Error(), "narrow the query")
}

func TestDownload(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	handleJSON(mux, "/repositories/1/contents/conf/app.config",
		`{"type":"file","encoding":"base64","content":"YWJjClhZWgphYmM="}`)
	handleJSON(mux, "/repositories/1/contents/listed.config",
		`[{"type":"file","encoding":"base64","content":"Zmlyc3Q="},{"type":"file","encoding":"base64","content":"c2Vjb25k"}]`)
	mux.HandleFunc(apiPrefix+"/repositories/1/contents/big.config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"type":"file","encoding":"none","content":"","download_url":"%s/raw/big.config"}`, srvURL)
	})
	mux.HandleFunc("/raw/big.config", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "large body")
	})
	mux.HandleFunc(apiPrefix+"/repositories/1/contents/missing.config", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})
	c, srv, _ := newTestServer(t, mux)
	srvURL = srv.URL
	ctx := context.Background()

	text, err := c.Download(ctx, 1, "conf/app.config")
	require.NoError(t, err)
	assert.Equal(t, "abc\nXYZ\nabc", text)

	text, err = c.Download(ctx, 1, "listed.config")
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	text, err = c.Download(ctx, 1, "big.config")
	require.NoError(t, err)
	assert.Equal(t, "large body", text)

	_, err = c.Download(ctx, 1, "missing.config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.config")
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc(apiPrefix+"/repositories/1/contents/a.config", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"type":"file","encoding":"base64","content":"Zmlyc3Q="}`)
	})
	c, _, m := newTestServer(t, mux)

	text, err := c.Download(context.Background(), 1, "a.config")
	require.NoError(t, err)
	assert.Equal(t, "first", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GitHubRequestsTotal.WithLabelValues("repos.get_contents", metrics.OutcomeRetry)))
}

func TestContentsURL(t *testing.T) {
	assert.Equal(t, "repositories/7/contents/conf/app%20name.config", contentsURL(7, "conf/app name.config"))
	assert.Equal(t, "repositories/7/contents/a.config", contentsURL(7, "/a.config"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.GitHubConfig{Token: "x", MaxRetries: 0, RequestsPerSecond: 5})
	assert.Equal(t, -1, opts.Retry.MaxRetries)
	assert.Equal(t, 5.0, opts.RequestsPerSecond)

	opts = OptionsFromConfig(config.GitHubConfig{MaxRetries: 4})
	assert.Equal(t, 4, opts.Retry.MaxRetries)
}

package ghclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v57/github"
)

// ErrInvalidCredentials is returned when GitHub rejects the access token.
var ErrInvalidCredentials = errors.New("github rejected the access token; check github.token or GITHUB_TOKEN")

// TargetNotFoundError means the account is neither an organization nor a user.
type TargetNotFoundError struct {
	Account string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("target %q was not found as an organization or a user", e.Account)
}

// SearchQueryError means GitHub cannot serve the code search as asked.
type SearchQueryError struct {
	Query string
	Total int // reported result count, 0 when the query was rejected outright
	Err   error
}

func (e *SearchQueryError) Error() string {
	if e.Total > 0 {
		return fmt.Sprintf("code search matched %d files, more than the %d GitHub returns; narrow the query with stricter repository or filename filters", e.Total, MaxSearchResults)
	}
	if e.Err != nil {
		return fmt.Sprintf("code search was rejected (%v); narrow the query with stricter repository or filename filters", e.Err)
	}
	return "code search was rejected; narrow the query with stricter repository or filename filters"
}

func (e *SearchQueryError) Unwrap() error {
	return e.Err
}

// statusCode extracts the HTTP status from a go-github error or response.
func statusCode(resp *github.Response, err error) int {
	if resp != nil && resp.Response != nil {
		return resp.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}

func isStatus(resp *github.Response, err error, code int) bool {
	return statusCode(resp, err) == code
}

func isUnauthorized(resp *github.Response, err error) bool {
	return isStatus(resp, err, http.StatusUnauthorized)
}

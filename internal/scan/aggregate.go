package scan

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/reposcan/internal/repository"
)

// NotFoundMessage is reported when no file contains the token.
const NotFoundMessage = "Search token has not been found in any repository."

// RepoSummary counts the hits of one repository.
type RepoSummary struct {
	Name  string
	Files int
	Hits  int
}

// String renders "svc-auth (1 file; 2 hits)".
func (r RepoSummary) String() string {
	files := "files"
	if r.Files == 1 {
		files = "file"
	}
	return fmt.Sprintf("%s (%d %s; %d hits)", r.Name, r.Files, files, r.Hits)
}

// Summary groups hits per repository.
type Summary struct {
	Repositories []RepoSummary
	TotalFiles   int
	TotalHits    int
}

// Empty reports whether no file matched.
func (s Summary) Empty() bool {
	return len(s.Repositories) == 0
}

// Lines renders one line per repository, or NotFoundMessage when empty.
func (s Summary) Lines() []string {
	if s.Empty() {
		return []string{NotFoundMessage}
	}
	out := make([]string, 0, len(s.Repositories))
	for _, r := range s.Repositories {
		out = append(out, r.String())
	}
	return out
}

// Summarize groups hits by repository name, sorted ascending. The result
// does not depend on the order of hits.
func Summarize(hits []repository.Hit) Summary {
	byName := make(map[string]*RepoSummary)
	var s Summary
	for _, h := range hits {
		name := h.Repository.Name
		rs, ok := byName[name]
		if !ok {
			rs = &RepoSummary{Name: name}
			byName[name] = rs
		}
		rs.Files++
		rs.Hits += len(h.Lines)
		s.TotalFiles++
		s.TotalHits += len(h.Lines)
	}

	s.Repositories = make([]RepoSummary, 0, len(byName))
	for _, rs := range byName {
		s.Repositories = append(s.Repositories, *rs)
	}
	sort.Slice(s.Repositories, func(i, j int) bool {
		return s.Repositories[i].Name < s.Repositories[j].Name
	})
	return s
}

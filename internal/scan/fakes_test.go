package scan

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fyrsmithlabs/reposcan/internal/repository"
)

// sliceSource yields a fixed candidate list, then err (io.EOF by default).
type sliceSource struct {
	mu         sync.Mutex
	candidates []repository.Candidate
	err        error
	total      int
}

func newSource(candidates ...repository.Candidate) *sliceSource {
	return &sliceSource{candidates: candidates, total: len(candidates)}
}

func (s *sliceSource) Next(ctx context.Context) (repository.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return repository.Candidate{}, err
	}
	if len(s.candidates) == 0 {
		if s.err != nil {
			return repository.Candidate{}, s.err
		}
		return repository.Candidate{}, io.EOF
	}
	c := s.candidates[0]
	s.candidates = s.candidates[1:]
	return c, nil
}

func (s *sliceSource) Total() int { return s.total }

// mapFetcher serves content by "full:path".
type mapFetcher struct {
	content map[string]string
	errs    map[string]error
}

func (f *mapFetcher) Fetch(ctx context.Context, c repository.Candidate) (string, error) {
	key := c.Repository.FullName + ":" + c.Path
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	content, ok := f.content[key]
	if !ok {
		return "", fmt.Errorf("no content for %s", key)
	}
	return content, nil
}

func candidate(owner, repo, path string) repository.Candidate {
	return repository.Candidate{
		Repository: repository.Repository{
			ID:       int64(len(owner) + len(repo)),
			Name:     repo,
			FullName: owner + "/" + repo,
			Owner:    owner,
		},
		Path:        path,
		Fingerprint: "abc123",
		HTMLURL:     "https://github.com/" + owner + "/" + repo + "/blob/main/" + path,
	}
}

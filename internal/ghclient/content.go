package ghclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
)

// Download returns the text of path in the repository with the given id.
// When the contents API returns a list, the first entry is used. Files too
// large for inline content are fetched from their download URL.
func (c *Client) Download(ctx context.Context, repoID int64, path string) (string, error) {
	var raw json.RawMessage
	resp, err := c.call(ctx, "repos.get_contents", func(ctx context.Context) (*github.Response, error) {
		return c.rawGet(ctx, contentsURL(repoID, path), &raw)
	})
	if err != nil {
		if isUnauthorized(resp, err) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("downloading %s from repository %d: %w", path, repoID, err)
	}

	entry, err := firstContent(raw)
	if err != nil {
		return "", fmt.Errorf("decoding contents of %s: %w", path, err)
	}

	if entry.GetEncoding() == "none" || (entry.Content == nil && entry.GetDownloadURL() != "") {
		return c.downloadRaw(ctx, entry.GetDownloadURL())
	}

	text, err := entry.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding contents of %s: %w", path, err)
	}
	return text, nil
}

func (c *Client) downloadRaw(ctx context.Context, downloadURL string) (string, error) {
	if downloadURL == "" {
		return "", fmt.Errorf("file has no inline content and no download url")
	}

	var body []byte
	_, err := c.call(ctx, "repos.download", func(ctx context.Context) (*github.Response, error) {
		req, err := c.gh.NewRequest(http.MethodGet, downloadURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.gh.BareDo(ctx, req)
		if err != nil {
			return resp, err
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return resp, err
	})
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", downloadURL, err)
	}
	return string(body), nil
}

// firstContent decodes a contents payload that is either one entry or a list.
func firstContent(raw json.RawMessage) (*github.RepositoryContent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	if trimmed[0] == '[' {
		var entries []*github.RepositoryContent
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, err
		}
		if len(entries) == 0 || entries[0] == nil {
			return nil, fmt.Errorf("no content entries")
		}
		return entries[0], nil
	}

	var entry github.RepositoryContent
	if err := json.Unmarshal(trimmed, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func contentsURL(repoID int64, path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("repositories/%d/contents/%s", repoID, strings.Join(segments, "/"))
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupHome points HOME at a temp dir and returns the reposcan config dir.
func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(TokenEnvVar, "")
	dir := filepath.Join(home, ".config", "reposcan")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Search.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Search.ProgressInterval)
	assert.Equal(t, OutputModePath, cfg.Output.Mode)
	assert.Equal(t, 2, cfg.Output.SurroundingLines)
	assert.Equal(t, 10.0, cfg.GitHub.RequestsPerSecond)
	assert.Equal(t, 3, cfg.GitHub.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.GitHub.Token.IsSet())
}

func TestLoadWithFile_YAML(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, `
github:
  token: ghp_fromfile
  target: acme
search:
  repository_filters:
    - "^svc-.*$"
  filename_filter: "*.config"
  workers: 4
output:
  mode: HtmlUrl
  surrounding_lines: 5
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "ghp_fromfile", cfg.GitHub.Token.Value())
	assert.Equal(t, "acme", cfg.GitHub.Target)
	assert.Equal(t, []string{"^svc-.*$"}, cfg.Search.RepositoryFilters)
	assert.Equal(t, "*.config", cfg.Search.FilenameFilter)
	assert.Equal(t, 4, cfg.Search.Workers)
	assert.Equal(t, OutputModeHTMLURL, cfg.Output.Mode)
	assert.Equal(t, 5, cfg.Output.SurroundingLines)
}

func TestLoadWithFile_EnvOverridesFile(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, "github:\n  target: fromfile\n", 0600)

	t.Setenv("REPOSCAN_GITHUB_TARGET", "fromenv")
	t.Setenv("REPOSCAN_SEARCH_REPOSITORY_FILTERS", "^a$|^b$")
	t.Setenv("REPOSCAN_SEARCH_FILENAME_FILTER", "app.config")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "fromenv", cfg.GitHub.Target)
	assert.Equal(t, []string{"^a$", "^b$"}, cfg.Search.RepositoryFilters)
	assert.Equal(t, "app.config", cfg.Search.FilenameFilter)
}

func TestLoadWithFile_GitHubTokenFallback(t *testing.T) {
	setupHome(t)
	t.Setenv(TokenEnvVar, "ghp_conventional")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "ghp_conventional", cfg.GitHub.Token.Value())
}

func TestLoadWithFile_RejectsInsecurePermissions(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, "github:\n  target: acme\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_RejectsPathOutsideConfigDir(t *testing.T) {
	setupHome(t)
	outside := filepath.Join(t.TempDir(), "config.yaml")

	_, err := LoadWithFile(outside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path validation failed")
}

func TestLoadWithFile_InvalidValues(t *testing.T) {
	dir := setupHome(t)
	path := writeConfig(t, dir, "search:\n  workers: 500\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid worker count")
}

func TestEnvKeyValue(t *testing.T) {
	tests := []struct {
		key, value string
		wantKey    string
		wantValue  interface{}
	}{
		{"REPOSCAN_GITHUB_TOKEN", "x", "github.token", "x"},
		{"REPOSCAN_SEARCH_FILENAME_FILTER", "*.yml", "search.filename_filter", "*.yml"},
		{"REPOSCAN_SEARCH_REPOSITORY_FILTERS", "a||b", "search.repository_filters", []string{"a", "b"}},
		{"REPOSCAN_DEBUG", "1", "debug", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			k, v := envKeyValue(tt.key, tt.value)
			assert.Equal(t, tt.wantKey, k)
			assert.Equal(t, tt.wantValue, v)
		})
	}
}

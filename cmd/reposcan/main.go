// Package main implements the reposcan CLI: search the repositories of a
// GitHub organization or user for files containing a token.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// usageError aborts the command with exit code 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

// execute runs the command tree and maps the outcome to an exit code.
// Only usage problems exit non-zero; search failures have already been
// reported on stdout.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var usage *usageError
	if errors.As(err, &usage) {
		fmt.Fprintf(stdout, "\n%s\n", usage.msg)
		return 1
	}
	// Flag parsing and other cobra errors.
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func newRootCmd() *cobra.Command {
	f := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "reposcan <search-token>",
		Short: "Search the files of GitHub repositories for a token",
		Long: `reposcan finds the repositories of a GitHub organization or user that match
a set of filters, runs a code search restricted to a filename pattern, and
lists every line containing the search token.

The token is a case-insensitive pattern: regex syntax keeps its meaning
unless --literal is given.

Examples:
  # Find connection strings in the config files of all svc- repositories
  reposcan -t acme -r '^svc-.*$' -f '*.config' ConnectionString

  # Link to the files instead of printing their paths, no context lines
  reposcan -t acme -r '^svc-.*$|^lib-.*$' -f app.yaml -o html_url -l 0 password

  # Show what the content cache holds, or empty it
  reposcan --cache-stats
  reposcan --flush-cache`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "" {
				if f.flushCache || f.cacheStats {
					return runCacheOnly(cmd, f)
				}
				return &usageError{msg: ` Usage: reposcan "<search-token>" [flags]` + "\n\n" +
					` Run "reposcan --help" for the list of flags.`}
			}
			return runSearch(cmd, f, args[0])
		},
	}

	f.register(cmd)
	return cmd
}

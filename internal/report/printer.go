// Package report renders a search pass to the console: progress, the hit
// listing with surrounding lines, and the per-repository summary.
package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"github.com/fyrsmithlabs/reposcan/internal/scan"
	"go.uber.org/multierr"
)

const (
	separatorWidth  = 70
	progressWidth   = 40
	sparklineWidth  = 30
	sparklineHeight = 3
)

// Redactor masks credentials in a printed line.
type Redactor interface {
	RedactLine(line string) string
}

// Options controls what the Printer writes.
type Options struct {
	// UseHTMLURL names hit files by their browser link instead of their path.
	UseHTMLURL bool

	// SurroundingLines is the number of lines shown before and after a match.
	SurroundingLines int

	// Quiet suppresses the hit listing. The summary is always printed.
	Quiet bool

	// Redactor, when set, masks credentials in every printed content line.
	Redactor Redactor
}

// Printer writes the report for one search pass.
type Printer struct {
	out    io.Writer
	opts   Options
	styles styles
	bar    progress.Model

	progressShown bool
}

// NewPrinter creates a Printer writing to out.
func NewPrinter(out io.Writer, opts Options) *Printer {
	if opts.SurroundingLines < 0 {
		opts.SurroundingLines = 0
	}
	return &Printer{
		out:    out,
		opts:   opts,
		styles: newStyles(out),
		bar: progress.New(
			progress.WithGradient("#00ffff", "#ff00ff"),
			progress.WithWidth(progressWidth),
		),
	}
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Banner prints the program name and version.
func (p *Printer) Banner(version string) {
	p.printf("\n %s\n", p.styles.header.Render("reposcan version "+version))
}

// Resolving announces the repository lookup.
func (p *Printer) Resolving(account string) {
	p.printf("\n Searching GitHub for repositories on %s\n", p.styles.value.Render(account))
}

// Resolved reports the repositories selected by the filters.
func (p *Printer) Resolved(account, filenameFilter string, repos []repository.Repository) {
	p.printf("\n Downloading files matching '%s' from %s owned by %s\n",
		filenameFilter, plural(len(repos), "repository"), account)
}

// SearchStarted announces the matching phase.
func (p *Printer) SearchStarted(token string, total int) {
	p.printf(" Start searching for '%s' in %s\n\n", token, plural(total, "candidate file"))
}

// Progress redraws the progress bar in place.
func (p *Printer) Progress(pr scan.Progress) {
	p.progressShown = true
	p.printf("\r %s %s", p.bar.ViewAs(pr.Fraction()),
		p.styles.dim.Render(fmt.Sprintf("%d/%d", pr.Completed, pr.Total)))
}

// EndProgress terminates the progress line, if one was drawn.
func (p *Printer) EndProgress() {
	if p.progressShown {
		p.printf("\n")
		p.progressShown = false
	}
}

// Hits lists every hit grouped by repository, with the matching lines and
// their surroundings. Nothing is printed in quiet mode.
func (p *Printer) Hits(hits []repository.Hit, highlight *regexp.Regexp) {
	if p.opts.Quiet || len(hits) == 0 {
		return
	}

	last := ""
	for _, hit := range hits {
		if name := hit.Repository.Name; name != last {
			last = name
			p.printf("\n Found on %s in files:\n", p.styles.repo.Render(name))
		}
		p.hit(hit, highlight)
	}
}

func (p *Printer) hit(hit repository.Hit, highlight *regexp.Regexp) {
	p.printf(" %s in %s\n", plural(len(hit.Lines), "hit"), hit.Location(p.opts.UseHTMLURL))

	for _, f := range hit.Secrets {
		p.printf(" %s line %d: %s %s\n",
			p.styles.warning.Render("possible secret"), f.Line, f.RuleID, p.styles.dim.Render(f.Preview))
	}

	lines := strings.Split(hit.Content, "\n")
	for _, n := range hit.Lines {
		start, end := contextRange(n, p.opts.SurroundingLines, len(lines))
		for i := start; i <= end; i++ {
			text := strings.TrimSuffix(lines[i-1], "\r")
			if p.opts.Redactor != nil {
				text = p.opts.Redactor.RedactLine(text)
			}
			p.printf("%5d: %s\n", i, p.highlight(text, highlight))
		}
		p.printf("%s\n", strings.Repeat("-", separatorWidth))
	}
}

// contextRange returns the 1-based, inclusive line range shown around line.
func contextRange(line, surrounding, total int) (int, int) {
	start := line - surrounding
	if start < 1 {
		start = 1
	}
	end := line + surrounding
	if end > total {
		end = total
	}
	return start, end
}

func (p *Printer) highlight(text string, re *regexp.Regexp) string {
	if re == nil {
		return text
	}
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	prev := 0
	for _, m := range matches {
		if m[0] == m[1] {
			continue
		}
		b.WriteString(text[prev:m[0]])
		b.WriteString(p.styles.highlight.Render(text[m[0]:m[1]]))
		prev = m[1]
	}
	b.WriteString(text[prev:])
	return b.String()
}

// Summary prints the per-repository totals, or the not-found message.
func (p *Printer) Summary(s scan.Summary, filenameFilter, token string) {
	if s.Empty() {
		p.printf("\n %s\n", scan.NotFoundMessage)
		return
	}

	p.printf("\n Files matching '%s' and containing '%s' were found in the following %s:\n",
		filenameFilter, token, plural(len(s.Repositories), "repository"))
	for _, line := range s.Lines() {
		p.printf(" - %s\n", line)
	}

	if !p.opts.Quiet && len(s.Repositories) > 1 {
		p.printf("\n %s\n", p.styles.label.Render("Hits per repository"))
		p.printf("%s\n", p.sparkline(s))
	}
}

func (p *Printer) sparkline(s scan.Summary) string {
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, r := range s.Repositories {
		spark.Push(float64(r.Hits))
	}
	spark.Draw()
	return p.styles.sparkline.Render(spark.View())
}

// Error prints err, one line per underlying cause.
func (p *Printer) Error(err error) {
	if err == nil {
		return
	}
	p.EndProgress()
	p.printf("\n")
	for _, e := range multierr.Errors(err) {
		p.printf(" %s\n", p.styles.err.Render(e.Error()))
	}
}

// CacheStats prints the content of the cache directory.
func (p *Printer) CacheStats(root string, repos, files int, bytes int64) {
	p.printf(" %s %s\n", p.styles.label.Render("Cache:"), root)
	p.printf(" %s %d\n", p.styles.label.Render("Repositories:"), repos)
	p.printf(" %s %d\n", p.styles.label.Render("Files:"), files)
	p.printf(" %s %s\n", p.styles.label.Render("Size:"), FormatBytes(bytes))
}

// Line prints a plain message.
func (p *Printer) Line(format string, args ...any) {
	p.printf(" "+format+"\n", args...)
}

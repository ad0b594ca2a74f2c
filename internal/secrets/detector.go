// Package secrets classifies matching lines with the Gitleaks rule set and
// masks detected credentials before they reach the console.
package secrets

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/fyrsmithlabs/reposcan/internal/repository"
	"github.com/zricethezav/gitleaks/v8/detect"
)

// previewLen is how many leading characters of a secret stay visible.
const previewLen = 4

// Detector wraps a Gitleaks detector loaded with the default rules.
// Building the rule set is expensive, so one Detector serves a whole run.
type Detector struct {
	mu sync.Mutex
	d  *detect.Detector
}

// NewDetector loads the default Gitleaks configuration.
func NewDetector() (*Detector, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("loading gitleaks rules: %w", err)
	}
	return &Detector{d: d}, nil
}

// match is one credential found in a single line.
type match struct {
	ruleID string
	secret string
}

func (d *Detector) detectLine(line string) []match {
	d.mu.Lock()
	findings := d.d.DetectString(line)
	d.mu.Unlock()

	out := make([]match, 0, len(findings))
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		out = append(out, match{ruleID: f.RuleID, secret: f.Secret})
	}
	return out
}

// ScanLines reports credentials on the given 1-based lines of content.
// Line numbers outside content are ignored.
func (d *Detector) ScanLines(content string, lineNumbers []int) []repository.SecretFinding {
	if len(lineNumbers) == 0 {
		return nil
	}
	lines := strings.Split(content, "\n")

	var findings []repository.SecretFinding
	for _, n := range lineNumbers {
		if n < 1 || n > len(lines) {
			continue
		}
		for _, m := range d.detectLine(lines[n-1]) {
			findings = append(findings, repository.SecretFinding{
				RuleID:  m.ruleID,
				Line:    n,
				Preview: Mask(m.secret),
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Line < findings[j].Line })
	return findings
}

// RedactLine replaces every credential in line with a marker naming its rule.
func (d *Detector) RedactLine(line string) string {
	matches := d.detectLine(line)
	// Longest first so a secret that contains another is replaced whole.
	sort.Slice(matches, func(i, j int) bool { return len(matches[i].secret) > len(matches[j].secret) })
	for _, m := range matches {
		line = strings.ReplaceAll(line, m.secret, fmt.Sprintf("[REDACTED:%s:%s]", m.ruleID, preview(m.secret)))
	}
	return line
}

// Mask keeps the first characters of a secret and hides the rest.
func Mask(secret string) string {
	n := utf8.RuneCountInString(secret)
	if n <= previewLen {
		return strings.Repeat("*", n)
	}
	return preview(secret) + strings.Repeat("*", n-previewLen)
}

// preview returns the first previewLen runes of s.
func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}

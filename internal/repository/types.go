package repository

import "fmt"

// Repository identifies one repository owned by the searched account.
type Repository struct {
	// ID is GitHub's numeric repository id.
	ID int64

	// Name is the short repository name, e.g. "svc-auth".
	Name string

	// FullName is "owner/name". Cache entries are stored under it.
	FullName string

	// Owner is the account login.
	Owner string
}

func (r Repository) String() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Name
}

// Candidate is one code search result, not yet fetched.
type Candidate struct {
	Repository Repository

	// Path is the file path relative to the repository root.
	Path string

	// Fingerprint is the blob SHA reported by the search. A new revision of
	// the file gets a new fingerprint.
	Fingerprint string

	// HTMLURL is the browser link to the file.
	HTMLURL string
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s:%s@%s", c.Repository, c.Path, c.Fingerprint)
}

// Hit is a candidate with at least one matching line.
type Hit struct {
	Candidate

	// Content is the full file text.
	Content string

	// Lines holds the 1-based matching line numbers in ascending order.
	Lines []int

	// Secrets lists credentials found on matching lines, when detection is on.
	Secrets []SecretFinding
}

// SecretFinding is a credential detected on a matching line.
type SecretFinding struct {
	RuleID  string
	Line    int
	Preview string // masked, never the raw secret
}

// Location returns how the hit is named in the report for the given output mode.
func (h Hit) Location(useHTMLURL bool) string {
	if useHTMLURL && h.HTMLURL != "" {
		return h.HTMLURL
	}
	return h.Path
}

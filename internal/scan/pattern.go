package scan

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyToken is returned when the search token is empty.
var ErrEmptyToken = errors.New("search token is empty")

// CompilePattern builds the line matcher for token.
//
// By default token is a regular expression matched case-insensitively, so
// "api.?key" matches "ApiKey" and "api_key". Flags, groups, classes and
// escapes in the token keep their RE2 meaning. With literal set the token is
// matched verbatim, case-insensitively.
func CompilePattern(token string, literal bool) (*regexp.Regexp, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	if literal {
		token = regexp.QuoteMeta(token)
	}
	return regexp.Compile("(?i)" + token)
}

// MatchLines returns the 1-based numbers of the lines in content that match re.
func MatchLines(content string, re *regexp.Regexp) []int {
	var lines []int
	for i, line := range strings.Split(content, "\n") {
		if re.MatchString(line) {
			lines = append(lines, i+1)
		}
	}
	return lines
}

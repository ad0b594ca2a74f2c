package secrets

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Assembled at runtime so the fixture itself does not trip secret scanners.
var githubPAT = "ghp_" + strings.Repeat("aB3dE5fG7h", 3) + "123456"

func TestDetector_ScanLines(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	content := strings.Join([]string{
		"name = billing",
		"token = " + githubPAT,
		"ApiKey = changeme",
	}, "\n")

	findings := d.ScanLines(content, []int{1, 2, 3, 99})
	require.NotEmpty(t, findings)
	for _, f := range findings {
		assert.Equal(t, 2, f.Line)
		assert.NotContains(t, f.Preview, githubPAT)
		assert.True(t, strings.HasPrefix(f.Preview, "ghp_"), f.Preview)
	}

	assert.Empty(t, d.ScanLines(content, []int{1}))
	assert.Nil(t, d.ScanLines(content, nil))
}

func TestDetector_RedactLine(t *testing.T) {
	d, err := NewDetector()
	require.NoError(t, err)

	line := "token = " + githubPAT
	redacted := d.RedactLine(line)
	assert.NotContains(t, redacted, githubPAT)
	assert.Contains(t, redacted, "[REDACTED:")
	assert.True(t, strings.HasPrefix(redacted, "token = "))

	assert.Equal(t, "plain text", d.RedactLine("plain text"))
}

func TestMask(t *testing.T) {
	tests := []struct {
		secret string
		want   string
	}{
		{"abcdefgh", "abcd****"},
		{"abc", "***"},
		{"", ""},
		{"ééééxyz", "éééé***"},
		{"日本語", "***"},
	}
	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			got := Mask(tt.secret)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestPreview_KeepsRunesWhole(t *testing.T) {
	got := preview("€€€€€key")
	assert.Equal(t, "€€€€", got)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "ab", preview("ab"))
}

package converter

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/tranquilize/internal/matcher"
)

func TestExpandCharacterClasses(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "expand \\w", input: `\w`, expected: `[a-zA-Z0-9_]`},
		{name: "expand \\W", input: `\W`, expected: `[^a-zA-Z0-9_]`},
		{name: "expand \\d", input: `\d`, expected: `[0-9]`},
		{name: "expand \\D", input: `\D`, expected: `[^0-9]`},
		{name: "expand \\s", input: `\s`, expected: `[ \t\n\r\f\v]`},
		{name: "expand \\S", input: `\S`, expected: `[^ \t\n\r\f\v]`},
		{
			name:     "open numeric quantifier approximated",
			input:    `watch/\w{11,}`,
			expected: `watch/[a-zA-Z0-9_]+`,
		},
		{
			name:     "expand mixed character classes",
			input:    `\w\d\s`,
			expected: `[a-zA-Z0-9_][0-9][ \t\n\r\f\v]`,
		},
		{
			name:     "no expansion needed",
			input:    `reddit\.com/r/[^/]+`,
			expected: `reddit\.com/r/[^/]+`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandCharacterClasses(tt.input))
		})
	}
}

func TestCanonicalToURLFilter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty pattern", input: "", expected: ".*"},
		{name: "match everything", input: ".*", expected: ".*"},
		{
			name:     "anchored both ends",
			input:    `^reddit\.com$`,
			expected: `^https?://(www\.)?reddit\.com/?([?#].*)?$`,
		},
		{
			name:     "anchored start only",
			input:    `^youtube\.com/watch`,
			expected: `^https?://(www\.)?youtube\.com/watch`,
		},
		{
			name:     "unanchored",
			input:    `/shorts/`,
			expected: `/shorts/`,
		},
		{
			name:     "escaped dollar is literal",
			input:    `^example\.com/price\$`,
			expected: `^https?://(www\.)?example\.com/price\$`,
		},
		{
			name:     "shorthand expanded",
			input:    `^instagram\.com/reels/\w+$`,
			expected: `^https?://(www\.)?instagram\.com/reels/[a-zA-Z0-9_]+/?([?#].*)?$`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalToURLFilter(tt.input))
		})
	}
}

// A converted filter must accept the full URLs whose canonical form the
// original pattern accepts
func TestURLFilterAgreesWithCanonicalMatch(t *testing.T) {
	m := matcher.New(nil)

	tests := []struct {
		pattern string
		url     string
	}{
		{`^reddit\.com$`, "https://www.reddit.com/"},
		{`^reddit\.com$`, "https://reddit.com"},
		{`^reddit\.com$`, "https://www.reddit.com/?feed=home"},
		{`^reddit\.com$`, "https://www.reddit.com/r/funny"},
		{`^youtube\.com$`, "https://www.youtube.com/#top"},
		{`^youtube\.com/watch`, "https://www.youtube.com/watch?v=abc"},
		{`^youtube\.com/watch`, "https://music.youtube.com/watch?v=abc"},
		{`^instagram\.com/reels/[^/]+$`, "https://www.instagram.com/reels/xyz/"},
		{".*", "http://example.com/anything"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.url, func(t *testing.T) {
			filter := CanonicalToURLFilter(tt.pattern)
			require.True(t, ValidateRegex(filter), filter)

			want := m.MatchPattern(tt.pattern, matcher.NormalizeURL(tt.url))
			got := regexp.MustCompile(filter).MatchString(tt.url)
			assert.Equal(t, want, got, "filter %s", filter)
		})
	}
}

func TestValidateRegex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "valid simple regex", input: `example\.com`, expected: true},
		{name: "valid character class", input: `[a-zA-Z0-9_]+`, expected: true},
		{name: "valid optional group", input: `^https?://(www\.)?reddit\.com/?([?#].*)?$`, expected: true},
		{name: "invalid - open numeric quantifier", input: `[a-zA-Z0-9_]{30,}`, expected: false},
		{name: "invalid - exact numeric quantifier", input: `[0-9]{4}`, expected: false},
		{name: "invalid - disjunction", input: `reddit\.com/(hot|top)`, expected: false},
		{name: "valid - pipe in character class", input: `[a|b]`, expected: true},
		{name: "invalid - negative lookahead", input: `^youtube\.com/(?!watch)`, expected: false},
		{name: "invalid - lookbehind", input: `(?<=foo)bar`, expected: false},
		{name: "invalid - unicode property", input: `\p{L}`, expected: false},
		{name: "invalid - word boundary", input: `\bword\b`, expected: false},
		{name: "invalid - unexpanded shorthand", input: `\d+`, expected: false},
		{name: "invalid - does not compile", input: `[a-z`, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateRegex(tt.input))
		})
	}
}

func TestContainsDisjunction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "no pipe", input: `example\.com`, expected: false},
		{name: "pipe in character class", input: `[a|b]`, expected: false},
		{name: "pipe outside character class", input: `foo|bar`, expected: true},
		{name: "escaped pipe", input: `foo\|bar`, expected: false},
		{name: "disjunction after character class", input: `[abc]|def`, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, containsDisjunction(tt.input))
		})
	}
}

func TestCheckWebKitCompatibility(t *testing.T) {
	issues := CheckWebKitCompatibility(`^youtube\.com/(channel|c)/\w{3}(?!x)`)

	assert.Equal(t, "shorthand character class: \\w, numeric quantifier: {3}, disjunction (|) outside character class, negative lookahead",
		DescribeIssues(issues))
	assert.True(t, HasUnfixableIssues(`a|b`))
	assert.False(t, HasUnfixableIssues(`\w{2,}`))
	assert.Empty(t, DescribeIssues(nil))
}

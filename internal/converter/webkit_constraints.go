package converter

// WebKit content blockers accept a small subset of JavaScript regular
// expressions: ".", character classes, greedy "*" "+" "?", grouping, and
// "^"/"$" only at the pattern edges. Shorthand classes, word boundaries,
// counted quantifiers, alternation, lookaround, named groups and non-ASCII
// characters are all rejected when Safari compiles the list.

import (
	"strings"
)

// WebKitRegexIssue describes a problem found in a regex pattern
type WebKitRegexIssue struct {
	Pattern     string
	Issue       string
	Fixable     bool
	Replacement string
}

var unsupportedAssertions = []struct {
	pattern string
	name    string
}{
	{`(?<!`, "negative lookbehind"},
	{`(?<=`, "positive lookbehind"},
	{`(?=`, "positive lookahead"},
	{`(?!`, "negative lookahead"},
	{`(?P<`, "named group"},
	{`(?<`, "named group"},
	{`\p{`, "unicode property"},
	{`\P{`, "unicode property"},
}

// CheckWebKitCompatibility analyzes a regex pattern for WebKit compatibility issues
func CheckWebKitCompatibility(pattern string) []WebKitRegexIssue {
	var issues []WebKitRegexIssue

	shorthandPatterns := []struct {
		match       string
		replacement string
		fixable     bool
	}{
		{`\w`, `[a-zA-Z0-9_]`, true},
		{`\W`, `[^a-zA-Z0-9_]`, true},
		{`\d`, `[0-9]`, true},
		{`\D`, `[^0-9]`, true},
		{`\s`, `[ \t\n\r\f\v]`, true},
		{`\S`, `[^ \t\n\r\f\v]`, true},
		{`\b`, "", false},
		{`\B`, "", false},
	}

	for _, sp := range shorthandPatterns {
		if strings.Contains(pattern, sp.match) {
			issues = append(issues, WebKitRegexIssue{
				Pattern:     pattern,
				Issue:       "shorthand character class: " + sp.match,
				Fixable:     sp.fixable,
				Replacement: sp.replacement,
			})
		}
	}

	// {n,} is rewritten to + by expandCharacterClasses
	for _, m := range reNumericQuantifierOpen.FindAllString(pattern, -1) {
		issues = append(issues, WebKitRegexIssue{
			Pattern:     pattern,
			Issue:       "numeric quantifier: " + m,
			Fixable:     true,
			Replacement: "+",
		})
	}
	for _, m := range reNumericQuantifier.FindAllString(pattern, -1) {
		issues = append(issues, WebKitRegexIssue{
			Pattern: pattern,
			Issue:   "numeric quantifier: " + m,
			Fixable: false,
		})
	}

	if containsDisjunction(pattern) {
		issues = append(issues, WebKitRegexIssue{
			Pattern: pattern,
			Issue:   "disjunction (|) outside character class",
			Fixable: false,
		})
	}

	if reNonASCII.MatchString(pattern) {
		issues = append(issues, WebKitRegexIssue{
			Pattern: pattern,
			Issue:   "non-ASCII characters",
			Fixable: false,
		})
	}

	for _, ua := range unsupportedAssertions {
		if strings.Contains(pattern, ua.pattern) {
			issues = append(issues, WebKitRegexIssue{
				Pattern: pattern,
				Issue:   ua.name,
				Fixable: false,
			})
		}
	}

	return issues
}

// HasUnfixableIssues returns true if the pattern has issues that cannot be fixed
func HasUnfixableIssues(pattern string) bool {
	for _, issue := range CheckWebKitCompatibility(pattern) {
		if !issue.Fixable {
			return true
		}
	}
	return false
}

// DescribeIssues returns a human-readable description of all issues
func DescribeIssues(issues []WebKitRegexIssue) string {
	if len(issues) == 0 {
		return ""
	}
	var parts []string
	for _, issue := range issues {
		parts = append(parts, issue.Issue)
	}
	return strings.Join(parts, ", ")
}

package converter

import (
	"regexp"
	"strings"
)

// Prefix and suffix that widen a canonical "host/path" pattern to the full
// URL WebKit matches against
const (
	restrSchemeAnchor = `^https?://(www\.)?`
	restrEndAnchor    = `/?([?#].*)?$`
)

var (
	// Shorthand character classes (WebKit doesn't support these)
	reWordChar     = regexp.MustCompile(`\\w`)
	reNonWordChar  = regexp.MustCompile(`\\W`)
	reDigitChar    = regexp.MustCompile(`\\d`)
	reNonDigitChar = regexp.MustCompile(`\\D`)
	reSpaceChar    = regexp.MustCompile(`\\s`)
	reNonSpaceChar = regexp.MustCompile(`\\S`)
	// Numeric quantifiers: {n,} - can be approximated with +
	reNumericQuantifierOpen = regexp.MustCompile(`\{[0-9]+,\}`)
)

// CanonicalToURLFilter rewrites a url pattern written against canonical
// URLs ("reddit.com/r/all") into a WebKit url-filter over full URLs.
// The anchors are the only part that needs translating: "^" must skip the
// scheme and an optional "www.", "$" must tolerate a trailing slash, a query
// or a fragment.
func CanonicalToURLFilter(pattern string) string {
	if pattern == "" || pattern == ".*" {
		return ".*"
	}

	s := pattern
	anchoredStart := strings.HasPrefix(s, "^")
	if anchoredStart {
		s = s[1:]
	}

	anchoredEnd := strings.HasSuffix(s, "$") && !strings.HasSuffix(s, `\$`)
	if anchoredEnd {
		s = s[:len(s)-1]
	}

	s = expandCharacterClasses(s)

	if anchoredStart {
		s = restrSchemeAnchor + s
	}
	if anchoredEnd {
		s += restrEndAnchor
	}

	return s
}

// Patterns for detecting unsupported WebKit regex features
var (
	// Numeric quantifiers: {n} or {n,m} - WebKit doesn't support these
	reNumericQuantifier = regexp.MustCompile(`\{[0-9]+(,[0-9]+)?\}`)
	// Non-ASCII characters - WebKit doesn't support these in patterns
	reNonASCII = regexp.MustCompile(`[^\x00-\x7F]`)
	// Word boundary assertions - WebKit doesn't support these
	reWordBoundary = regexp.MustCompile(`\\[bB]`)
)

// ValidateRegex checks if a regex is valid for WebKit
// WebKit has a strict subset of regex features
func ValidateRegex(pattern string) bool {
	if _, err := regexp.Compile(pattern); err != nil {
		return false
	}

	for _, u := range unsupportedAssertions {
		if strings.Contains(pattern, u.pattern) {
			return false
		}
	}

	if containsDisjunction(pattern) {
		return false
	}

	if reNumericQuantifier.MatchString(pattern) {
		return false
	}

	if reNonASCII.MatchString(pattern) {
		return false
	}

	if reWordBoundary.MatchString(pattern) {
		return false
	}

	// Should have been expanded by expandCharacterClasses
	if reWordChar.MatchString(pattern) || reNonWordChar.MatchString(pattern) ||
		reDigitChar.MatchString(pattern) || reNonDigitChar.MatchString(pattern) ||
		reSpaceChar.MatchString(pattern) || reNonSpaceChar.MatchString(pattern) {
		return false
	}

	return true
}

// containsDisjunction checks if a regex contains | outside of character classes
func containsDisjunction(pattern string) bool {
	inCharClass := false
	escaped := false

	for _, ch := range pattern {
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '[' && !inCharClass {
			inCharClass = true
			continue
		}
		if ch == ']' && inCharClass {
			inCharClass = false
			continue
		}
		if ch == '|' && !inCharClass {
			return true
		}
	}
	return false
}

// expandCharacterClasses replaces shorthand character classes with explicit equivalents
func expandCharacterClasses(pattern string) string {
	// Uppercase (negated) first to avoid partial replacements
	pattern = reNonWordChar.ReplaceAllString(pattern, `[^a-zA-Z0-9_]`)
	pattern = reWordChar.ReplaceAllString(pattern, `[a-zA-Z0-9_]`)
	pattern = reNonDigitChar.ReplaceAllString(pattern, `[^0-9]`)
	pattern = reDigitChar.ReplaceAllString(pattern, `[0-9]`)
	pattern = reNonSpaceChar.ReplaceAllString(pattern, `[^ \t\n\r\f\v]`)
	pattern = reSpaceChar.ReplaceAllString(pattern, `[ \t\n\r\f\v]`)

	// Approximate {n,} with +
	pattern = reNumericQuantifierOpen.ReplaceAllString(pattern, `+`)

	return pattern
}

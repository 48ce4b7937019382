package matcher

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bnema/tranquilize/internal/models"
)

// SiteFor returns the site whose match patterns cover the canonical URL.
// Sites without patterns fall back to a "<site>." host check.
func SiteFor(cfg *models.RemoteConfig, canonical string) (string, bool) {
	if cfg == nil {
		return "", false
	}

	host, path := Host(canonical), Path(canonical)
	for _, name := range cfg.SiteNames() {
		site := cfg.Sites[name]
		if len(site.Patterns) == 0 {
			if strings.Contains(host, name+".") {
				return name, true
			}
			continue
		}
		for _, p := range site.Patterns {
			if MatchesPattern(p, host, path) {
				return name, true
			}
		}
	}
	return "", false
}

// SiteForHost resolves a bare domain such as "reddit.com"
func SiteForHost(cfg *models.RemoteConfig, host string) (string, bool) {
	return SiteFor(cfg, NormalizeURL(host))
}

// MatchesPattern checks a host and path against an extension match pattern
// like "https://*.youtube.com/*". The scheme is ignored since canonical URLs
// carry none.
func MatchesPattern(pattern, host, path string) bool {
	if pattern == "<all_urls>" {
		return true
	}

	_, rest, ok := strings.Cut(pattern, "://")
	if !ok {
		rest = pattern
	}
	hostPattern, pathPattern, _ := strings.Cut(rest, "/")
	pathPattern = "/" + pathPattern

	return matchHost(hostPattern, host) && matchPath(pathPattern, path)
}

func matchHost(pattern, host string) bool {
	if pattern == "*" {
		return true
	}
	pattern = strings.ToLower(pattern)
	// "*.example.com" also covers the bare domain
	if base, ok := strings.CutPrefix(pattern, "*."); ok && host == base {
		return true
	}
	ok, err := doublestar.Match(pattern, host)
	return err == nil && ok
}

// matchPath treats "*" as "any characters, slashes included"
func matchPath(pattern, path string) bool {
	if pattern == "/*" || pattern == "/**" {
		return true
	}
	// Chrome's "*" crosses path segments, doublestar's "**" does the same
	// only as a whole segment, so compare against both forms
	if ok, err := doublestar.Match(pattern, path); err == nil && ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		ok, err := doublestar.Match(strings.TrimSuffix(pattern, "*")+"**", path)
		return err == nil && ok
	}
	return false
}

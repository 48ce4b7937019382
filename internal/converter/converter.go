package converter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/models"
)

// Converter exports enabled rules as WebKit content blocker rules
type Converter struct {
	stats Stats
	log   *zap.Logger
}

// Stats tracks conversion statistics
type Stats struct {
	Converted   int
	Skipped     int
	SkipReasons map[string]int
}

// Skip reason constants
const (
	SkipDisabled      = "disabled"
	SkipNoURLPatterns = "no-url-patterns"
	SkipEmptySelector = "empty-selector"
	SkipInvalidRegex  = "invalid-regex"
	SkipIncompatible  = "webkit-incompatible-pattern"
)

// New creates a new converter
func New(log *zap.Logger) *Converter {
	log = logging.OrNop(log)
	return &Converter{
		stats: Stats{
			SkipReasons: make(map[string]int),
		},
		log: log,
	}
}

// skip records a skipped rule or pattern with reason
func (c *Converter) skip(reason string) {
	c.stats.Skipped++
	c.stats.SkipReasons[reason]++
}

// Stats returns conversion statistics
func (c *Converter) Stats() Stats {
	return c.stats
}

// Convert turns every enabled rule into one css-display-none rule per url
// pattern WebKit can express
func (c *Converter) Convert(cfg *models.RemoteConfig, settings models.Settings) []models.WebKitRule {
	var rules []models.WebKitRule

	for _, site := range cfg.SiteNames() {
		sc := cfg.Sites[site]
		domains := siteDomains(sc.Patterns)

		for _, rule := range sc.Rules {
			key := models.Key(site, rule.ID)

			if !settings.Enabled(site, rule) {
				c.skip(SkipDisabled)
				continue
			}
			selector := joinSelectors(rule.Selectors)
			if selector == "" {
				c.skip(SkipEmptySelector)
				continue
			}
			if len(rule.URLPatterns) == 0 {
				c.skip(SkipNoURLPatterns)
				continue
			}

			for _, pattern := range rule.URLPatterns {
				urlFilter, reason := c.convertPattern(key, pattern)
				if reason != "" {
					c.skip(reason)
					continue
				}

				c.stats.Converted++
				rules = append(rules, models.WebKitRule{
					Trigger: models.WebKitTrigger{
						URLFilter: urlFilter,
						IfDomain:  domains,
					},
					Action: models.WebKitAction{
						Type:     models.ActionCSSDisplayNone,
						Selector: selector,
					},
				})
			}
		}
	}

	return rules
}

func (c *Converter) convertPattern(key models.SettingKey, pattern string) (string, string) {
	urlFilter := CanonicalToURLFilter(pattern)
	if ValidateRegex(urlFilter) {
		return urlFilter, ""
	}

	issues := CheckWebKitCompatibility(urlFilter)
	if len(issues) == 0 {
		c.log.Warn("skipping invalid url pattern",
			zap.Stringer("rule", key),
			zap.String("pattern", pattern))
		return "", SkipInvalidRegex
	}

	c.log.Info("url pattern cannot be expressed in WebKit",
		zap.Stringer("rule", key),
		zap.String("pattern", pattern),
		zap.String("issues", DescribeIssues(issues)))
	return "", SkipIncompatible
}

func joinSelectors(selectors []string) string {
	var out []string
	for _, s := range selectors {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

// siteDomains maps match patterns like "https://*.reddit.com/*" to WebKit
// if-domain entries. A pattern covering every host disables the restriction.
func siteDomains(patterns []string) []string {
	var domains []string
	seen := make(map[string]bool)

	for _, p := range patterns {
		if p == "<all_urls>" {
			return nil
		}
		_, rest, ok := strings.Cut(p, "://")
		if !ok {
			rest = p
		}
		host, _, _ := strings.Cut(rest, "/")
		if host == "" || host == "*" {
			return nil
		}

		d := normalizeDomain(strings.TrimPrefix(host, "*."))
		if !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}

	return domains
}

// normalizeDomain ensures domain has proper format for WebKit
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	// WebKit expects domains with * prefix for subdomains
	if !strings.HasPrefix(d, "*") && !strings.HasPrefix(d, ".") {
		return "*" + d
	}
	return d
}

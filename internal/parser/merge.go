package parser

import (
	"github.com/google/uuid"

	"github.com/bnema/tranquilize/internal/matcher"
	"github.com/bnema/tranquilize/internal/models"
)

// CustomPrefix starts the id of every rule built from a custom line
const CustomPrefix = "custom_"

// customNamespace seeds the name-based ids so a line keeps its id across runs
var customNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tranquilize:custom-rules"))

// RuleID returns the stable id of a custom line
func RuleID(raw string) string {
	return CustomPrefix + uuid.NewSHA1(customNamespace, []byte(raw)).String()[:8]
}

// Merge returns a copy of cfg with one rule per filter added to every site it
// targets. Filters without domains go to all sites, domains that resolve to
// no known site are dropped. cfg itself is not modified.
func Merge(cfg *models.RemoteConfig, filters []models.Filter) *models.RemoteConfig {
	out := cfg.Clone()
	if len(filters) == 0 {
		return out
	}

	for _, f := range filters {
		if f.Type != models.FilterTypeCosmetic {
			continue
		}

		rule := models.BlockRule{
			ID:             RuleID(f.Raw),
			DisplayName:    f.Selector,
			URLPatterns:    []string{".*"},
			Selectors:      []string{f.Selector},
			DefaultEnabled: true,
		}

		for _, site := range targetSites(cfg, f) {
			sc := out.Sites[site]
			if hasRule(sc.Rules, rule.ID) {
				continue
			}
			sc.Rules = append(sc.Rules, rule)
			out.Sites[site] = sc
		}
	}

	return out
}

func targetSites(cfg *models.RemoteConfig, f models.Filter) []string {
	excluded := make(map[string]bool)
	for _, d := range f.ExcludedDomains() {
		if site, ok := matcher.SiteForHost(cfg, d); ok {
			excluded[site] = true
		}
	}

	included := f.IncludedDomains()
	var candidates []string
	if len(included) == 0 {
		candidates = cfg.SiteNames()
	} else {
		seen := make(map[string]bool)
		for _, d := range included {
			site, ok := matcher.SiteForHost(cfg, d)
			if ok && !seen[site] {
				seen[site] = true
				candidates = append(candidates, site)
			}
		}
	}

	var sites []string
	for _, s := range candidates {
		if !excluded[s] {
			sites = append(sites, s)
		}
	}
	return sites
}

func hasRule(rules []models.BlockRule, id string) bool {
	for _, r := range rules {
		if r.ID == id {
			return true
		}
	}
	return false
}

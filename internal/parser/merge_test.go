package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/tranquilize/internal/models"
)

func baseConfig() *models.RemoteConfig {
	return &models.RemoteConfig{
		Version: "1.0.0",
		Sites: map[string]models.SiteConfig{
			"reddit": {
				Patterns: []string{"https://*.reddit.com/*"},
				Rules:    []models.BlockRule{{ID: "home_feed", URLPatterns: []string{`^reddit\.com$`}}},
			},
			"youtube": {Patterns: []string{"https://*.youtube.com/*"}},
		},
	}
}

func parseLines(t *testing.T, lines ...string) []models.Filter {
	t.Helper()
	filters, err := New().Parse(strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return filters
}

func TestMerge(t *testing.T) {
	cfg := baseConfig()
	filters := parseLines(t,
		"reddit.com##.promotedlink",
		"##.cookie-banner",
		"example.org##.unknown-site",
		"~youtube.com##.not-on-youtube",
	)

	merged := Merge(cfg, filters)

	reddit := merged.Sites["reddit"].Rules
	require.Len(t, reddit, 4)
	assert.Equal(t, "home_feed", reddit[0].ID)
	assert.Equal(t, []string{".promotedlink"}, reddit[1].Selectors)
	assert.Equal(t, []string{".*"}, reddit[1].URLPatterns)
	assert.True(t, reddit[1].DefaultEnabled)
	assert.True(t, strings.HasPrefix(reddit[1].ID, CustomPrefix))
	assert.Equal(t, []string{".cookie-banner"}, reddit[2].Selectors)
	assert.Equal(t, []string{".not-on-youtube"}, reddit[3].Selectors)

	youtube := merged.Sites["youtube"].Rules
	require.Len(t, youtube, 1)
	assert.Equal(t, []string{".cookie-banner"}, youtube[0].Selectors)

	assert.Len(t, cfg.Sites["reddit"].Rules, 1, "source config untouched")
	assert.Empty(t, cfg.Sites["youtube"].Rules)
}

func TestMergeIsStable(t *testing.T) {
	filters := parseLines(t, "reddit.com##.promotedlink", "reddit.com##.promotedlink")

	first := Merge(baseConfig(), filters)
	second := Merge(baseConfig(), filters)

	assert.Len(t, first.Sites["reddit"].Rules, 2, "duplicate lines collapse")
	assert.Equal(t, first, second)
	assert.Equal(t, RuleID("reddit.com##.promotedlink"), first.Sites["reddit"].Rules[1].ID)
	assert.NotEqual(t, RuleID("reddit.com##.a"), RuleID("reddit.com##.b"))
}

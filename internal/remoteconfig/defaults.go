package remoteconfig

import "github.com/bnema/tranquilize/internal/models"

// Default returns the built-in rule document used when neither the network
// nor the cache can provide one
func Default() *models.RemoteConfig {
	return &models.RemoteConfig{
		Version:     "1.0.0-fallback",
		LastUpdated: "2025-10-30",
		Sites: map[string]models.SiteConfig{
			"youtube": {
				Patterns: []string{"https://*.youtube.com/*"},
				Rules: []models.BlockRule{
					{
						ID:             "home_feed",
						DisplayName:    "Hide Home Feeds",
						URLPatterns:    []string{`^youtube\.com$`},
						Selectors:      []string{"ytd-rich-grid-renderer"},
						DefaultEnabled: true,
					},
					{
						ID:             "channel_feeds",
						DisplayName:    "Hide Channel Feeds",
						URLPatterns:    []string{`^youtube\.com/(channel/[^/]+|c/[^/]+|user/[^/]+|@[^/]+)?(/featured)?$`},
						Selectors:      []string{"#contents"},
						DefaultEnabled: true,
					},
					{
						ID:             "sidebar",
						DisplayName:    "Hide Sidebar",
						URLPatterns:    []string{".*"},
						Selectors:      []string{"#guide-content", "#guide-button", "ytd-mini-guide-renderer"},
						DefaultEnabled: true,
					},
					{
						ID:             "suggestions",
						DisplayName:    "Hide Suggested Videos",
						URLPatterns:    []string{".*"},
						Selectors:      []string{"#related"},
						DefaultEnabled: true,
					},
				},
			},
			"reddit": {
				Patterns: []string{"https://*.reddit.com/*"},
				Rules: []models.BlockRule{
					{
						ID:          "home_feed",
						DisplayName: "Hide Home Feeds",
						URLPatterns: []string{
							`^reddit\.com$`,
							`^reddit\.com/(hot|top|rising|best|new|r/popular|r/all)`,
						},
						Selectors:      []string{".subgrid-container"},
						DefaultEnabled: true,
					},
					{
						ID:             "subreddits",
						DisplayName:    "Hide Subreddit Feeds",
						URLPatterns:    []string{`^reddit\.com/r/[^/]+(/(hot|new|top|rising))?$`},
						Selectors:      []string{"#main-content > div:last-of-type"},
						DefaultEnabled: true,
					},
					{
						ID:             "sidebar",
						DisplayName:    "Hide Sidebar",
						URLPatterns:    []string{".*"},
						Selectors:      []string{"reddit-sidebar-nav", "#navbar-menu-button"},
						DefaultEnabled: true,
					},
					{
						ID:             "suggestions",
						DisplayName:    "Hide Suggested Posts",
						URLPatterns:    []string{".*"},
						Selectors:      []string{"pdp-right-rail"},
						DefaultEnabled: true,
					},
				},
			},
			"instagram": {
				Patterns: []string{"https://*.instagram.com/*"},
				Rules: []models.BlockRule{
					{
						ID:             "home_feed",
						DisplayName:    "Hide Home Feed",
						URLPatterns:    []string{`^instagram\.com/?$`},
						Selectors:      []string{"main[role='main'] article"},
						DefaultEnabled: true,
					},
					{
						ID:          "reels",
						DisplayName: "Hide Reels",
						URLPatterns: []string{`^instagram\.com/reels`},
						Selectors: []string{
							"[role='tablist'] a[href='/reels/']",
							"[role='tablist'] a[href='/reels']",
							"video",
						},
						DefaultEnabled: true,
					},
				},
			},
		},
	}
}

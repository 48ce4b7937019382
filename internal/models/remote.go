package models

import "sort"

// RemoteConfig is the rule document fetched from the remote config URL
type RemoteConfig struct {
	Version     string                `json:"version"`
	LastUpdated string                `json:"lastUpdated"`
	Sites       map[string]SiteConfig `json:"sites"`
}

// SiteConfig holds the rules of a single site
type SiteConfig struct {
	Patterns []string    `json:"patterns"` // extension match patterns, e.g. https://*.reddit.com/*
	Rules    []BlockRule `json:"rules"`
}

// BlockRule hides a set of selectors on pages whose canonical URL matches
type BlockRule struct {
	ID             string   `json:"id"`
	DisplayName    string   `json:"displayName"`
	URLPatterns    []string `json:"urlPatterns"` // regex sources, OR-combined
	Selectors      []string `json:"selectors"`
	DefaultEnabled bool     `json:"defaultEnabled"`
}

// SiteNames returns site names in a stable order
func (c *RemoteConfig) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for name := range c.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy whose sites and rule slices can be modified freely
func (c *RemoteConfig) Clone() *RemoteConfig {
	out := &RemoteConfig{
		Version:     c.Version,
		LastUpdated: c.LastUpdated,
		Sites:       make(map[string]SiteConfig, len(c.Sites)),
	}
	for name, site := range c.Sites {
		out.Sites[name] = SiteConfig{
			Patterns: append([]string(nil), site.Patterns...),
			Rules:    append([]BlockRule(nil), site.Rules...),
		}
	}
	return out
}

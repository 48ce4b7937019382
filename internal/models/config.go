package models

import "time"

// Remote config locations
const (
	ProdConfigURL = "https://raw.githubusercontent.com/DanielTMolloy919/tranquilize/master/remote-config.json"
	DevConfigURL  = "http://localhost:3001/remote-config.json"
)

// Config represents the main configuration
type Config struct {
	Remote      RemoteSource  `mapstructure:"remote"`
	HTTP        HTTPConfig    `mapstructure:"http"`
	Storage     StorageConfig `mapstructure:"storage"`
	Server      ServerConfig  `mapstructure:"server"`
	Browser     BrowserConfig `mapstructure:"browser"`
	Log         LogConfig     `mapstructure:"log"`
	Output      OutputConfig  `mapstructure:"output"`
	CustomRules []string      `mapstructure:"custom_rules"`
}

// RemoteSource describes where the rule document comes from and how long it stays fresh
type RemoteSource struct {
	URL    string        `mapstructure:"url"`
	DevURL string        `mapstructure:"dev_url"`
	UseDev bool          `mapstructure:"use_dev"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// StorageConfig selects the key/value backend. An empty path keeps everything in memory.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig contains the background message endpoint settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// BrowserConfig points at a Chrome DevTools endpoint for live tab application
type BrowserConfig struct {
	DevToolsURL  string        `mapstructure:"devtools_url"`
	Target       string        `mapstructure:"target"`
	PollInterval time.Duration `mapstructure:"poll_interval"` // how often new tabs are looked for
}

// LogConfig contains logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
}

// OutputConfig contains WebKit export settings
type OutputConfig struct {
	MaxRulesPerFile  int  `mapstructure:"max_rules_per_file"`
	GenerateManifest bool `mapstructure:"generate_manifest"`
}

// ConfigURL returns the URL the remote config is fetched from
func (r RemoteSource) ConfigURL() string {
	if r.UseDev {
		if r.DevURL != "" {
			return r.DevURL
		}
		return DevConfigURL
	}
	if r.URL != "" {
		return r.URL
	}
	return ProdConfigURL
}

// Package remoteconfig keeps the remote rule document in a cache-aside store
// with a fixed TTL. Lookups degrade from a fresh copy to a network fetch, then
// to the last good copy regardless of age, then to the built-in default.
package remoteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/models"
	"github.com/bnema/tranquilize/internal/storage"
)

// Storage keys of the cached document and its metadata
const (
	CacheKey          = "remote_config"
	CacheTimestampKey = "config_timestamp"
	CacheVersionKey   = "config_version"
)

// DefaultTTL is how long a fetched document stays fresh
const DefaultTTL = 24 * time.Hour

// Fetcher downloads the raw document
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options configures a Cache
type Options struct {
	URL     string
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// Cache serves the remote config
type Cache struct {
	store   storage.Store
	fetcher Fetcher
	url     string
	ttl     time.Duration
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// New creates a cache over the local storage area
func New(store storage.Store, fetcher Fetcher, opts Options) *Cache {
	c := &Cache{
		store:   store,
		fetcher: fetcher,
		url:     opts.URL,
		ttl:     opts.TTL,
		log:     opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	if c.url == "" {
		c.url = models.ProdConfigURL
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	c.log = logging.OrNop(c.log)
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// URL returns the address documents are fetched from
func (c *Cache) URL() string { return c.url }

// FetchRemoteConfig returns the cached document while it is fresh, otherwise
// fetches a new one. Failures fall back to the stale copy, then to Default.
func (c *Cache) FetchRemoteConfig(ctx context.Context) *models.RemoteConfig {
	cached, err := c.store.Get(ctx, CacheKey, CacheTimestampKey, CacheVersionKey)
	if err != nil {
		c.log.Warn("reading config cache failed", zap.Error(err))
		cached = nil
	}

	timestamp := decodeTimestamp(cached[CacheTimestampKey])
	cachedVersion := decodeString(cached[CacheVersionKey])

	if raw, ok := cached[CacheKey]; ok && c.now().Sub(timestamp) < c.ttl {
		cfg, err := decodeCached(raw)
		if err == nil {
			c.log.Debug("using cached config", zap.String("version", cachedVersion))
			c.metrics.lookup(SourceCache)
			return cfg
		}
		c.log.Warn("cached config is unreadable, refetching", zap.Error(err))
	}

	cfg, err := c.fetch(ctx, cachedVersion)
	if err == nil {
		c.metrics.lookup(SourceNetwork)
		return cfg
	}

	c.log.Error("failed to fetch remote config", zap.String("url", c.url), zap.Error(err))
	if errors.Is(err, ErrValidation) {
		c.metrics.failure("validation")
	} else {
		c.metrics.failure("network")
	}

	return c.fallback(ctx)
}

// GetConfig returns the remote config, never nil
func (c *Cache) GetConfig(ctx context.Context) *models.RemoteConfig {
	if cfg := c.FetchRemoteConfig(ctx); cfg != nil {
		return cfg
	}
	return Default()
}

// ForceRefresh drops the cached document so the next lookup hits the network
func (c *Cache) ForceRefresh(ctx context.Context) *models.RemoteConfig {
	if err := c.store.Remove(ctx, CacheKey, CacheTimestampKey, CacheVersionKey); err != nil {
		c.log.Warn("clearing config cache failed", zap.Error(err))
	}
	return c.GetConfig(ctx)
}

func (c *Cache) fetch(ctx context.Context, cachedVersion string) (*models.RemoteConfig, error) {
	c.log.Info("fetching remote config", zap.String("url", c.url))

	data, err := c.fetcher.Fetch(ctx, c.url)
	if err != nil {
		return nil, err
	}

	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	c.log.Info("fetched remote config", zap.String("version", cfg.Version))

	version, _ := json.Marshal(cfg.Version)
	err = c.store.Set(ctx, map[string][]byte{
		CacheKey:          data,
		CacheTimestampKey: []byte(strconv.FormatInt(c.now().UnixMilli(), 10)),
		CacheVersionKey:   version,
	})
	if err != nil {
		// The document is good, serving it beats falling back
		c.log.Warn("caching remote config failed", zap.Error(err))
	}

	if cachedVersion != "" && cachedVersion != cfg.Version {
		c.log.Info("remote config updated",
			zap.String("from", cachedVersion),
			zap.String("to", cfg.Version))
	}

	return cfg, nil
}

func (c *Cache) fallback(ctx context.Context) *models.RemoteConfig {
	cached, err := c.store.Get(ctx, CacheKey)
	if err == nil {
		if raw, ok := cached[CacheKey]; ok {
			if cfg, err := decodeCached(raw); err == nil {
				c.log.Info("using cached config as fallback", zap.String("version", cfg.Version))
				c.metrics.lookup(SourceStale)
				return cfg
			}
		}
	}

	c.log.Info("using built-in default config")
	c.metrics.lookup(SourceDefault)
	return Default()
}

func decodeCached(raw []byte) (*models.RemoteConfig, error) {
	var cfg models.RemoteConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeTimestamp reads unix milliseconds, a missing value is the epoch
func decodeTimestamp(raw []byte) time.Time {
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.UnixMilli(0)
	}
	return time.UnixMilli(ms)
}

func decodeString(raw []byte) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

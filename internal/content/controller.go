// Package content runs the per-page side: it loads the config and settings,
// follows navigation and applies the matching rules to a page surface.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/applier"
	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/matcher"
	"github.com/bnema/tranquilize/internal/messaging"
	"github.com/bnema/tranquilize/internal/models"
	"github.com/bnema/tranquilize/internal/settings"
)

// ErrNoConfig is returned when the config source answered without a config
var ErrNoConfig = errors.New("no remote config")

// ConfigSource provides the remote config, in process or over messaging
type ConfigSource interface {
	GetConfig(ctx context.Context) (*models.RemoteConfig, error)
}

// ConfigSourceFunc adapts a function to ConfigSource
type ConfigSourceFunc func(ctx context.Context) (*models.RemoteConfig, error)

// GetConfig calls f
func (f ConfigSourceFunc) GetConfig(ctx context.Context) (*models.RemoteConfig, error) {
	return f(ctx)
}

// Surface is where rule states end up: a parsed document or a live tab
type Surface interface {
	Apply(ctx context.Context, states []applier.RuleState) error
}

// Options configures a Controller
type Options struct {
	ID       string        // defaults to a random uuid
	Attempts int           // config load attempts while the channel is down, default 3
	Delay    time.Duration // wait between attempts, default 500ms
	Matcher  *matcher.Matcher
	Logger   *zap.Logger
}

// Controller holds the config and settings of one page
type Controller struct {
	id       string
	source   ConfigSource
	settings *settings.Store
	surface  Surface
	matcher  *matcher.Matcher
	log      *zap.Logger
	attempts int
	delay    time.Duration

	mu      sync.Mutex
	config  *models.RemoteConfig
	current models.Settings
	url     string
}

// New creates a controller
func New(source ConfigSource, store *settings.Store, surface Surface, opts Options) *Controller {
	c := &Controller{
		id:       opts.ID,
		source:   source,
		settings: store,
		surface:  surface,
		matcher:  opts.Matcher,
		log:      opts.Logger,
		attempts: opts.Attempts,
		delay:    opts.Delay,
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	c.log = logging.OrNop(c.log)
	c.log = c.log.With(zap.String("tab", c.id))
	if c.matcher == nil {
		c.matcher = matcher.New(c.log)
	}
	if c.attempts <= 0 {
		c.attempts = 3
	}
	if c.delay <= 0 {
		c.delay = 500 * time.Millisecond
	}
	return c
}

// ID identifies the page
func (c *Controller) ID() string { return c.id }

// Init loads the config and settings, then processes url
func (c *Controller) Init(ctx context.Context, url string) error {
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return err
	}
	c.log.Debug("loaded remote config", zap.String("version", cfg.Version))

	current, err := c.settings.LoadOrInit(ctx, cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.config = cfg
	c.current = current
	c.mu.Unlock()

	_, err = c.ProcessTab(ctx, url)
	return err
}

func (c *Controller) loadConfig(ctx context.Context) (*models.RemoteConfig, error) {
	for attempt := 1; ; attempt++ {
		cfg, err := c.source.GetConfig(ctx)
		if err == nil {
			if cfg == nil {
				c.log.Error("failed to load remote config")
				return nil, ErrNoConfig
			}
			return cfg, nil
		}

		// Only a receiver that is not up yet is worth waiting for
		if !errors.Is(err, messaging.ErrChannel) || attempt >= c.attempts {
			return nil, fmt.Errorf("load config: %w", err)
		}

		c.log.Info("retrying initialization",
			zap.Int("attempts_left", c.attempts-attempt),
			zap.Error(err))

		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Follow processes every url received until the channel closes
func (c *Controller) Follow(ctx context.Context, navigations <-chan string) {
	for url := range navigations {
		if _, err := c.ProcessTab(ctx, url); err != nil {
			c.log.Warn("processing navigation failed", zap.String("url", url), zap.Error(err))
		}
	}
}

// Reprocess reloads the settings, which another process may have changed,
// and applies the rules again to the last processed url
func (c *Controller) Reprocess(ctx context.Context) error {
	current, err := c.settings.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if current != nil && c.config != nil {
		c.current = current
	}
	url := c.url
	c.mu.Unlock()

	_, err = c.ProcessTab(ctx, url)
	return err
}

// ProcessTab applies the rules of the site url belongs to. It is a no-op
// until the config and settings are loaded, or when no site matches.
func (c *Controller) ProcessTab(ctx context.Context, url string) ([]applier.RuleState, error) {
	c.mu.Lock()
	c.url = url
	cfg, current := c.config, c.current
	c.mu.Unlock()

	if cfg == nil || current == nil {
		c.log.Debug("config or settings not ready")
		return nil, nil
	}

	canonical := matcher.NormalizeURL(url)
	c.log.Debug("processing url", zap.String("url", url), zap.String("canonical", canonical))

	site, ok := matcher.SiteFor(cfg, canonical)
	if !ok {
		c.log.Debug("no matching site config found", zap.String("url", canonical))
		return nil, nil
	}

	c.log.Debug("applying rules", zap.String("site", site))
	states := applier.Plan(c.matcher, site, cfg.Sites[site].Rules, current, canonical)
	if err := c.surface.Apply(ctx, states); err != nil {
		return states, err
	}
	return states, nil
}

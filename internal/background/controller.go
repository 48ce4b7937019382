// Package background owns the shared state of a running daemon: the config
// cache, the settings store, custom rules and the tabs rules are applied to.
package background

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/messaging"
	"github.com/bnema/tranquilize/internal/models"
	"github.com/bnema/tranquilize/internal/parser"
	"github.com/bnema/tranquilize/internal/remoteconfig"
	"github.com/bnema/tranquilize/internal/settings"
)

// Tab is a page the background can ask to re-apply its rules
type Tab interface {
	ID() string
	Reprocess(ctx context.Context) error
}

// Controller answers messages and keeps registered tabs in sync with settings
type Controller struct {
	cache    *remoteconfig.Cache
	settings *settings.Store
	custom   []models.Filter
	log      *zap.Logger
	now      func() time.Time

	mu   sync.RWMutex
	tabs map[string]Tab
}

// New creates a controller. custom holds cosmetic filters merged into every
// config handed out.
func New(cache *remoteconfig.Cache, store *settings.Store, custom []models.Filter, log *zap.Logger) *Controller {
	log = logging.OrNop(log)
	return &Controller{
		cache:    cache,
		settings: store,
		custom:   custom,
		log:      log,
		now:      time.Now,
		tabs:     make(map[string]Tab),
	}
}

// Start seeds default settings when none exist and re-applies every tab
// whenever settings change, until ctx is done
func (c *Controller) Start(ctx context.Context) error {
	if _, err := c.settings.LoadOrInit(ctx, c.GetConfig(ctx)); err != nil {
		return err
	}

	unsubscribe := c.settings.Subscribe(func(models.Settings) {
		c.log.Debug("settings changed, updating tabs")
		if err := c.ProcessTabs(ctx); err != nil {
			c.log.Warn("updating tabs failed", zap.Error(err))
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	return nil
}

// GetConfig returns the current config with custom rules merged in
func (c *Controller) GetConfig(ctx context.Context) *models.RemoteConfig {
	return c.withCustom(c.cache.GetConfig(ctx))
}

// ForceRefresh drops the cached config and fetches it again
func (c *Controller) ForceRefresh(ctx context.Context) *models.RemoteConfig {
	c.log.Info("force refreshing remote config")
	return c.withCustom(c.cache.ForceRefresh(ctx))
}

func (c *Controller) withCustom(cfg *models.RemoteConfig) *models.RemoteConfig {
	if len(c.custom) == 0 {
		return cfg
	}
	return parser.Merge(cfg, c.custom)
}

// Register adds a tab. The returned func removes it again.
func (c *Controller) Register(tab Tab) (unregister func()) {
	c.mu.Lock()
	c.tabs[tab.ID()] = tab
	c.mu.Unlock()

	c.log.Debug("tab registered", zap.String("tab", tab.ID()))
	return func() {
		c.mu.Lock()
		delete(c.tabs, tab.ID())
		c.mu.Unlock()
	}
}

// Tabs returns the registered tab ids in order
func (c *Controller) Tabs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.tabs))
	for id := range c.tabs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProcessTabs asks every registered tab to re-apply its rules
func (c *Controller) ProcessTabs(ctx context.Context) error {
	c.mu.RLock()
	tabs := make([]Tab, 0, len(c.tabs))
	for _, t := range c.tabs {
		tabs = append(tabs, t)
	}
	c.mu.RUnlock()

	var errs []error
	for _, t := range tabs {
		if err := t.Reprocess(ctx); err != nil {
			c.log.Warn("processing tab failed", zap.String("tab", t.ID()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ping reports liveness
func (c *Controller) Ping() messaging.PingResponse {
	return messaging.PingResponse{Status: "ok", Timestamp: c.now().UnixMilli()}
}

// Handle implements messaging.Handler
func (c *Controller) Handle(ctx context.Context, req messaging.Request) (any, error) {
	switch req.Message {
	case messaging.GetConfig:
		return c.GetConfig(ctx), nil
	case messaging.ProcessTab:
		// Tab failures are logged, the sender only needs the trigger
		_ = c.ProcessTabs(ctx)
		return nil, nil
	case messaging.Ping:
		return c.Ping(), nil
	default:
		return nil, messaging.Unknown(req.Message)
	}
}

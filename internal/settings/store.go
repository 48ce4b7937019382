// Package settings persists the per-rule toggles in the sync storage area.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/models"
	"github.com/bnema/tranquilize/internal/storage"
)

// StorageKey is where the settings map lives
const StorageKey = "settings"

// Defaults derives one toggle per rule from its default state
func Defaults(cfg *models.RemoteConfig) models.Settings {
	out := make(models.Settings)
	for name, site := range cfg.Sites {
		for _, rule := range site.Rules {
			out[models.Key(name, rule.ID)] = rule.DefaultEnabled
		}
	}
	return out
}

// Store reads and writes the settings map
type Store struct {
	area storage.Store
	log  *zap.Logger
}

// New creates a settings store over a storage area
func New(area storage.Store, log *zap.Logger) *Store {
	log = logging.OrNop(log)
	return &Store{area: area, log: log}
}

// Load returns the stored settings, nil when none were saved
func (s *Store) Load(ctx context.Context) (models.Settings, error) {
	got, err := s.area.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	raw, ok := got[StorageKey]
	if !ok {
		return nil, nil
	}
	return decode(raw)
}

// LoadOrInit returns the stored settings, seeding them from the config's
// defaults the first time
func (s *Store) LoadOrInit(ctx context.Context, cfg *models.RemoteConfig) (models.Settings, error) {
	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 {
		return current, nil
	}

	s.log.Info("no settings found, generating defaults")
	defaults := Defaults(cfg)
	if err := s.Save(ctx, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// Save replaces the whole settings map
func (s *Store) Save(ctx context.Context, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	if err := s.area.Set(ctx, map[string][]byte{StorageKey: data}); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Update changes a single toggle, leaving every other stored key untouched
func (s *Store) Update(ctx context.Context, key models.SettingKey, value bool) error {
	got, err := s.area.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}

	raw := got[StorageKey]
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	updated, err := sjson.SetBytes(raw, escapePath(key.String()), value)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}

	if err := s.area.Set(ctx, map[string][]byte{StorageKey: updated}); err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}

	s.log.Debug("setting updated", zap.Stringer("key", key), zap.Bool("value", value))
	return nil
}

// Subscribe calls fn with the new settings whenever they change
func (s *Store) Subscribe(fn func(models.Settings)) (unsubscribe func()) {
	return s.area.OnChanged(func(c storage.Change) {
		if c.Key != StorageKey {
			return
		}
		if c.New == nil {
			fn(nil)
			return
		}
		settings, err := decode(c.New)
		if err != nil {
			s.log.Warn("ignoring unreadable settings change", zap.Error(err))
			return
		}
		fn(settings)
	})
}

func decode(raw []byte) (models.Settings, error) {
	var settings models.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return settings, nil
}

// escapePath turns a literal key into an sjson path
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

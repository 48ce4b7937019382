package background

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/tranquilize/internal/messaging"
	"github.com/bnema/tranquilize/internal/models"
	"github.com/bnema/tranquilize/internal/remoteconfig"
	"github.com/bnema/tranquilize/internal/settings"
	"github.com/bnema/tranquilize/internal/storage"
)

const doc = `{"version": "3.1.0", "lastUpdated": "2025-12-01", "sites": {
  "reddit": {"patterns": ["https://*.reddit.com/*"], "rules": [
    {"id": "home_feed", "displayName": "Hide Home Feeds", "urlPatterns": ["^reddit\\.com$"], "selectors": [".subgrid-container"], "defaultEnabled": true}
  ]}
}}`

type fetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

type fakeTab struct {
	id    string
	mu    sync.Mutex
	calls int
	err   error
}

func (t *fakeTab) ID() string { return t.id }

func (t *fakeTab) Reprocess(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return t.err
}

func (t *fakeTab) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type fixture struct {
	ctrl     *Controller
	local    storage.Store
	syncArea storage.Store
	store    *settings.Store
	fetches  int
}

func newFixture(t *testing.T, custom []models.Filter) *fixture {
	t.Helper()
	f := &fixture{
		local:    storage.NewMemory(storage.AreaLocal),
		syncArea: storage.NewMemory(storage.AreaSync),
	}
	fetch := fetcherFunc(func(context.Context, string) ([]byte, error) {
		f.fetches++
		return []byte(doc), nil
	})
	cache := remoteconfig.New(f.local, fetch, remoteconfig.Options{URL: "https://example.test/config.json"})
	f.store = settings.New(f.syncArea, nil)
	f.ctrl = New(cache, f.store, custom, nil)
	return f
}

func TestStartSeedsSettings(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, f.ctrl.Start(ctx))

	got, err := f.store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Settings{models.Key("reddit", "home_feed"): true}, got)
}

func TestSettingsChangeReprocessesTabs(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.ctrl.Start(ctx))

	a, b := &fakeTab{id: "a"}, &fakeTab{id: "b"}
	f.ctrl.Register(a)
	unregister := f.ctrl.Register(b)
	assert.Equal(t, []string{"a", "b"}, f.ctrl.Tabs())

	require.NoError(t, f.store.Update(ctx, models.Key("reddit", "home_feed"), false))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())

	unregister()
	require.NoError(t, f.store.Update(ctx, models.Key("reddit", "home_feed"), true))
	assert.Equal(t, 2, a.count())
	assert.Equal(t, 1, b.count())
}

func TestProcessTabsJoinsErrors(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("tab closed")
	good, bad := &fakeTab{id: "good"}, &fakeTab{id: "bad", err: boom}
	f.ctrl.Register(good)
	f.ctrl.Register(bad)

	err := f.ctrl.ProcessTabs(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, good.count())
}

func TestGetConfigMergesCustomRules(t *testing.T) {
	custom := []models.Filter{{
		Type:     models.FilterTypeCosmetic,
		Raw:      "reddit.com##.promotedlink",
		Selector: ".promotedlink",
		Domains:  []string{"reddit.com"},
	}}
	f := newFixture(t, custom)
	ctx := context.Background()

	cfg := f.ctrl.GetConfig(ctx)
	require.Len(t, cfg.Sites["reddit"].Rules, 2)
	assert.Equal(t, []string{".promotedlink"}, cfg.Sites["reddit"].Rules[1].Selectors)

	// The cached document stays as fetched
	stored, err := f.local.Get(ctx, remoteconfig.CacheKey)
	require.NoError(t, err)
	assert.NotContains(t, string(stored[remoteconfig.CacheKey]), "promotedlink")
}

func TestForceRefreshRefetches(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.ctrl.GetConfig(ctx)
	f.ctrl.GetConfig(ctx)
	assert.Equal(t, 1, f.fetches)

	assert.Equal(t, "3.1.0", f.ctrl.ForceRefresh(ctx).Version)
	assert.Equal(t, 2, f.fetches)
}

func TestHandle(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.now = func() time.Time { return time.UnixMilli(1700000000123) }
	tab := &fakeTab{id: "t"}
	f.ctrl.Register(tab)
	ctx := context.Background()

	got, err := f.ctrl.Handle(ctx, messaging.Request{Message: messaging.GetConfig})
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", got.(*models.RemoteConfig).Version)

	got, err = f.ctrl.Handle(ctx, messaging.Request{Message: messaging.ProcessTab})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, tab.count())

	got, err = f.ctrl.Handle(ctx, messaging.Request{Message: messaging.Ping})
	require.NoError(t, err)
	assert.Equal(t, messaging.PingResponse{Status: "ok", Timestamp: 1700000000123}, got)

	_, err = f.ctrl.Handle(ctx, messaging.Request{Message: "reload"})
	assert.ErrorIs(t, err, messaging.ErrUnknownMessage)
}

func TestServedOverMessaging(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(messaging.NewServer(f.ctrl, messaging.ServerOptions{}).Handler())
	defer srv.Close()

	client := messaging.NewClient(srv.URL, messaging.ClientOptions{})
	cfg, err := client.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", cfg.Version)

	pong, err := client.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", pong.Status)
}

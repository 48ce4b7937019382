package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mafredri/cdp/devtool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/background"
	"github.com/bnema/tranquilize/internal/browser"
	"github.com/bnema/tranquilize/internal/content"
	"github.com/bnema/tranquilize/internal/matcher"
	"github.com/bnema/tranquilize/internal/messaging"
	"github.com/bnema/tranquilize/internal/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background daemon",
	Long: `Serve config and settings to clients over the message endpoint. When a
DevTools endpoint is configured, rules are also applied to the open browser tabs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().String("devtools", "", "DevTools endpoint, e.g. http://127.0.0.1:9222 (overrides browser.devtools_url)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if devtools, _ := cmd.Flags().GetString("devtools"); devtools != "" {
		cfg.Browser.DevToolsURL = devtools
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.bg.Start(ctx); err != nil {
		return fmt.Errorf("start background: %w", err)
	}
	log.Info("background started", zap.String("config_url", a.cache.URL()))

	var wg sync.WaitGroup
	if cfg.Browser.DevToolsURL != "" {
		discovery := browser.NewDevToolsDiscovery(cfg.Browser.DevToolsURL, cfg.Browser.Target,
			cfg.Browser.PollInterval, log.Named("browser"))
		// Fail fast when the browser is unreachable, later listings only log
		first, err := discovery.Poll(ctx)
		if err != nil {
			return err
		}
		t := newTabs(a, &wg)
		for _, target := range first {
			t.attach(ctx, target)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := discovery.Run(ctx, func(target *devtool.Target) { t.attach(ctx, target) }); err != nil {
				log.Warn("browser discovery stopped", zap.Error(err))
			}
		}()
	}

	srv := messaging.NewServer(a.bg, messaging.ServerOptions{
		Logger:      log.Named("server"),
		Gatherer:    a.registry,
		Development: cfg.Log.Development,
	})
	err = srv.ListenAndServe(ctx, cfg.Server.Addr)

	stop()
	wg.Wait()
	log.Info("background stopped")
	return err
}

// tabs attaches content controllers to browser pages
type tabs struct {
	app    *app
	wg     *sync.WaitGroup
	source content.ConfigSource
	m      *matcher.Matcher
}

func newTabs(a *app, wg *sync.WaitGroup) *tabs {
	return &tabs{
		app: a,
		wg:  wg,
		source: content.ConfigSourceFunc(func(ctx context.Context) (*models.RemoteConfig, error) {
			return a.bg.GetConfig(ctx), nil
		}),
		m: matcher.New(log.Named("matcher")),
	}
}

// attach applies rules to a page and follows its navigation until the page
// closes or ctx is done. The page stays registered with the background for
// that long.
func (t *tabs) attach(ctx context.Context, target *devtool.Target) {
	tab, err := browser.Attach(ctx, target, log.Named("browser"))
	if err != nil {
		log.Warn("attaching tab failed", zap.String("tab", target.ID), zap.Error(err))
		return
	}

	navigations, err := tab.Navigations(ctx)
	if err != nil {
		log.Warn("following tab failed", zap.String("tab", tab.ID()), zap.Error(err))
		_ = tab.Close()
		return
	}

	c := content.New(t.source, t.app.settings, tab, content.Options{
		ID:      tab.ID(),
		Matcher: t.m,
		Logger:  log.Named("content"),
	})
	if err := c.Init(ctx, tab.URL()); err != nil {
		log.Warn("initializing tab failed", zap.String("tab", tab.ID()), zap.Error(err))
	}

	unregister := t.app.bg.Register(c)
	log.Info("tab attached", zap.String("tab", tab.ID()), zap.String("url", tab.URL()))

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer tab.Close()
		defer unregister()
		c.Follow(ctx, navigations)
		log.Debug("tab detached", zap.String("tab", tab.ID()))
	}()
}

var _ background.Tab = (*content.Controller)(nil)

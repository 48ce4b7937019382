package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mafredri/cdp/devtool"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
)

// DefaultPollInterval is how often Discovery lists targets when no interval is set
const DefaultPollInterval = 2 * time.Second

// Lister lists the targets of a DevTools endpoint. *devtool.DevTools implements it.
type Lister interface {
	List(ctx context.Context) ([]*devtool.Target, error)
}

// Discovery reports page targets as they appear
type Discovery struct {
	lister   Lister
	filter   string
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewDiscovery watches the pages of lister whose URL contains filter
func NewDiscovery(lister Lister, filter string, interval time.Duration, log *zap.Logger) *Discovery {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Discovery{
		lister:   lister,
		filter:   filter,
		interval: interval,
		log:      logging.OrNop(log),
		seen:     make(map[string]bool),
	}
}

// NewDevToolsDiscovery watches the pages of the DevTools endpoint at url
func NewDevToolsDiscovery(url, filter string, interval time.Duration, log *zap.Logger) *Discovery {
	return NewDiscovery(devtool.New(url), filter, interval, log)
}

// Poll lists the targets once and returns the pages not reported before.
// Pages that closed are forgotten.
func (d *Discovery) Poll(ctx context.Context) ([]*devtool.Target, error) {
	targets, err := d.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	pages := pageTargets(targets, d.filter)

	d.mu.Lock()
	defer d.mu.Unlock()

	open := make(map[string]bool, len(pages))
	var added []*devtool.Target
	for _, t := range pages {
		open[t.ID] = true
		if !d.seen[t.ID] {
			d.seen[t.ID] = true
			added = append(added, t)
		}
	}
	for id := range d.seen {
		if !open[id] {
			delete(d.seen, id)
		}
	}
	return added, nil
}

// Run calls found for every new page until ctx is done. A failing first
// listing is returned, later ones are logged and retried.
func (d *Discovery) Run(ctx context.Context, found func(*devtool.Target)) error {
	added, err := d.Poll(ctx)
	if err != nil {
		return err
	}
	for _, t := range added {
		found(t)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		added, err := d.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Warn("listing browser targets failed", zap.Error(err))
			continue
		}
		for _, t := range added {
			d.log.Debug("new page", zap.String("tab", t.ID), zap.String("url", t.URL))
			found(t)
		}
	}
}

func pageTargets(targets []*devtool.Target, filter string) []*devtool.Target {
	var pages []*devtool.Target
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		if filter != "" && !strings.Contains(t.URL, filter) {
			continue
		}
		pages = append(pages, t)
	}
	return pages
}

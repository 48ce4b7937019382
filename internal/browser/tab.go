// Package browser applies rules to live pages over the Chrome DevTools Protocol.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/applier"
	"github.com/bnema/tranquilize/internal/logging"
)

// Tab is an attached page
type Tab struct {
	id     string
	conn   *rpcc.Conn
	client *cdp.Client
	log    *zap.Logger

	mu  sync.Mutex
	url string
}

// Attach opens a DevTools session on a page target
func Attach(ctx context.Context, target *devtool.Target, log *zap.Logger) (*Tab, error) {
	log = logging.OrNop(log)

	conn, err := rpcc.DialContext(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.ID, err)
	}

	client := cdp.NewClient(conn)
	if err := client.Page.Enable(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable page domain: %w", err)
	}

	return &Tab{
		id:     string(target.ID),
		conn:   conn,
		client: client,
		log:    log.With(zap.String("tab", string(target.ID))),
		url:    target.URL,
	}, nil
}

// ID returns the target id
func (t *Tab) ID() string { return t.id }

// URL returns the last known address of the page
func (t *Tab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *Tab) setURL(u string) {
	t.mu.Lock()
	t.url = u
	t.mu.Unlock()
}

// Navigations reports every main frame navigation, history API changes
// included. The channel closes when ctx is done or the session ends.
func (t *Tab) Navigations(ctx context.Context) (<-chan string, error) {
	navigated, err := t.client.Page.FrameNavigated(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe frame navigated: %w", err)
	}
	within, err := t.client.Page.NavigatedWithinDocument(ctx)
	if err != nil {
		navigated.Close()
		return nil, fmt.Errorf("subscribe navigated within document: %w", err)
	}

	out := make(chan string)
	var wg sync.WaitGroup
	wg.Add(2)

	emit := func(u string) bool {
		t.setURL(u)
		select {
		case out <- u:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer wg.Done()
		defer navigated.Close()
		for {
			ev, err := navigated.Recv()
			if err != nil {
				return
			}
			if ev.Frame.ParentID != nil {
				continue
			}
			if !emit(ev.Frame.URL) {
				return
			}
		}
	}()

	go func() {
		defer wg.Done()
		defer within.Close()
		for {
			ev, err := within.Recv()
			if err != nil {
				return
			}
			if !emit(ev.URL) {
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Apply replaces the injected stylesheet with the active rules of states
func (t *Tab) Apply(ctx context.Context, states []applier.RuleState) error {
	reply, err := t.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(Script(applier.StyleSheet(states))))
	if err != nil {
		return fmt.Errorf("evaluate on %s: %w", t.id, err)
	}
	if reply.ExceptionDetails != nil {
		return fmt.Errorf("evaluate on %s: %s", t.id, reply.ExceptionDetails.Text)
	}
	t.log.Debug("stylesheet applied", zap.String("url", t.URL()))
	return nil
}

// Close ends the session
func (t *Tab) Close() error {
	return t.conn.Close()
}

// Script builds the page script that swaps the injected stylesheet. An empty
// css only removes it.
func Script(css string) string {
	literal, _ := json.Marshal(css)
	return fmt.Sprintf(`(function (css) {
  document.querySelectorAll("style[%[1]s]").forEach(function (el) { el.remove(); });
  if (!css) return 0;
  var style = document.createElement("style");
  style.setAttribute(%[1]q, "true");
  style.textContent = css;
  (document.head || document.documentElement).appendChild(style);
  return 1;
})(%[2]s)`, applier.StyleAttr, literal)
}


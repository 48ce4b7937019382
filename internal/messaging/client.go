package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/bnema/tranquilize/internal/logging"
	"github.com/bnema/tranquilize/internal/models"
)

// ClientOptions configures a Client
type ClientOptions struct {
	Attempts int           // total tries while the daemon is unreachable, default 3
	Delay    time.Duration // fixed wait between tries, default 500ms
	Logger   *zap.Logger
}

// Client sends messages to a background daemon
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	log     *zap.Logger
}

// NewClient creates a client for the daemon at baseURL
func NewClient(baseURL string, opts ClientOptions) *Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = 500 * time.Millisecond
	}
	log := logging.OrNop(opts.Logger)

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Attempts - 1
	rc.RetryWaitMin = opts.Delay
	rc.RetryWaitMax = opts.Delay
	rc.Logger = nil
	rc.Backoff = func(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return min
	}
	// Only a missing receiver is worth retrying, answers are final
	rc.CheckRetry = func(ctx context.Context, _ *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Info("retrying message", zap.String("url", req.URL.String()), zap.Int("attempt", attempt+1))
		}
	}

	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: rc, log: log}
}

// Send posts a request and decodes the answer into out, which may be nil
func (c *Client) Send(ctx context.Context, msg Message, out any) error {
	body, err := json.Marshal(Request{Message: msg})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannel, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannel, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: %s", ErrUnknownMessage, e.Error)
		}
		return fmt.Errorf("message %s: status %d: %s", msg, resp.StatusCode, e.Error)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// GetConfig asks the background for the current config. It returns nil when
// the background answered null.
func (c *Client) GetConfig(ctx context.Context) (*models.RemoteConfig, error) {
	var cfg *models.RemoteConfig
	if err := c.Send(ctx, GetConfig, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProcessTab asks the background to re-apply rules to its tabs
func (c *Client) ProcessTab(ctx context.Context) error {
	return c.Send(ctx, ProcessTab, nil)
}

// Ping checks the background is alive
func (c *Client) Ping(ctx context.Context) (PingResponse, error) {
	var resp PingResponse
	err := c.Send(ctx, Ping, &resp)
	return resp, err
}

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/bnema/tranquilize/internal/models"
)

// ErrStatus is returned when the server answers with a non-2xx status
var ErrStatus = errors.New("unexpected HTTP status")

// Fetcher downloads the remote rule document
type Fetcher struct {
	client *resty.Client
}

// New creates a new fetcher from config
func New(cfg models.HTTPConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	// Borrow retryablehttp's pooled transport, resty drives the retries
	transport := retryablehttp.NewClient().HTTPClient.Transport

	client := resty.New().
		SetTransport(transport).
		SetTimeout(timeout).
		SetRetryCount(retries-1).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", "tranquilize/1.0").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r != nil && r.StatusCode() >= 500
		})

	return &Fetcher{client: client}
}

// Fetch downloads content from a URL, bypassing HTTP caches
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Pragma", "no-cache").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status())
	}

	return resp.Body(), nil
}

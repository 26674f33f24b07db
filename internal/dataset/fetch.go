package dataset

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

// StatusError reports a non-2xx response from the dataset URL.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to load data (%d)", e.StatusCode)
}

// Fetcher downloads datasets over HTTP. Transport errors and 5xx responses
// are retried with exponential backoff; 4xx responses fail immediately.
type Fetcher struct {
	client     *resty.Client
	maxRetries int
	logger     *slog.Logger

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewFetcher creates a Fetcher with a per-request timeout.
func NewFetcher(timeout time.Duration, maxRetries int, logger *slog.Logger) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Fetcher{
		client:          client,
		maxRetries:      maxRetries,
		logger:          logger,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
	}
}

// Fetch downloads and normalizes the dataset at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	var body []byte
	attempt := 0

	op := func() error {
		attempt++
		resp, err := f.client.R().SetContext(ctx).Get(url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			f.logger.Warn("dataset fetch failed", "url", url, "attempt", attempt, "error", err)
			return fmt.Errorf("fetch dataset: %w", err)
		}
		if !resp.IsSuccess() {
			statusErr := &StatusError{StatusCode: resp.StatusCode()}
			if resp.StatusCode() >= http.StatusInternalServerError {
				f.logger.Warn("dataset fetch failed", "url", url, "attempt", attempt, "status", resp.StatusCode())
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body = resp.Body()
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.initialInterval
	eb.MaxInterval = f.maxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.maxRetries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return Result{}, err
	}
	return Parse(bytes.NewReader(body), url)
}

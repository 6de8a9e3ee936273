package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const maxRetries = 3

// doWithRetry executes an HTTP request with exponential backoff for transient
// failures (network errors, 5xx). 429 and other 4xx responses are returned to
// the caller as *APIError without retrying; the relay decides what to tell the
// user, and retry-hammering a rate-limited endpoint only makes it worse.
func doWithRetry(ctx context.Context, client *http.Client, providerName string, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			base := time.Duration(attempt*attempt) * time.Second
			jitter := time.Duration(rand.Int64N(int64(base/2 + 1)))
			backoff := base + jitter
			logger.Warn("retrying request", "provider", providerName, "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && !errors.Is(err, context.Canceled) {
				logger.Warn("request failed, will retry", "provider", providerName, "error", err)
				continue
			}
			return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
		}

		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &APIError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
			if attempt < maxRetries {
				logger.Warn("server error, will retry", "provider", providerName, "status", resp.StatusCode)
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &APIError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
		}

		return resp, nil
	}

	return nil, lastErr
}

// Package source loads vulnerability documents from local paths or URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"vulndash/internal/config"
	"vulndash/internal/logger"
)

// Loader errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrTooLarge             = errors.New("source exceeds size limit")
	ErrEmptySource          = errors.New("source is empty")
)

// Loader reads a document from a file path, "-" for stdin, or an http(s) URL.
// Remote fetches follow the configured retry policy.
type Loader struct {
	client   *http.Client
	retry    config.RetryPolicy
	log      *logger.Logger
	stdin    io.Reader
	maxBytes int64
}

// NewLoader creates a loader from the source configuration.
func NewLoader(cfg config.SourceConfig, log *logger.Logger) *Loader {
	return &Loader{
		client: &http.Client{
			Timeout: cfg.Retry.GetTimeout(),
		},
		retry:    cfg.Retry,
		log:      log,
		stdin:    os.Stdin,
		maxBytes: int64(cfg.MaxSizeKb) * 1024,
	}
}

// IsRemote reports whether src is fetched over HTTP.
func IsRemote(src string) bool {
	lower := strings.ToLower(src)

	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Load returns the raw bytes of src.
func (l *Loader) Load(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, ErrEmptySource
	}

	if IsRemote(src) {
		return l.fetch(ctx, src)
	}

	if src == "-" {
		return l.readLimited(l.stdin, "stdin")
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close() //nolint:errcheck

	return l.readLimited(f, src)
}

func (l *Loader) readLimited(r io.Reader, name string) ([]byte, error) {
	if l.maxBytes <= 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		return b, nil
	}

	b, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if int64(len(b)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, name, l.maxBytes)
	}

	return b, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= l.retry.MaxAttempts; attempt++ {
		if delay := l.retry.GetRetryDelay(attempt); delay > 0 {
			l.log.Debug("retrying source fetch", "url", url, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, retry, err := l.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}

		lastErr = fmt.Errorf("attempt %d/%d: %w", attempt, l.retry.MaxAttempts, err)
		l.log.Warn("source fetch failed", "url", url, "attempt", attempt, "error", err)

		if !retry {
			break
		}
	}

	return nil, lastErr
}

// fetchOnce performs one GET. The bool reports whether the failure is worth retrying.
func (l *Loader) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vulndash/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, isRetryableStatus(resp.StatusCode), fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	body, err := l.readLimited(resp.Body, url)
	if err != nil {
		return nil, false, err
	}

	return body, false, nil
}

// isRetryableStatus determines if we should retry based on HTTP status code.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusBadGateway:
		return true
	}

	return false
}

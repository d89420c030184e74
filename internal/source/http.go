package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"uidai-insights/internal/logging"
)

// MaxDownloadSize caps a single HTTP download
const MaxDownloadSize = 256 << 20

// HTTPClient downloads files over HTTP(S) behind a circuit breaker
type HTTPClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPClient creates a client that opens its breaker after 3 consecutive failures
func NewHTTPClient() *HTTPClient {
	return NewHTTPClientWith(&http.Client{Timeout: 60 * time.Second}, 3, 30*time.Second)
}

// NewHTTPClientWith creates a client around c. The breaker trips after
// failureThreshold consecutive failures and half-opens after openTimeout.
func NewHTTPClientWith(c *http.Client, failureThreshold uint32, openTimeout time.Duration) *HTTPClient {
	settings := gobreaker.Settings{
		Name:        "source-http",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		// a caller giving up says nothing about the remote host
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &HTTPClient{
		client:  c,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// State reports the breaker state, e.g. "closed" or "open"
func (c *HTTPClient) State() string {
	return c.breaker.State().String()
}

// Fetch downloads url and returns its body
func (c *HTTPClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, url)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return data, nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP error: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("body exceeds %d bytes", MaxDownloadSize)
	}
	return data, nil
}

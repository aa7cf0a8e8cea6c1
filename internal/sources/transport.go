package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/parkpulse/parkpulse/internal/netutil/ratelimit"
)

// Transport wraps an http.Client with per-host rate limiting, a circuit
// breaker, and retry with exponential backoff. Both upstream clients
// share this fetch path.
type Transport struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	retries int
	name    string
}

// NewTransport builds a transport for one named source.
func NewTransport(name string, timeout time.Duration, rps float64, burst int) *Transport {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Transport{
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
		limiter: ratelimit.NewLimiter(rps, burst),
		retries: 3,
		name:    name,
	}
}

// GetJSON fetches rawURL and decodes the response body into out.
func (t *Transport) GetJSON(ctx context.Context, rawURL string, out interface{}) error {
	body, err := t.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}

// Get fetches rawURL and returns the response body. The caller must close
// it. Retries apply to transport errors and 5xx/429 responses; 4xx other
// than 429 fail immediately.
func (t *Transport) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	var lastErr error
	for attempt := 0; attempt <= t.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		if err := t.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}

		result, err := t.breaker.Execute(func() (interface{}, error) {
			return t.doOnce(ctx, rawURL)
		})
		if err == nil {
			return result.(io.ReadCloser), nil
		}
		lastErr = err

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		log.Debug().
			Str("source", t.name).
			Str("url", rawURL).
			Int("attempt", attempt+1).
			Err(err).
			Msg("retrying upstream request")
	}

	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", rawURL, t.retries+1, lastErr)
}

func (t *Transport) doOnce(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "parkpulse/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &retryableError{err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, &retryableError{err: fmt.Errorf("upstream returned %d", resp.StatusCode)}
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("upstream returned %d for %s", resp.StatusCode, rawURL)
	}
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// backoff returns the delay before retry attempt n with jitter.
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

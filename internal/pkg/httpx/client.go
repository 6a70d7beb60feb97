package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/nirmalpoudel/terrawatt/internal/core/domain"
	"github.com/nirmalpoudel/terrawatt/internal/pkg/metrics"
)

// DefaultMaxRetries bounds the attempt count when the caller passes zero.
const DefaultMaxRetries = 3

const backoffUnit = time.Second

// Request describes one outbound HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the successful outcome of Do: a 2xx status and its body,
// fully read.
type Response struct {
	Status int
	Body   []byte
}

// Client issues HTTP requests with bounded retry, exponential backoff and
// jitter. Each Do call is independent: no state is shared between calls and
// no circuit breaker spans them.
type Client struct {
	hc         *http.Client
	maxRetries int

	// unit and jitter are overridden in tests to make backoff fast and
	// deterministic.
	unit   time.Duration
	jitter func() time.Duration
}

// New creates a Client. maxRetries is the total attempt ceiling per call;
// zero or negative selects DefaultMaxRetries.
func New(timeout time.Duration, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Client{
		hc:         &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		unit:       backoffUnit,
		jitter:     func() time.Duration { return time.Duration(rand.Int63n(int64(backoffUnit))) },
	}
}

// retryable reports whether a status is worth retrying: 429 and 5xx are
// transient, every other non-2xx is a caller error.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Do issues the request, retrying retryable failures up to the attempt
// ceiling. A transport-level error on a non-final attempt backs off like a
// retryable status; on the final attempt it propagates.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	host := hostOf(req.URL)

	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		final := attempt == c.maxRetries-1

		resp, err := c.attempt(ctx, req, host)
		if err == nil {
			if resp.Status >= 200 && resp.Status < 300 {
				return resp, nil
			}
			lastStatus = resp.Status
			lastErr = nil
			if !retryable(resp.Status) {
				return nil, &domain.NetworkError{URL: req.URL, Attempts: attempt + 1, LastStatus: resp.Status}
			}
			if !final {
				metrics.RequestRetries.WithLabelValues(host, fmt.Sprintf("status_%d", resp.Status)).Inc()
			}
		} else {
			if ctx.Err() != nil {
				return nil, &domain.NetworkError{URL: req.URL, Attempts: attempt + 1, Err: ctx.Err()}
			}
			lastStatus = 0
			lastErr = err
			if final {
				break
			}
			metrics.RequestRetries.WithLabelValues(host, "transport").Inc()
		}

		if final {
			break
		}
		if err := c.backoff(ctx, attempt); err != nil {
			return nil, &domain.NetworkError{URL: req.URL, Attempts: attempt + 1, Err: err}
		}
	}

	return nil, &domain.NetworkError{URL: req.URL, Attempts: c.maxRetries, LastStatus: lastStatus, Err: lastErr}
}

// attempt performs a single request and drains the body.
func (c *Client) attempt(ctx context.Context, req Request, host string) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	metrics.RequestAttempts.WithLabelValues(host).Inc()
	start := time.Now()

	resp, err := c.hc.Do(httpReq)
	metrics.RequestDuration.WithLabelValues(host).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// backoff waits 2^attempt seconds plus up to one second of jitter, or until
// the context is cancelled.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<attempt) * c.unit
	delay += c.jitter()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

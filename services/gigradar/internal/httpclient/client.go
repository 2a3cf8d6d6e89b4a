package httpclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/errors"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/httpclient")

type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeAuthExpired
	OutcomeNotFound
	OutcomeRetriable
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthExpired:
		return "auth_expired"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRetriable:
		return "retriable"
	default:
		return "failed"
	}
}

// Classify maps a status code onto the outcome the retry loop acts on.
func Classify(status int) Outcome {
	switch {
	case status == http.StatusOK:
		return OutcomeOK
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return OutcomeAuthExpired
	case status == http.StatusNotFound:
		return OutcomeNotFound
	case status == http.StatusTooManyRequests, status >= 500:
		return OutcomeRetriable
	default:
		return OutcomeFailed
	}
}

type Options struct {
	// Name tags log lines and spans ("marketplace", "forum").
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
}

// Client retries a Transport with linear backoff plus 2-5s of jitter.
// 401/403 and 404 are returned immediately as AuthExpired and NotFound.
type Client struct {
	transport   Transport
	name        string
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger

	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewClient(transport Transport, opts Options, logger *zap.Logger) *Client {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay < 0 {
		opts.BaseDelay = 0
	}
	return &Client{
		transport:   transport,
		name:        opts.Name,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		logger:      logger.With(zap.String("client", opts.Name)),
		jitter: func() time.Duration {
			return 2*time.Second + time.Duration(rand.Int63n(int64(3*time.Second)))
		},
		sleep: Sleep,
	}
}

// WithSleep swaps the wait function; tests pass a no-op.
func (c *Client) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Client {
	c.sleep = sleep
	return c
}

func (c *Client) backoff(failed int) time.Duration {
	return c.baseDelay*time.Duration(failed) + c.jitter()
}

func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "httpclient.Do")
	defer span.End()
	span.SetAttributes(
		telemetry.String("http.client", c.name),
		telemetry.String("http.method", req.Method),
		telemetry.String("http.url", req.URL),
	)

	attempts := c.maxAttempts
	if req.Attempts > 0 && req.Attempts < attempts {
		attempts = req.Attempts
	}

	var lastResp *Response
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			c.logger.Debug("retrying request",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, errors.Transport("request cancelled", err)
			}
		}

		resp, err := c.transport.RoundTrip(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				span.RecordError(err)
				return nil, errors.Transport("request cancelled", ctx.Err())
			}
			c.logger.Warn("request failed",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastResp = nil
			lastErr = errors.Transport(fmt.Sprintf("%s %s", req.Method, req.URL), err)
			continue
		}

		span.SetAttributes(telemetry.Int("http.status_code", resp.StatusCode))

		switch Classify(resp.StatusCode) {
		case OutcomeOK:
			return resp, nil
		case OutcomeAuthExpired:
			c.logger.Warn("authorization rejected",
				zap.String("url", req.URL),
				zap.Int("status_code", resp.StatusCode))
			return resp, errors.AuthExpired(fmt.Sprintf("status %d from %s", resp.StatusCode, req.URL), nil)
		case OutcomeNotFound:
			return resp, errors.NotFound(req.URL, nil)
		case OutcomeRetriable:
			c.logger.Warn("retriable status",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Int("status_code", resp.StatusCode))
			lastResp = resp
			lastErr = errors.Transport(fmt.Sprintf("status %d from %s", resp.StatusCode, req.URL), nil)
		default:
			c.logger.Error("unexpected status code",
				zap.String("url", req.URL),
				zap.Int("status_code", resp.StatusCode))
			return resp, errors.Transport(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, req.URL), nil)
		}
	}

	span.RecordError(lastErr)
	return lastResp, lastErr
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

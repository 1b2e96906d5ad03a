// Package disk is the HTTP transport for the path-addressed cloud disk API.
// It owns retries, rate limiting, pagination and the signed-link transfers,
// and knows nothing about projects or sync state.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"kbsync/internal/auth"
	"kbsync/internal/logger"
	"kbsync/internal/metrics"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	maxBackoff    = 32 * time.Second
	maxRetryAfter = 60 * time.Second
)

var errIdleTimeout = errors.New("idle timeout")

type Config struct {
	APIURL    string
	Token     string
	PageLimit int
	// HTTPClient is the base transport for both request classes.
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

type Client struct {
	apiURL    string
	api       *http.Client
	raw       *http.Client
	clock     clockwork.Clock
	log       *zap.Logger
	pageLimit int

	mu     sync.Mutex
	jitter func() float64
}

func New(cfg Config) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Log
	}

	limit := cfg.PageLimit
	if limit < 1 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	return &Client{
		apiURL:    cfg.APIURL,
		api:       auth.NewClient(ctx, cfg.Token),
		raw:       base,
		clock:     clock,
		log:       log.Named("disk"),
		pageLimit: limit,
		jitter:    func() float64 { return 0.1 + 0.4*rand.Float64() },
	}
}

// Do sends req, retrying rate-limited (429), server-side (5xx) and
// recoverable network failures up to req.MaxRetries times. Any other
// transport failure is returned at once. Once retries are exhausted the last
// HTTP response is returned as is; a network failure yields *NetworkError.
// The caller owns the returned body.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		exhausted := attempt >= req.MaxRetries

		httpReq, err := c.newRequest(req)
		if err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, req, httpReq)
		if err != nil {
			metrics.RecordRequest(req.class(), req.Method, 0)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if !isRecoverable(err) {
				c.log.Error("network failure is not retryable",
					zap.String("class", req.class()), zap.String("method", req.Method),
					zap.String("target", req.target()), zap.Error(err))
				return nil, &NetworkError{Method: req.Method, Target: req.target(), Attempts: attempt + 1, Err: err}
			}

			if exhausted {
				c.log.Error("network failure, giving up",
					zap.String("class", req.class()), zap.String("method", req.Method),
					zap.String("target", req.target()), zap.Int("attempts", attempt+1), zap.Error(err))
				return nil, &NetworkError{Method: req.Method, Target: req.target(), Attempts: attempt + 1, Err: err}
			}

			if err := c.wait(ctx, req, attempt, "network", c.backoff(attempt), zap.Error(err)); err != nil {
				return nil, err
			}
			continue
		}

		metrics.RecordRequest(req.class(), req.Method, resp.StatusCode)

		var reason string
		var delay time.Duration
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			reason, delay = "rate_limit", retryAfter(resp.Header.Get("Retry-After"))
		case resp.StatusCode >= http.StatusInternalServerError:
			reason, delay = "server_error", c.backoff(attempt)
		default:
			return resp, nil
		}

		if exhausted {
			return resp, nil
		}

		drainClose(resp)
		if err := c.wait(ctx, req, attempt, reason, delay, zap.Int("status", resp.StatusCode)); err != nil {
			return nil, err
		}
	}
}

func (c *Client) newRequest(req Request) (*http.Request, error) {
	target := req.Endpoint
	if !req.Raw {
		target = c.apiURL + req.Endpoint
		if len(req.Query) > 0 {
			target += "?" + req.Query.Encode()
		}
	}

	var body io.ReadCloser
	if req.Body != nil {
		var err error
		if body, err = req.Body(); err != nil {
			return nil, fmt.Errorf("failed to open request body: %w", err)
		}
	}

	httpReq, err := http.NewRequest(req.Method, target, body)
	if err != nil {
		if body != nil {
			_ = body.Close()
		}
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil && req.Size > 0 {
		httpReq.ContentLength = req.Size
	}

	return httpReq, nil
}

// send aborts the exchange once no bytes have moved in either direction for
// timeout. A slow but steady transfer is never cut off.
func (c *Client) send(ctx context.Context, req Request, httpReq *http.Request) (*http.Response, error) {
	client := c.api
	if req.Raw {
		client = c.raw
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = apiTimeout
	}

	ctx, cancelCause := context.WithCancelCause(ctx)
	cancel := func() { cancelCause(nil) }
	idle := time.AfterFunc(timeout, func() { cancelCause(errIdleTimeout) })
	touch := func() { idle.Reset(timeout) }

	if httpReq.Body != nil {
		httpReq.Body = &watchedBody{ReadCloser: httpReq.Body, touch: touch}
	}

	resp, err := client.Do(httpReq.WithContext(ctx))
	if err != nil {
		idle.Stop()
		if errors.Is(context.Cause(ctx), errIdleTimeout) {
			err = fmt.Errorf("%w: %w", errIdleTimeout, err)
		}
		cancel()
		return nil, err
	}

	touch()
	resp.Body = &watchedBody{ReadCloser: resp.Body, touch: touch, done: func() {
		idle.Stop()
		cancel()
	}}

	return resp, nil
}

// isRecoverable reports whether a transport failure may go away on retry:
// refused or reset connections, timeouts and connections closed mid-exchange.
func isRecoverable(err error) bool {
	switch {
	case errors.Is(err, errIdleTimeout),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}

	if _, ok := errors.AsType[*net.OpError](err); ok {
		return true
	}

	ne, ok := errors.AsType[net.Error](err)
	return ok && ne.Timeout()
}

func (c *Client) wait(ctx context.Context, req Request, attempt int, reason string, d time.Duration, field zap.Field) error {
	c.log.Warn("request failed, retrying",
		zap.String("class", req.class()), zap.String("method", req.Method),
		zap.String("target", req.target()), zap.String("reason", reason), field,
		zap.Int("attempt", attempt+1), zap.Int("max_attempts", req.MaxRetries+1),
		zap.Duration("wait", d))
	metrics.RecordRetry(reason)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

// backoff is baseDelay plus a uniform jitter of 10-50% of it.
func (c *Client) backoff(attempt int) time.Duration {
	base := baseDelay(attempt)

	c.mu.Lock()
	j := c.jitter()
	c.mu.Unlock()

	return base + time.Duration(j*float64(base))
}

// baseDelay is min(2^attempt, 32) seconds.
func baseDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}

	return min(time.Duration(1<<attempt)*time.Second, maxBackoff)
}

// retryAfter parses a Retry-After value in seconds, defaulting to one
// second and capped at a minute.
func retryAfter(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return time.Second
	}

	return min(time.Duration(n)*time.Second, maxRetryAfter)
}

type watchedBody struct {
	io.ReadCloser
	touch func()
	done  func()
}

func (b *watchedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 {
		b.touch()
	}
	return n, err
}

func (b *watchedBody) Close() error {
	err := b.ReadCloser.Close()
	if b.done != nil {
		b.done()
	}
	return err
}

func drainClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// expect closes resp and returns a *StatusError unless its code is listed.
func expect(resp *http.Response, op string, p Path, codes ...int) error {
	defer drainClose(resp)

	for _, code := range codes {
		if resp.StatusCode == code {
			return nil
		}
	}

	return &StatusError{Op: op, Path: p.String(), Code: resp.StatusCode}
}

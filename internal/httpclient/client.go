// Package httpclient builds the retrying HTTP client shared by the wiki and
// Superset clients.
package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LeveledZerolog adapts a zerolog logger to retryablehttp.LeveledLogger.
type LeveledZerolog struct {
	inner zerolog.Logger
}

// Error is logged as a warning: the request is usually retried.
func (l LeveledZerolog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn().Fields(keysAndValues).Msg(msg)
}

func (l LeveledZerolog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn().Fields(keysAndValues).Msg(msg)
}

func (l LeveledZerolog) Info(msg string, keysAndValues ...any) {
	l.inner.Debug().Fields(keysAndValues).Msg(msg)
}

func (l LeveledZerolog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug().Fields(keysAndValues).Msg(msg)
}

type Option func(*retryablehttp.Client, *http.Client)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(maxRetries int) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.RetryMax = maxRetries
	}
}

// WithRetryWait bounds the backoff between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.RetryWaitMin = waitMin
		rc.RetryWaitMax = waitMax
	}
}

// WithTimeout sets the overall timeout of one logical request, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(_ *retryablehttp.Client, c *http.Client) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithLogger routes retry logging through logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		rc.Logger = retryablehttp.LeveledLogger(LeveledZerolog{inner: logger})
	}
}

// WithUserAgent sets the User-Agent header on every attempt.
func WithUserAgent(userAgent string) Option {
	return func(rc *retryablehttp.Client, _ *http.Client) {
		if userAgent == "" {
			return
		}
		rc.RequestLogHook = chainRequestHook(rc.RequestLogHook, func(_ retryablehttp.Logger, req *http.Request, _ int) {
			req.Header.Set("User-Agent", userAgent)
		})
	}
}

func chainRequestHook(prev, next retryablehttp.RequestLogHook) retryablehttp.RequestLogHook {
	if prev == nil {
		return next
	}
	return func(l retryablehttp.Logger, req *http.Request, attempt int) {
		prev(l, req, attempt)
		next(l, req, attempt)
	}
}

// New returns a standard *http.Client backed by retryablehttp. It retries
// connection errors, 429 (honouring Retry-After) and 5xx other than 501.
func New(options ...Option) *http.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = retryablehttp.LeveledLogger(LeveledZerolog{inner: log.Logger.With().Str("subsystem", "httpclient").Logger()})
	rc.CheckRetry = RetryPolicy

	client := rc.StandardClient()
	client.Timeout = 30 * time.Second
	for _, option := range options {
		option(rc, client)
	}
	return client
}

// RetryPolicy wraps retryablehttp.DefaultRetryPolicy and stops retrying
// once the caller's context is done.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

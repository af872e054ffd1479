package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vitalhub/vitalsync/internal/model"
)

// ClientConfig tunes the shared outbound HTTP client for one provider.
type ClientConfig struct {
	BaseURL           string
	AuthToken         string // bearer token; empty disables the header
	Timeout           time.Duration
	RetryCount        int
	RetryWait         time.Duration
	RetryMax          time.Duration
	RequestsPerSecond float64
	Burst             int
}

func (c *ClientConfig) withDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = time.Minute
	}
	if c.RetryCount <= 0 {
		c.RetryCount = 3
	}
	if c.RetryWait <= 0 {
		c.RetryWait = 500 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 10 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
}

// Client wraps outbound provider calls with bounded exponential retry,
// provider-side rate limiting and a circuit breaker. Transient statuses
// (429, 5xx) are retried; any other 4xx is a permanent fetch failure for
// that page.
type Client struct {
	source  string
	rc      *resty.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// NewClient builds a Client for one provider.
func NewClient(source string, cfg ClientConfig) *Client {
	cfg.withDefaults()

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMax).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if cfg.AuthToken != "" {
		rc.SetAuthToken(cfg.AuthToken)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    source,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		source:  source,
		rc:      rc,
		breaker: breaker,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// GetJSON issues a GET and decodes the JSON body into out. Errors carry the
// transient/fatal classification the sync cycle needs.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &model.FetchError{Source: c.source, Transient: true, Err: err}
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.rc.R().SetContext(ctx)
		if query != nil {
			req.SetQueryParamsFromValues(query)
		}
		resp, err := req.Get(path)
		if err != nil {
			return nil, &model.FetchError{Source: c.source, Transient: true, Err: err}
		}
		if resp.IsError() {
			return nil, classifyStatus(c.source, resp.StatusCode(), resp.String())
		}
		return resp.Body(), nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return &model.FetchError{Source: c.source, Transient: true, Err: err}
		}
		return err
	}

	body, _ := res.([]byte)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.FetchError{Source: c.source, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// PostForm issues an application/x-www-form-urlencoded POST and decodes
// the JSON body into out, with the same retry, rate-limit and breaker
// behaviour as GetJSON.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &model.FetchError{Source: c.source, Transient: true, Err: err}
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.rc.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetBody(form.Encode()).
			Post(path)
		if err != nil {
			return nil, &model.FetchError{Source: c.source, Transient: true, Err: err}
		}
		if resp.IsError() {
			return nil, classifyStatus(c.source, resp.StatusCode(), resp.String())
		}
		return resp.Body(), nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return &model.FetchError{Source: c.source, Transient: true, Err: err}
		}
		return err
	}

	body, _ := res.([]byte)
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &model.FetchError{Source: c.source, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classifyStatus(source string, code int, body string) error {
	transient := code == http.StatusTooManyRequests || code >= 500
	return &model.FetchError{
		Source:    source,
		Transient: transient,
		Err:       fmt.Errorf("status %d: %s", code, truncate(body, 200)),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

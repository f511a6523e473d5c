package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/tracing"
)

// errServerStatus marks a 5xx response for the breaker without surfacing it.
var errServerStatus = errors.New("server error status")

// Config defines transport behavior for one remote endpoint.
type Config struct {
	// Name identifies the endpoint in breaker state and logs
	Name string
	// BaseURL is prepended to every relative request URL
	BaseURL string
	// Timeout bounds one request including retries
	Timeout time.Duration
	// RetryMax is the number of extra attempts after a transport error; 0 disables retry
	RetryMax int
	// RateLimit caps outgoing requests per second; <= 0 is unlimited
	RateLimit float64
	// UserAgent is sent on every request
	UserAgent string
	// OnStateChange observes breaker transitions
	OnStateChange func(name string, from, to resilience.State)
}

// Client wraps resty with rate limiting and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex
}

// NewClient creates an HTTP client for a single remote endpoint.
//
// Status codes are never retried. Only transport errors (DNS, refused
// connection, reset) are retried, and only when cfg.RetryMax > 0, with linear
// jittered backoff.
func NewClient(cfg Config) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Backoff = retryablehttp.LinearJitterBackoff
	retryClient.CheckRetry = retryTransportErrors
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	restyClient := resty.NewWithClient(retryClient.StandardClient())
	restyClient.
		SetTimeout(orDefault(cfg.Timeout, 30*time.Second)).
		SetRetryCount(0).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("User-Agent", orDefault(cfg.UserAgent, "sessionsync/1.0"))
	if cfg.BaseURL != "" {
		restyClient.SetBaseURL(cfg.BaseURL)
	}

	name := orDefault(cfg.Name, "remote")
	breaker := resilience.New(name, resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && counts.FailureRatio() > 0.7)
		},
		// The caller giving up is not a remote failure
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		},
		OnStateChange: cfg.OnStateChange,
	})

	c := &Client{
		Resty:   restyClient,
		Limiter: rate.NewLimiter(rate.Inf, 0),
		Breaker: breaker,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetHeader adds default header
func (c *Client) SetHeader(key, value string) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// SetTimeout configures request timeout
func (c *Client) SetTimeout(duration time.Duration) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Resty.SetTimeout(duration)
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Request creates new request with rate limiting and circuit breaker protection
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	headers := make(map[string]string, 2)
	tracing.InjectTraceContext(ctx, headers)

	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Resty.R().SetContext(ctx).SetHeaders(headers), nil
}

// Execute builds a request and runs fn under the circuit breaker. Transport
// errors and 5xx responses count against the breaker; any response that
// arrived is returned to the caller for status classification.
func (c *Client) Execute(ctx context.Context, fn func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}

	var resp *resty.Response
	err = c.Breaker.Execute(func() error {
		r, err := fn(req)
		resp = r
		if err != nil {
			return err
		}
		if r.StatusCode() >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})

	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() resilience.Counts {
	return c.Breaker.Counts()
}

// retryTransportErrors retries only when no response was received.
func retryTransportErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

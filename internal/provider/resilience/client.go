package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the provider while its
// breaker is open or saturated half-open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig configures a resilient provider client.
type ClientConfig struct {
	Name string

	// Timeout bounds each attempt. Default 10s.
	Timeout time.Duration

	// MaxRetries after the first attempt; zero disables retries.
	MaxRetries uint64

	// Backoff bounds. Defaults 200ms and 2s.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker defaults to DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, when set, tracks the client under Name.
	Registry *Registry

	Logger zerolog.Logger
}

// DefaultClientConfig is what the routing providers use.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         &breaker,
	}
}

// Client sends provider requests through a circuit breaker and retries
// transport failures and 5xx answers with exponential backoff.
type Client struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retries uint64
	initial time.Duration
	max     time.Duration
	logger  zerolog.Logger
}

// NewClient builds a Client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	breaker := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breaker = *cfg.Breaker
	}
	if breaker.Name == "" {
		breaker.Name = cfg.Name
	}
	breaker.Logger = cfg.Logger

	c := &Client{
		name:    cfg.Name,
		http:    &http.Client{Timeout: orDefault(cfg.Timeout, 10*time.Second)},
		breaker: newBreaker(breaker), //nolint:bodyclose // type parameter
		retries: cfg.MaxRetries,
		initial: orDefault(cfg.InitialInterval, 200*time.Millisecond),
		max:     orDefault(cfg.MaxInterval, 2*time.Second),
		logger:  cfg.Logger,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Name is the provider name the client was built for.
func (c *Client) Name() string { return c.name }

// State is the breaker's current state.
func (c *Client) State() gobreaker.State { return c.breaker.State() }

// Counts are the breaker's counts for the current generation.
func (c *Client) Counts() gobreaker.Counts { return c.breaker.Counts() }

// Do sends req, retrying on transport errors and 5xx. Any other status is
// returned as-is. When retries run out on a 5xx the last response is
// returned with a nil error so the caller can map the status itself.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initial
	bo.MaxInterval = c.max
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.retries), ctx)

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			drain(last)
		}
		last = resp
	}

	err := backoff.RetryNotify(func() error {
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // kept in last
			return c.attempt(ctx, req)
		})
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case resp != nil:
			keep(resp)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Str("provider", c.name).Dur("retry_in", wait).Msg("provider request failed, retrying")
	})

	if err != nil && last == nil {
		return nil, err
	}
	return last, nil
}

// attempt sends one copy of req. A 5xx counts as a breaker failure but the
// response is still handed back.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		clone.Body = body
	}

	resp, err := c.http.Do(clone)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// StatusError is a 5xx answer from a provider.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

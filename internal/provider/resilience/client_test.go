package resilience_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swasthyasetu/swasthyasetu/internal/provider/resilience"
)

// provider is a test server answering with statuses in order, repeating
// the last one. It counts the requests it saw.
type provider struct {
	*httptest.Server
	hits     atomic.Int32
	lastBody atomic.Value
}

func newProvider(t *testing.T, statuses ...int) *provider {
	t.Helper()
	p := &provider{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		p.lastBody.Store(string(body))
		n := int(p.hits.Add(1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"routes":[]}`))
	}))
	t.Cleanup(p.Close)
	return p
}

// quickClient retries fast and never trips unless trip is given.
func quickClient(name string, retries uint64, trip func(gobreaker.Counts) bool) *resilience.Client {
	breaker := resilience.DefaultBreakerConfig(name)
	breaker.Trip = func(gobreaker.Counts) bool { return false }
	if trip != nil {
		breaker.Trip = trip
	}
	return resilience.NewClient(resilience.ClientConfig{
		Name:            name,
		Timeout:         2 * time.Second,
		MaxRetries:      retries,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Breaker:         &breaker,
	})
}

func send(t *testing.T, c *resilience.Client, ctx context.Context, method, url, body string) (*http.Response, error) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	require.NoError(t, err)
	resp, err := c.Do(req)
	if resp != nil {
		t.Cleanup(func() { _ = resp.Body.Close() })
	}
	return resp, err
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		retries    uint64
		wantStatus int
		wantHits   int32
	}{
		{"first try", []int{http.StatusOK}, 2, http.StatusOK, 1},
		{"recovers after 5xx", []int{http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK}, 5, http.StatusOK, 3},
		{"exhausted returns last 5xx", []int{http.StatusBadGateway}, 2, http.StatusBadGateway, 3},
		{"4xx not retried", []int{http.StatusBadRequest}, 3, http.StatusBadRequest, 1},
		{"rate limit not retried", []int{http.StatusTooManyRequests}, 3, http.StatusTooManyRequests, 1},
		{"retries disabled", []int{http.StatusInternalServerError}, 0, http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, tt.statuses...)

			resp, err := send(t, quickClient("openrouteservice", tt.retries, nil), context.Background(), http.MethodGet, p.URL, "")

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantHits, p.hits.Load())
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, `{"routes":[]}`, string(body))
		})
	}
}

func TestClient_RetryReplaysBody(t *testing.T) {
	p := newProvider(t, http.StatusInternalServerError, http.StatusOK)

	resp, err := send(t, quickClient("openrouteservice", 2, nil), context.Background(),
		http.MethodPost, p.URL, `{"coordinates":[[72.9781,19.2183],[72.9764,19.1972]]}`)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), p.hits.Load())
	assert.Equal(t, `{"coordinates":[[72.9781,19.2183],[72.9764,19.1972]]}`, p.lastBody.Load())
}

func TestClient_OpenCircuitSkipsProvider(t *testing.T) {
	p := newProvider(t, http.StatusInternalServerError)
	client := quickClient("mapbox", 0, func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 })

	for i := 0; i < 3; i++ {
		resp, err := send(t, client, context.Background(), http.MethodGet, p.URL, "")
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}
	require.Equal(t, gobreaker.StateOpen, client.State())

	_, err := send(t, client, context.Background(), http.MethodGet, p.URL, "")

	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), p.hits.Load())
	assert.Equal(t, uint32(0), client.Counts().Requests, "open state starts a new generation")
}

func TestClient_AttemptTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer slow.Close()

	client := resilience.NewClient(resilience.ClientConfig{Name: "slow", Timeout: 50 * time.Millisecond})

	_, err := send(t, client, context.Background(), http.MethodGet, slow.URL, "")
	assert.Error(t, err)
}

func TestClient_ContextCancelStopsRetries(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(time.Second)
	}))
	defer slow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := send(t, quickClient("slow", 3, nil), ctx, http.MethodGet, slow.URL, "")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_StateChangeHook(t *testing.T) {
	p := newProvider(t, http.StatusServiceUnavailable)

	var transitions []string
	breaker := resilience.DefaultBreakerConfig("openrouteservice")
	breaker.Trip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	breaker.OnStateChange = func(_ string, from, to gobreaker.State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	client := resilience.NewClient(resilience.ClientConfig{Name: "openrouteservice", Breaker: &breaker})

	_, err := send(t, client, context.Background(), http.MethodGet, p.URL, "")

	require.NoError(t, err)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestDefaults(t *testing.T) {
	cfg := resilience.DefaultClientConfig("openrouteservice")
	assert.Equal(t, "openrouteservice", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint64(2), cfg.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.InitialInterval)
	assert.Equal(t, 2*time.Second, cfg.MaxInterval)
	require.NotNil(t, cfg.Breaker)

	assert.Equal(t, "openrouteservice", cfg.Breaker.Name)
	assert.Equal(t, uint32(1), cfg.Breaker.HalfOpenRequests)
	assert.Equal(t, 30*time.Second, cfg.Breaker.OpenFor)
	assert.NotNil(t, cfg.Breaker.Trip)
}

func TestTripOnFailures(t *testing.T) {
	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{"too few requests", gobreaker.Counts{Requests: 4, TotalFailures: 2}, false},
		{"under half failed", gobreaker.Counts{Requests: 10, TotalFailures: 4}, false},
		{"half failed", gobreaker.Counts{Requests: 10, TotalFailures: 5}, true},
		{"five in a row", gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, true},
		{"five in a row after a long run", gobreaker.Counts{Requests: 100, TotalFailures: 5, ConsecutiveFailures: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.TripOnFailures(tt.counts))
		})
	}
}

func TestStatusError(t *testing.T) {
	err := &resilience.StatusError{StatusCode: http.StatusBadGateway}
	assert.Equal(t, "provider answered 502 Bad Gateway", err.Error())
}

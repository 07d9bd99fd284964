package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
)

// ClientIDHeader identifies a device across changing IP addresses.
const ClientIDHeader = "X-Client-Id"

// RateLimit allows Requests per sliding Window for each key.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

var (
	// TriggerRateLimit guards starting and cancelling emergencies.
	TriggerRateLimit = RateLimit{Requests: 10, Window: time.Minute}

	// ExpensiveRateLimit guards calls that reach a routing provider.
	ExpensiveRateLimit = RateLimit{Requests: 30, Window: time.Minute}

	// StandardRateLimit guards read endpoints.
	StandardRateLimit = RateLimit{Requests: 100, Window: time.Minute}
)

// ByIP limits per client IP, as resolved by chi's RealIP.
func (l RateLimit) ByIP() func(http.Handler) http.Handler {
	return l.limiter(httprate.KeyByRealIP)
}

// ByClient limits per X-Client-Id, falling back to the client IP for
// requests that do not send one.
func (l RateLimit) ByClient() func(http.Handler) http.Handler {
	return l.limiter(func(r *http.Request) (string, error) {
		if id := r.Header.Get(ClientIDHeader); id != "" {
			return "client:" + id, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func (l RateLimit) limiter(key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(l.Window.Seconds())))
	return httprate.Limit(
		l.Requests,
		l.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			// httprate does not expose the reset time; a full window is the upper bound.
			w.Header().Set("Retry-After", retryAfter)
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
			problem.Instance = r.URL.Path
			problem.Write(w)
		}),
	)
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/swasthyasetu/swasthyasetu/internal/api/middleware"

// Metrics holds the HTTP server instruments.
type Metrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewMetrics creates the HTTP server instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	var m Metrics
	var errs [4]error
	m.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"))
	m.requests, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests served"),
		metric.WithUnit("{request}"))
	m.inFlight, errs[2] = meter.Int64UpDownCounter("http.server.requests_in_flight",
		metric.WithDescription("HTTP requests being served, including open streams"),
		metric.WithUnit("{request}"))
	m.size, errs[3] = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("Bytes written in HTTP response bodies"),
		metric.WithUnit("By"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// Middleware records duration, count and size per method, route pattern and
// status. Upgraded stream connections count as one request whose duration
// is the life of the stream.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()

			// The route is unknown until chi has matched it.
			method := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			rec := recorderFor(w)
			next.ServeHTTP(rec, r)

			opt := metric.WithAttributes(requestAttributes(r, rec)...)
			m.duration.Record(ctx, time.Since(start).Seconds(), opt)
			m.requests.Add(ctx, 1, opt)
			m.size.Record(ctx, rec.written, opt)
		})
	}
}

func requestAttributes(r *http.Request, rec *statusRecorder) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 5)
	attrs = append(attrs,
		attribute.String("http.method", r.Method),
		attribute.String("http.route", routePattern(r)),
		attribute.String("http.status_code", strconv.Itoa(rec.status)),
	)
	if rec.status >= http.StatusBadRequest {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	if rec.hijacked {
		attrs = append(attrs, attribute.Bool("http.upgraded", true))
	}
	return attrs
}

// ProviderMetrics counts routing provider calls and route cache lookups.
// It satisfies routing.Observer.
type ProviderMetrics struct {
	duration     metric.Float64Histogram
	requests     metric.Int64Counter
	cacheLookups metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on the global meter
// provider.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)

	var m ProviderMetrics
	var errs [3]error
	m.duration, errs[0] = meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Duration of routing provider calls"),
		metric.WithUnit("s"))
	m.requests, errs[1] = meter.Int64Counter("provider.request.total",
		metric.WithDescription("Routing provider calls, failed ones marked with error"),
		metric.WithUnit("{request}"))
	m.cacheLookups, errs[2] = meter.Int64Counter("provider.cache.lookups",
		metric.WithDescription("Route cache lookups, split by cache.hit"),
		metric.WithUnit("{lookup}"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRequest records one provider call.
func (m *ProviderMetrics) RecordRequest(provider, operation string, duration time.Duration, err error) {
	attrs := providerAttributes(provider, operation)
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	opt := metric.WithAttributes(attrs...)
	m.duration.Record(context.Background(), duration.Seconds(), opt)
	m.requests.Add(context.Background(), 1, opt)
}

func (m *ProviderMetrics) RecordCacheHit(provider, operation string) {
	m.recordLookup(provider, operation, true)
}

func (m *ProviderMetrics) RecordCacheMiss(provider, operation string) {
	m.recordLookup(provider, operation, false)
}

func (m *ProviderMetrics) recordLookup(provider, operation string, hit bool) {
	attrs := append(providerAttributes(provider, operation), attribute.Bool("cache.hit", hit))
	m.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func providerAttributes(provider, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}
}

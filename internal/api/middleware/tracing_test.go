package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/swasthyasetu/swasthyasetu/internal/api/middleware"
)

// recordSpans installs a recording tracer provider for the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

// onlySpan serves req and returns the one span it produced.
func onlySpan(t *testing.T, sr *tracetest.SpanRecorder, h http.Handler, req *http.Request) sdktrace.ReadOnlySpan {
	t.Helper()
	h.ServeHTTP(httptest.NewRecorder(), req)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_SpanPerRequest(t *testing.T) {
	sr := recordSpans(t)

	var inHandler trace.SpanContext
	handler := middleware.Tracing("swasthyasetu-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inHandler = trace.SpanContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	span := onlySpan(t, sr, handler, httptest.NewRequest(http.MethodGet, "/v1/facilities?kind=hospital", http.NoBody))

	assert.True(t, inHandler.IsValid())
	assert.Equal(t, span.SpanContext().SpanID(), inHandler.SpanID())
	assert.Equal(t, "GET /v1/facilities", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	a := attrs(span)
	assert.Equal(t, "swasthyasetu-test", a["service.name"].AsString())
	assert.Equal(t, "GET", a["http.request.method"].AsString())
	assert.Equal(t, "kind=hospital", a["url.query"].AsString())
	assert.Equal(t, "http", a["url.scheme"].AsString())
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	sr := recordSpans(t)
	handler := middleware.Tracing("swasthyasetu-test")(respond(http.StatusOK, ""))

	req := httptest.NewRequest(http.MethodPost, "/v1/emergency", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	span := onlySpan(t, sr, handler, req)

	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", span.Parent().SpanID().String())
}

func TestTracing_StatusFollowsResponse(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   codes.Code
	}{
		{"accepted", http.StatusAccepted, codes.Unset},
		{"client error", http.StatusConflict, codes.Unset},
		{"server error", http.StatusInternalServerError, codes.Error},
		{"provider down", http.StatusServiceUnavailable, codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := recordSpans(t)
			handler := middleware.Tracing("swasthyasetu-test")(respond(tt.status, "{}"))

			span := onlySpan(t, sr, handler, httptest.NewRequest(http.MethodPost, "/v1/emergency", http.NoBody))

			assert.Equal(t, int64(tt.status), attrs(span)["http.response.status_code"].AsInt64())
			assert.Equal(t, int64(2), attrs(span)["http.response.body.size"].AsInt64())
			assert.Equal(t, tt.code, span.Status().Code)
		})
	}
}

func TestTracing_RoutePatternAndClient(t *testing.T) {
	sr := recordSpans(t)
	r := chi.NewRouter()
	r.Use(middleware.Tracing("swasthyasetu-test"))
	r.Delete("/v1/notifications/{notificationId}", respond(http.StatusNoContent, ""))

	req := httptest.NewRequest(http.MethodDelete, "/v1/notifications/1740819600000", http.NoBody)
	req.Header.Set(middleware.ClientIDHeader, "kiosk-7")
	span := onlySpan(t, sr, r, req)

	a := attrs(span)
	assert.Equal(t, "DELETE /v1/notifications/{notificationId}", span.Name())
	assert.Equal(t, "/v1/notifications/{notificationId}", a["http.route"].AsString())
	assert.Equal(t, "/v1/notifications/1740819600000", a["url.path"].AsString())
	assert.Equal(t, "kiosk-7", a["client.id"].AsString())
	assert.NotContains(t, a, attribute.Key("url.query"))
}

func TestTracing_CarriesRequestID(t *testing.T) {
	sr := recordSpans(t)
	handler := middleware.RequestID(middleware.Tracing("swasthyasetu-test")(respond(http.StatusOK, "")))

	req := httptest.NewRequest(http.MethodGet, "/v1/profile", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "sos-kiosk-0042")
	span := onlySpan(t, sr, handler, req)

	assert.Equal(t, "sos-kiosk-0042", attrs(span)["request.id"].AsString())
}

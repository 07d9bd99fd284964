package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swasthyasetu/swasthyasetu/internal/api/middleware"
)

// syncBuffer is a log sink safe to read while a server goroutine writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWrappedWriters_SupportHijack(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	var hijackable, flushable bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, hijackable = w.(http.Hijacker)
		_, flushable = w.(http.Flusher)
		w.WriteHeader(http.StatusNoContent)
	})

	handler := middleware.Tracing("test")(metrics.Middleware()(middleware.Logger(zerolog.Nop())(inner)))

	req := httptest.NewRequest(http.MethodGet, "/v1/stream", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, hijackable)
	assert.True(t, flushable)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWrappedWriters_HijackFailsWithoutSupport(t *testing.T) {
	var hijackErr error
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _, hijackErr = w.(http.Hijacker).Hijack()
	})

	handler := middleware.Logger(zerolog.Nop())(inner)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	require.Error(t, hijackErr)
	assert.Contains(t, hijackErr.Error(), "does not implement http.Hijacker")
}

func TestLogger_HijackedConnectionLogsStreamClosed(t *testing.T) {
	var logs syncBuffer
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		_, _ = buf.WriteString("HTTP/1.1 101 Switching Protocols\r\nConnection: close\r\n\r\n")
		_ = buf.Flush()
		_ = conn.Close()
	})

	server := httptest.NewServer(middleware.Logger(zerolog.New(&logs))(inner))
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/stream")
	if err == nil {
		_ = resp.Body.Close()
	}

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "stream closed")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, logs.String(), `"status":101`)
}

func TestLogger_FirstStatusWins(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/emergency", http.NoBody))

	assert.Contains(t, buf.String(), `"status":202`)
	assert.Contains(t, buf.String(), `"level":"info"`)
}

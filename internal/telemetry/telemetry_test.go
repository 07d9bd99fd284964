package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/swasthyasetu/swasthyasetu/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "swasthyasetu-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "localhost:4317",
		Enabled:        false,
	})

	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer)
	assert.NotNil(t, provider.Meter)

	// Noop provider should have nil TracerProvider and MeterProvider
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)

	assert.NoError(t, provider.Shutdown(ctx))
}

func TestProvider_Shutdown_NilProviders(t *testing.T) {
	provider := &telemetry.Provider{}
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestResource_CarriesServiceAttributes(t *testing.T) {
	res, err := telemetry.Resource(context.Background(), telemetry.Config{
		ServiceName:    "swasthyasetu-api",
		ServiceVersion: "2.1.0",
		Environment:    "staging",
	})
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range res.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "swasthyasetu-api", attrs[string(semconv.ServiceNameKey)])
	assert.Equal(t, "2.1.0", attrs[string(semconv.ServiceVersionKey)])
	assert.Equal(t, "staging", attrs[string(semconv.DeploymentEnvironmentKey)])
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"default samples everything", 0, "AlwaysOnSampler"},
		{"full ratio samples everything", 1, "AlwaysOnSampler"},
		{"fractional ratio", 0.25, "TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := telemetry.Sampler(telemetry.Config{SampleRatio: tt.ratio})
			assert.Contains(t, s.Description(), tt.want)
			assert.Contains(t, s.Description(), "ParentBased")
		})
	}

	var _ sdktrace.Sampler = telemetry.Sampler(telemetry.Config{})
}

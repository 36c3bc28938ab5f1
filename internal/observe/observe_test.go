package observe

import (
	"context"
	"testing"

	"github.com/batchexplorer/tokencache/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestConfigure_Disabled(t *testing.T) {
	shutdown, err := Configure(context.Background(), config.ObserveConfig{
		Enabled: false,
		Type:    "grpc",
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_Stdout(t *testing.T) {
	shutdown, err := Configure(context.Background(), config.ObserveConfig{
		Enabled:                   true,
		MetricsEnabled:            true,
		Type:                      "stdout",
		ServiceName:               "tokencache-test",
		TraceBatchTimeoutSeconds:  1,
		MetricReadIntervalSeconds: 60,
	})
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_StdoutWithoutMetrics(t *testing.T) {
	prevMeter := otel.GetMeterProvider()

	shutdown, err := Configure(context.Background(), config.ObserveConfig{
		Enabled:                   true,
		MetricsEnabled:            false,
		Type:                      "stdout",
		ServiceName:               "tokencache-test",
		TraceBatchTimeoutSeconds:  1,
		MetricReadIntervalSeconds: 60,
	})
	require.NoError(t, err)

	assert.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	assert.Same(t, prevMeter, otel.GetMeterProvider())

	assert.NoError(t, shutdown(context.Background()))
}

func TestSDKLogger(t *testing.T) {
	tests := []struct {
		level   string
		enabled bool
	}{
		{level: "debug", enabled: true},
		{level: "info", enabled: true},
		{level: "", enabled: true},
		{level: "not-a-level", enabled: true},
		{level: "error", enabled: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := sdkLogger(tt.level)
			assert.Equal(t, tt.enabled, l.Enabled())
		})
	}
}

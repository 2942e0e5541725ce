package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_NoopWithoutEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), Options{ServiceName: "leveler"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, before, otel.GetTracerProvider())
}

func TestSetup_WithEndpoint(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// Non-routable address; nothing is exported because no span is ended.
	shutdown, err := Setup(context.Background(), Options{
		Endpoint:       "http://192.0.2.1:4318",
		ServiceName:    "leveler",
		ServiceVersion: "test",
		SampleRatio:    0.5,
	})
	require.NoError(t, err)
	require.NotEqual(t, before, otel.GetTracerProvider())
	require.NoError(t, shutdown(context.Background()))
}

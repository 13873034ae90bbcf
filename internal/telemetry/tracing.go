package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	serviceName = "mobilectl"

	EndpointEnvVar       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	TracesEndpointEnvVar = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
)

// InitTracing installs a global tracer provider exporting over OTLP/gRPC when
// an OTLP endpoint is configured in the environment. Without one the global
// no-op provider stays in place. The returned shutdown flushes pending spans.
func InitTracing(ctx context.Context, serviceVersion string, lookupEnv func(string) (string, bool)) (func(context.Context) error, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if !endpointConfigured(lookupEnv) {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing: create exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", serviceVersion),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

func endpointConfigured(lookupEnv func(string) (string, bool)) bool {
	for _, name := range []string{EndpointEnvVar, TracesEndpointEnvVar} {
		if value, ok := lookupEnv(name); ok && strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

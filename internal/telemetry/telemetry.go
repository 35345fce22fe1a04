// Package telemetry configures OpenTelemetry tracing for navex.
//
// The engine and the navigation expander start spans through the global
// tracer provider ("navex.execute", "navex.expand"). Setup installs an
// OTLP/gRPC exporter behind that provider; without an endpoint the global
// no-op provider stays in place.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultService is the service name reported when none is configured.
const DefaultService = "navex"

// Setup configures the global tracer provider to export spans to the
// OTLP collector at endpoint. If endpoint is empty, no telemetry is
// configured and the returned shutdown func does nothing.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if service == "" {
		service = DefaultService
	}

	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

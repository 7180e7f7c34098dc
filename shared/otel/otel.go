// Package otel provides OpenTelemetry SDK initialization and trace-context
// propagation over the realtime envelope.
package otel

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	ServiceName string
	Environment string
	// Writer receives exported spans; nil discards them.
	Writer io.Writer
}

// Init installs a tracer provider exporting to cfg.Writer. Returns a
// shutdown function that flushes pending spans.
func Init(cfg Config) (func(context.Context) error, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	w := cfg.Writer
	if w == nil {
		w = io.Discard
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Tracer returns a tracer for the given instrumentation name.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// TraceContext holds W3C trace context carried on realtime envelopes.
type TraceContext struct {
	TraceID    string
	SpanID     string
	TraceFlags byte
}

// Inject extracts span info from ctx into a TraceContext for the wire.
func Inject(ctx context.Context) TraceContext {
	var tc TraceContext
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
		tc.TraceFlags = byte(sc.TraceFlags())
	}
	return tc
}

// Extract creates a context carrying the remote span info from tc.
func Extract(ctx context.Context, tc TraceContext) context.Context {
	if tc.TraceID == "" || tc.SpanID == "" {
		return ctx
	}
	flags := "00"
	if tc.TraceFlags&0x01 != 0 {
		flags = "01"
	}
	carrier := propagation.MapCarrier{
		"traceparent": fmt.Sprintf("00-%s-%s-%s", tc.TraceID, tc.SpanID, flags),
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

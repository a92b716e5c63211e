package telemetry_test

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/samirrijal/etxebila/internal/pkg/telemetry"
)

func TestNewProvider_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := telemetry.NewProvider("etxebila-test", sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), telemetry.SpanPlan)
	if telemetry.TraceID(ctx) == "" {
		t.Error("expected a trace id inside the span")
	}
	span.End()

	ended := rec.Ended()
	if len(ended) != 1 || ended[0].Name() != telemetry.SpanPlan {
		t.Fatalf("unexpected spans %+v", ended)
	}
	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	if service != "etxebila-test" {
		t.Errorf("expected service.name etxebila-test, got %q", service)
	}
}

func TestTraceID_Empty(t *testing.T) {
	if id := telemetry.TraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace id, got %q", id)
	}
}

package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func recorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	spanRecorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return spanRecorder
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartDBSpan_NamesAndAttributes(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"map area lookup", "map_areas", DBOperationQuery, "query map_areas"},
		{"boundary replace", "boundaries", DBOperationUpdate, "update boundaries"},
		{"annotation insert", "annotations", DBOperationInsert, "insert annotations"},
		{"cleanup sweep", "idempotency_keys", DBOperationDelete, "delete idempotency_keys"},
		{"bare exec", "", DBOperationExec, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spanRecorder := recorder(t)

			_, end := StartDBSpan(context.Background(), tt.table, tt.operation)
			end(nil)

			spans := spanRecorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}
			if span.SpanKind() != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", span.SpanKind())
			}
			if v, ok := attrValue(span, "db.system"); !ok || v.AsString() != "postgresql" {
				t.Errorf("db.system = %v, want postgresql", v.AsString())
			}
			if v, ok := attrValue(span, "db.sql.table"); tt.table != "" && (!ok || v.AsString() != tt.table) {
				t.Errorf("db.sql.table = %v, want %q", v.AsString(), tt.table)
			}
		})
	}
}

func TestStartDBSpan_RecordsError(t *testing.T) {
	spanRecorder := recorder(t)

	_, end := StartDBSpan(context.Background(), "map_areas", DBOperationQuery)
	end(errors.New("connection reset"))

	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Errorf("status = %v, want error", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestStartSpan(t *testing.T) {
	spanRecorder := recorder(t)

	ctx, end := StartSpan(context.Background(), "containment check")
	SetAttributes(ctx, attribute.Int64("mapnest.map_area_id", 3))
	AddEvent(ctx, "ring validated", attribute.Int("mapnest.vertices", 5))
	end(nil)

	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "containment check" {
		t.Errorf("span name = %q, want containment check", span.Name())
	}
	if v, ok := attrValue(span, "mapnest.map_area_id"); !ok || v.AsInt64() != 3 {
		t.Errorf("mapnest.map_area_id = %v, want 3", v)
	}
	if len(span.Events()) != 1 || span.Events()[0].Name != "ring validated" {
		t.Errorf("events = %+v, want one ring validated event", span.Events())
	}
}

func TestStartSpan_RecordsError(t *testing.T) {
	spanRecorder := recorder(t)

	_, end := StartSpan(context.Background(), "export map_area")
	end(errors.New("degenerate boundary"))

	spans := spanRecorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want error", spans[0].Status().Code)
	}
}

func TestSpanHelpers_NoopWithoutSpan(t *testing.T) {
	// Must not panic against the background context.
	AddEvent(context.Background(), "orphan event")
	SetAttributes(context.Background(), attribute.Bool("mapnest.ignored", true))
}

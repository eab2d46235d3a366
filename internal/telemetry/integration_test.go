package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// A span started inside a handler must join the request span created by otelmux,
// which in turn continues an incoming traceparent.
func TestHandlerSpansJoinRequestTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := mux.NewRouter()
	r.Use(otelmux.Middleware(ServerServiceName))
	r.HandleFunc("/api/v1/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		_, span := otel.Tracer("assistant-chat/chat").Start(r.Context(), "chat.stream_turn")
		span.End()
		w.WriteHeader(http.StatusOK)
	}).Methods("POST")

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("POST", "/api/v1/conversations/abc/messages", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status OK, got %d", rr.Code)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}

	var turn, request tracetest.SpanStub
	for _, s := range spans {
		if s.Name == "chat.stream_turn" {
			turn = s
		} else {
			request = s
		}
	}
	if turn.SpanContext.TraceID().String() != traceID {
		t.Errorf("turn span trace = %s, want %s", turn.SpanContext.TraceID(), traceID)
	}
	if turn.Parent.SpanID() != request.SpanContext.SpanID() {
		t.Error("turn span is not a child of the request span")
	}
}

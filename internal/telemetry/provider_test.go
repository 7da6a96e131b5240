package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestWithHTTPRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/orders/{id}", WithHTTPRoute(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/42", nil)
	ctx, span := tp.Tracer("test").Start(req.Context(), "request")
	mux.ServeHTTP(httptest.NewRecorder(), req.WithContext(ctx))
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if got := spans[0].Name(); got != "GET /api/v1/orders/{id}" {
		t.Errorf("span name = %q, want the route pattern", got)
	}
	want := semconv.HTTPRoute("GET /api/v1/orders/{id}")
	for _, attr := range spans[0].Attributes() {
		if attr == want {
			return
		}
	}
	t.Errorf("http.route not set: %v", spans[0].Attributes())
}

func TestNewHandlerNamesSpansByRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/products/{id}", WithHTTPRoute(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := NewHandler(mux, "marketplace-api")

	for _, path := range []string{"/api/v1/products/a1", "/api/v1/products/b2", "/nope/c3"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	names := []string{spans[0].Name(), spans[1].Name(), spans[2].Name()}
	want := []string{"GET /api/v1/products/{id}", "GET /api/v1/products/{id}", "GET"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("span %d name = %q, want %q", i, names[i], want[i])
		}
	}
}

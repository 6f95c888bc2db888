package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestTelemetry swaps the global tracer provider for an in-memory one.
// Tests using it must not run in parallel.
func installTestTelemetry(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return m, reader, exp
}

// adminMux mimics the brain admin routes.
func adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("POST /api/tts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func TestMiddleware_CorrelationHeader(t *testing.T) {
	m, _, _ := installTestTelemetry(t)
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if len(seen) != 32 {
		t.Fatalf("correlation id = %q, want 32 hex chars", seen)
	}
	if got := rec.Header().Get(CorrelationHeader); got != seen {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, seen)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	m, _, _ := installTestTelemetry(t)
	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/tts", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != traceID {
		t.Errorf("correlation id = %q, want %q", seen, traceID)
	}
	if got := rec.Header().Get(CorrelationHeader); got != traceID {
		t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
	}
}

func TestMiddleware_SpanAttributes(t *testing.T) {
	m, _, exp := installTestTelemetry(t)
	h := Middleware(m)(adminMux())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "HTTP GET")
	}
	attrs := map[string]string{}
	for _, a := range spans[0].Attributes {
		attrs[string(a.Key)] = a.Value.Emit()
	}
	if attrs["http.response.status_code"] != "503" {
		t.Errorf("status attribute = %q, want 503", attrs["http.response.status_code"])
	}
	if attrs["http.route"] != "GET /readyz" {
		t.Errorf("route attribute = %q, want %q", attrs["http.route"], "GET /readyz")
	}
}

func TestMiddleware_RecordsDurationByRoute(t *testing.T) {
	m, reader, _ := installTestTelemetry(t)
	h := Middleware(m)(adminMux())

	for _, path := range []string{"/api/tts", "/does/not/exist"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, nil))
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "voxbridge.http.request.duration")
	if met == nil {
		t.Fatal("duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric data = %T, want histogram", met.Data)
	}

	routes := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		if v, ok := dp.Attributes.Value("route"); ok {
			routes[v.AsString()] += dp.Count
		}
	}
	if routes["POST /api/tts"] != 1 {
		t.Errorf("routes = %v, want one POST /api/tts sample", routes)
	}
	if routes["unmatched"] != 1 {
		t.Errorf("routes = %v, want one unmatched sample", routes)
	}
	if _, raw := routes["/does/not/exist"]; raw {
		t.Error("raw path leaked into the route label")
	}
}

func TestMiddleware_NilMetrics(t *testing.T) {
	installTestTelemetry(t)
	h := Middleware(nil)(adminMux())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/tts", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

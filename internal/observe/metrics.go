// Package observe provides the observability primitives shared by the edge,
// brain and TTS binaries: OpenTelemetry metrics, tracing helpers, structured
// logging and HTTP middleware.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported in
// Prometheus format by [InitProvider]; [Handler] serves them on /metrics. A
// package-level [DefaultMetrics] instance is available for wiring; tests
// should use [NewMetrics] with their own [metric.MeterProvider].
package observe

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every voxbridge metric.
const meterName = "github.com/MrWong99/voxbridge"

// Metrics holds the metric instruments of the pipeline. The underlying OTel
// types are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms --------------------------------------------------

	// SessionDuration tracks stream-accept to response-complete time on the
	// brain. Attribute: outcome.
	SessionDuration metric.Float64Histogram

	// STTDuration tracks the wait for a transcript after half-close.
	STTDuration metric.Float64Histogram

	// SkillDuration tracks skill execution. Attribute: skill.
	SkillDuration metric.Float64Histogram

	// TTSDuration tracks synthesis plus playback.
	TTSDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP handlers. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ------------------------------------------------------------

	// Sessions counts finished brain sessions. Attribute: outcome.
	Sessions metric.Int64Counter

	// Intents counts routed transcripts. Attribute: skill.
	Intents metric.Int64Counter

	// Errors counts classified failures. Attributes: kind, op.
	Errors metric.Int64Counter

	// Utterances counts edge capture attempts. Attribute: outcome
	// (streamed, abandoned, transport_error).
	Utterances metric.Int64Counter

	// DeviceRetries counts capture device reopen attempts.
	DeviceRetries metric.Int64Counter

	// ProviderRequests counts external provider calls. Attributes: provider,
	// kind, status.
	ProviderRequests metric.Int64Counter

	// --- Gauges --------------------------------------------------------------

	// ActiveSessions tracks sessions holding a dispatcher slot.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries in seconds, sized for spoken
// command round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.SessionDuration, "voxbridge.session.duration", "Brain session duration from stream accept to response."},
		{&met.STTDuration, "voxbridge.stt.duration", "Latency of the final transcript after half-close."},
		{&met.SkillDuration, "voxbridge.skill.duration", "Latency of skill execution."},
		{&met.TTSDuration, "voxbridge.tts.duration", "Latency of synthesis and playback."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxbridge.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.Sessions, "voxbridge.sessions", "Finished brain sessions by outcome."},
		{&met.Intents, "voxbridge.intents", "Routed transcripts by skill."},
		{&met.Errors, "voxbridge.errors", "Classified failures by kind and operation."},
		{&met.Utterances, "voxbridge.edge.utterances", "Edge capture attempts by outcome."},
		{&met.DeviceRetries, "voxbridge.edge.device_retries", "Capture device reopen attempts."},
		{&met.ProviderRequests, "voxbridge.provider.requests", "External provider calls by provider, kind and status."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voxbridge.active_sessions",
		metric.WithDescription("Sessions currently holding a dispatcher slot."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Handler serves the Prometheus registry populated by [InitProvider].
func Handler() http.Handler {
	return promhttp.Handler()
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSession records a finished session and its duration.
func (m *Metrics) RecordSession(ctx context.Context, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.Sessions.Add(ctx, 1, attrs)
	m.SessionDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordIntent counts one routed transcript.
func (m *Metrics) RecordIntent(ctx context.Context, skill string) {
	m.Intents.Add(ctx, 1, metric.WithAttributes(attribute.String("skill", skill)))
}

// RecordSkill records the latency of one skill execution.
func (m *Metrics) RecordSkill(ctx context.Context, skill string, d time.Duration) {
	m.SkillDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("skill", skill)))
}

// RecordError counts one classified failure.
func (m *Metrics) RecordError(ctx context.Context, kind, op string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("op", op),
	))
}

// RecordUtterance counts one edge capture attempt.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDeviceRetry counts one capture device reopen attempt.
func (m *Metrics) RecordDeviceRetry(ctx context.Context) {
	m.DeviceRetries.Add(ctx, 1)
}

// RecordProviderRequest counts one provider call.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordSTT records the wait for a final transcript.
func (m *Metrics) RecordSTT(ctx context.Context, d time.Duration) {
	m.STTDuration.Record(ctx, d.Seconds())
}

// RecordTTS records synthesis plus playback of one response.
func (m *Metrics) RecordTTS(ctx context.Context, d time.Duration) {
	m.TTSDuration.Record(ctx, d.Seconds())
}

// AddActiveSessions moves the active session gauge by delta.
func (m *Metrics) AddActiveSessions(ctx context.Context, delta int64) {
	m.ActiveSessions.Add(ctx, delta)
}

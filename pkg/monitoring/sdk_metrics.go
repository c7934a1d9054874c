package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var requestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// SDKMetrics holds the instruments recorded by the SDK.
// A nil *SDKMetrics records nothing.
type SDKMetrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	polls           metric.Int64Counter
	statusChanges   metric.Int64Counter
	waits           metric.Int64Counter
	realtimeEvents  metric.Int64Counter
	reconnects      metric.Int64Counter
}

// NewSDKMetrics creates the SDK instruments on meter.
func NewSDKMetrics(meter metric.Meter) (*SDKMetrics, error) {
	if meter == nil {
		return &SDKMetrics{}, nil
	}
	m := &SDKMetrics{}
	var err error
	if m.requests, err = counter(meter, "http_requests_total", "HTTP requests sent to the Kadoa API"); err != nil {
		return nil, err
	}
	m.requestDuration, err = meter.Float64Histogram(
		metricName("http_request_duration_seconds"),
		metric.WithDescription("Latency of HTTP requests to the Kadoa API"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create request duration histogram: %w", err)
	}
	if m.polls, err = counter(meter, "polls_total", "Status polls issued while waiting"); err != nil {
		return nil, err
	}
	if m.statusChanges, err = counter(meter, "status_changes_total", "Observed workflow status changes"); err != nil {
		return nil, err
	}
	if m.waits, err = counter(meter, "waits_total", "Completed waits grouped by outcome"); err != nil {
		return nil, err
	}
	if m.realtimeEvents, err = counter(meter, "realtime_events_total", "Realtime frames received"); err != nil {
		return nil, err
	}
	if m.reconnects, err = counter(meter, "realtime_reconnects_total", "Realtime reconnect attempts"); err != nil {
		return nil, err
	}
	return m, nil
}

func metricName(name string) string {
	return "kadoa_sdk_" + name
}

func counter(meter metric.Meter, name, description string) (metric.Int64Counter, error) {
	c, err := meter.Int64Counter(
		metricName(name),
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s counter: %w", name, err)
	}
	return c, nil
}

// StatusClass buckets an HTTP status into 2xx, 4xx, 5xx or "error" when no response arrived.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}

// RecordRequest records a finished HTTP request.
func (m *SDKMetrics) RecordRequest(ctx context.Context, method string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status_class", StatusClass(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordPoll counts one status poll of the given kind (workflow, job, validation).
func (m *SDKMetrics) RecordPoll(ctx context.Context, kind string) {
	if m == nil || m.polls == nil {
		return
	}
	m.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordStatusChange counts an emitted status change.
func (m *SDKMetrics) RecordStatusChange(ctx context.Context, runState string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	if runState == "" {
		runState = "none"
	}
	m.statusChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("run_state", runState)))
}

// RecordWait counts a finished wait with its outcome.
func (m *SDKMetrics) RecordWait(ctx context.Context, kind, outcome string) {
	if m == nil || m.waits == nil {
		return
	}
	m.waits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// RecordRealtimeEvent counts a realtime frame by type.
func (m *SDKMetrics) RecordRealtimeEvent(ctx context.Context, eventType string) {
	if m == nil || m.realtimeEvents == nil {
		return
	}
	m.realtimeEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

// RecordReconnect counts a realtime reconnect attempt.
func (m *SDKMetrics) RecordReconnect(ctx context.Context) {
	if m == nil || m.reconnects == nil {
		return
	}
	m.reconnects.Add(ctx, 1)
}

// Package telemetry wires the OpenTelemetry metrics pipeline. When no OTLP
// endpoint is configured the instruments fall back to the API no-op provider
// so call sites never branch on whether telemetry is enabled.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/coachpo/hyperwatch"

// Config controls exporter construction.
type Config struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// Init builds the meter provider and registers it globally. The returned
// shutdown function flushes pending exports; it is a no-op when no endpoint is
// configured.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "hyperwatch"
	}
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// Metrics bundles the instruments recorded across the poll and dispatch paths.
type Metrics struct {
	fillsApplied    metric.Int64Counter
	fetchFailures   metric.Int64Counter
	snapshotsTaken  metric.Int64Counter
	notificationsOK metric.Int64Counter
	rateLimitWaits  metric.Int64Counter
	queueDropped    metric.Int64Counter
	queueDepth      metric.Int64UpDownCounter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := new(Metrics)
	var err error
	if m.fillsApplied, err = meter.Int64Counter("hyperwatch.fills.applied",
		metric.WithDescription("Fill events applied to the ledger")); err != nil {
		return nil, err
	}
	if m.fetchFailures, err = meter.Int64Counter("hyperwatch.fetch.failures",
		metric.WithDescription("Failed exchange fetches, by stage")); err != nil {
		return nil, err
	}
	if m.snapshotsTaken, err = meter.Int64Counter("hyperwatch.snapshots.applied",
		metric.WithDescription("Authoritative position snapshots applied")); err != nil {
		return nil, err
	}
	if m.notificationsOK, err = meter.Int64Counter("hyperwatch.notifications.sent",
		metric.WithDescription("Notifications delivered")); err != nil {
		return nil, err
	}
	if m.rateLimitWaits, err = meter.Int64Counter("hyperwatch.ratelimit.retries",
		metric.WithDescription("Send retries after a rate-limit response")); err != nil {
		return nil, err
	}
	if m.queueDropped, err = meter.Int64Counter("hyperwatch.queue.dropped",
		metric.WithDescription("Notification items dropped because the queue was full")); err != nil {
		return nil, err
	}
	if m.queueDepth, err = meter.Int64UpDownCounter("hyperwatch.queue.depth",
		metric.WithDescription("Items currently queued for dispatch")); err != nil {
		return nil, err
	}
	return m, nil
}

// FillsApplied records fills folded into a trader's ledger.
func (m *Metrics) FillsApplied(ctx context.Context, n int, coin string) {
	if m == nil {
		return
	}
	m.fillsApplied.Add(ctx, int64(n), metric.WithAttributes(attribute.String("coin", coin)))
}

// FetchFailure records a failed exchange call for the named stage.
func (m *Metrics) FetchFailure(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.fetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// SnapshotApplied records an authoritative snapshot correction.
func (m *Metrics) SnapshotApplied(ctx context.Context) {
	if m == nil {
		return
	}
	m.snapshotsTaken.Add(ctx, 1)
}

// NotificationSent records a delivered notification.
func (m *Metrics) NotificationSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.notificationsOK.Add(ctx, 1)
}

// RateLimitRetry records a retry triggered by a rate-limit response.
func (m *Metrics) RateLimitRetry(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimitWaits.Add(ctx, 1)
}

// QueueDropped records an item discarded because the dispatch queue was full.
func (m *Metrics) QueueDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.queueDropped.Add(ctx, 1)
}

// QueueDelta adjusts the observed dispatch queue depth.
func (m *Metrics) QueueDelta(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(ctx, delta)
}

package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Route quoting metrics
	QuoteDuration metric.Float64Histogram
	QuoteCalls    metric.Int64Counter

	// Swap execution metrics
	SwapsSubmitted metric.Int64Counter
	SwapDuration   metric.Float64Histogram
	TxSubmitted    metric.Int64Counter

	// Strategy metrics
	TickDuration metric.Float64Histogram
	TicksTotal   metric.Int64Counter

	// Order lifecycle metrics
	OrdersTotal  metric.Int64Counter
	OrderRetries metric.Int64Counter

	// RPC endpoint metrics
	RPCEndpointHealth metric.Int64Gauge
	RPCConnected      metric.Int64Gauge

	// Retry metrics
	RetryAttempts metric.Int64Counter

	// Cache metrics
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter

	// Error metrics
	Errors metric.Int64Counter

	// Prometheus exporter for HTTP handler
	exporter *prometheus.Exporter
}

// NewMetrics creates a new Metrics instance
func NewMetrics(serviceName string, enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	// Create resource
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	// Create meter provider
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	// Get meter
	meter := provider.Meter(serviceName)

	m := &Metrics{
		meter:    meter,
		exporter: exporter,
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// initMetrics initializes all metric instruments
func (m *Metrics) initMetrics() error {
	var err error

	m.QuoteDuration, err = m.meter.Float64Histogram(
		"trader.quote.duration",
		metric.WithDescription("Route search duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.QuoteCalls, err = m.meter.Int64Counter(
		"trader.quote.calls",
		metric.WithDescription("Total route search calls"),
	)
	if err != nil {
		return err
	}

	m.SwapsSubmitted, err = m.meter.Int64Counter(
		"trader.swaps.submitted",
		metric.WithDescription("Total swap transactions submitted"),
	)
	if err != nil {
		return err
	}

	m.SwapDuration, err = m.meter.Float64Histogram(
		"trader.swap.duration",
		metric.WithDescription("Swap build-and-submit duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.TxSubmitted, err = m.meter.Int64Counter(
		"trader.tx.submitted",
		metric.WithDescription("Total signed transactions sent to the chain"),
	)
	if err != nil {
		return err
	}

	m.TickDuration, err = m.meter.Float64Histogram(
		"trader.strategy.tick.duration",
		metric.WithDescription("Strategy tick duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	m.TicksTotal, err = m.meter.Int64Counter(
		"trader.strategy.ticks",
		metric.WithDescription("Total strategy ticks executed"),
	)
	if err != nil {
		return err
	}

	m.OrdersTotal, err = m.meter.Int64Counter(
		"trader.orders",
		metric.WithDescription("Orders by strategy and final status"),
	)
	if err != nil {
		return err
	}

	m.OrderRetries, err = m.meter.Int64Counter(
		"trader.order.retries",
		metric.WithDescription("Order submission retries"),
	)
	if err != nil {
		return err
	}

	m.RPCEndpointHealth, err = m.meter.Int64Gauge(
		"trader.rpc.endpoint.health",
		metric.WithDescription("RPC endpoint health status (1=healthy, 0=unhealthy)"),
	)
	if err != nil {
		return err
	}

	m.RPCConnected, err = m.meter.Int64Gauge(
		"trader.rpc.connected",
		metric.WithDescription("Aggregate RPC connectivity (1=connected, 0=disconnected)"),
	)
	if err != nil {
		return err
	}

	m.RetryAttempts, err = m.meter.Int64Counter(
		"trader.retry.attempts",
		metric.WithDescription("Total retry attempts across operations"),
	)
	if err != nil {
		return err
	}

	m.CacheHits, err = m.meter.Int64Counter(
		"trader.cache.hits",
		metric.WithDescription("Total cache hits"),
	)
	if err != nil {
		return err
	}

	m.CacheMisses, err = m.meter.Int64Counter(
		"trader.cache.misses",
		metric.WithDescription("Total cache misses"),
	)
	if err != nil {
		return err
	}

	m.Errors, err = m.meter.Int64Counter(
		"trader.errors",
		metric.WithDescription("Total errors encountered"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordQuote records one route search
func (m *Metrics) RecordQuote(ctx context.Context, duration time.Duration, found bool) {
	if m.QuoteCalls == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Bool("found", found)}
	m.QuoteCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.QuoteDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordSwap records a swap submission attempt
func (m *Metrics) RecordSwap(ctx context.Context, routeKind string, success bool, duration time.Duration) {
	if m.SwapsSubmitted == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("route", routeKind),
		attribute.Bool("success", success),
	}
	m.SwapsSubmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.SwapDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordTxSubmitted records one signed transaction sent to the chain
func (m *Metrics) RecordTxSubmitted(ctx context.Context) {
	if m.TxSubmitted == nil {
		return
	}
	m.TxSubmitted.Add(ctx, 1)
}

// RecordTick records one strategy tick
func (m *Metrics) RecordTick(ctx context.Context, strategy string, duration time.Duration) {
	if m.TicksTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("strategy", strategy)}
	m.TicksTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.TickDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordOrder records an order reaching a terminal status
func (m *Metrics) RecordOrder(ctx context.Context, strategy, status string) {
	if m.OrdersTotal == nil {
		return
	}
	m.OrdersTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("status", status),
	))
}

// RecordOrderRetry records one order resubmission
func (m *Metrics) RecordOrderRetry(ctx context.Context, strategy string) {
	if m.OrderRetries == nil {
		return
	}
	m.OrderRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordRPCEndpointHealth records RPC endpoint health status
func (m *Metrics) RecordRPCEndpointHealth(ctx context.Context, url string, healthy bool) {
	if m.RPCEndpointHealth == nil {
		return
	}
	val := int64(0)
	if healthy {
		val = 1
	}
	m.RPCEndpointHealth.Record(ctx, val, metric.WithAttributes(
		attribute.String("url", url),
	))
}

// SetConnected sets the aggregate RPC connectivity gauge
func (m *Metrics) SetConnected(ctx context.Context, connected bool) {
	if m.RPCConnected == nil {
		return
	}
	val := int64(0)
	if connected {
		val = 1
	}
	m.RPCConnected.Record(ctx, val)
}

// RecordRetry records one retry attempt for an operation
func (m *Metrics) RecordRetry(ctx context.Context, operation string) {
	if m.RetryAttempts == nil {
		return
	}
	m.RetryAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(ctx context.Context, layer string) {
	if m.CacheHits == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(ctx context.Context, layer string) {
	if m.CacheMisses == nil {
		return
	}
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("layer", layer)))
}

// RecordError records an error
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	if m.Errors == nil {
		return
	}
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", errorType)))
}

// Handler returns the HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	// The OpenTelemetry Prometheus exporter registers with the default
	// Prometheus registry
	return promhttp.Handler()
}

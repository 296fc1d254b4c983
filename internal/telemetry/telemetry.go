// Package telemetry exports Prometheus metrics and tracing spans for discovery runs.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	serviceName = "entity-discovery"
	namespace   = "entity_discovery"
)

// Outcome labels.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
)

// Metrics holds the discovery Prometheus collectors.
type Metrics struct {
	Items             *prometheus.CounterVec
	Pages             *prometheus.CounterVec
	Enrichment        *prometheus.CounterVec
	SourceAvailable   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

// Provider bundles metrics, the tracer and the registry they were registered on.
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewProvider registers metrics on the default Prometheus registry.
func NewProvider() *Provider {
	return NewProviderWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewProviderWithRegistry registers metrics on reg, which lets tests use a private registry.
func NewProviderWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Provider {
	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		gatherer: gatherer,
	}
}

// NewIsolatedProvider registers metrics on a private registry nobody scrapes.
func NewIsolatedProvider() *Provider {
	reg := prometheus.NewRegistry()
	return NewProviderWithRegistry(reg, reg)
}

func initMetrics(factory promauto.Factory) *Metrics {
	return &Metrics{
		Items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Discovered items reconciled during populate, by content type and outcome",
		}, []string{"type_slug", "outcome"}),
		Pages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_crawled_total",
			Help:      "Live pages processed by the deep crawler, by outcome",
		}, []string{"outcome"}),
		Enrichment: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_enrichment_total",
			Help:      "AI content type enrichment attempts, by outcome",
		}, []string{"outcome"}),
		SourceAvailable: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_checks_total",
			Help:      "Discovery source checks, by source and availability",
		}, []string{"source", "available"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of discover, populate and crawl operations",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180, 600, 1800},
		}, []string{"operation"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// StartSpan starts a span named name under ctx.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordItem counts one populate reconciliation outcome.
func (p *Provider) RecordItem(typeSlug, outcome string) {
	p.Metrics.Items.WithLabelValues(typeSlug, outcome).Inc()
}

// RecordPage counts one deep crawl outcome.
func (p *Provider) RecordPage(outcome string) {
	p.Metrics.Pages.WithLabelValues(outcome).Inc()
}

// RecordEnrichment counts one AI enrichment attempt.
func (p *Provider) RecordEnrichment(outcome string) {
	p.Metrics.Enrichment.WithLabelValues(outcome).Inc()
}

// RecordSource counts whether a discovery source answered.
func (p *Provider) RecordSource(source string, available bool) {
	label := "false"
	if available {
		label = "true"
	}
	p.Metrics.SourceAvailable.WithLabelValues(source, label).Inc()
}

// ObserveOperation records how long an operation took, in seconds.
func (p *Provider) ObserveOperation(operation string, seconds float64) {
	p.Metrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

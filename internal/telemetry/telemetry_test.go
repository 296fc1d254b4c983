package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/telemetry"
)

func newProvider() *telemetry.Provider {
	reg := prometheus.NewRegistry()
	return telemetry.NewProviderWithRegistry(reg, reg)
}

func TestProvider_Counters(t *testing.T) {
	t.Parallel()

	p := newProvider()
	p.RecordItem("posts", telemetry.OutcomeCreated)
	p.RecordItem("posts", telemetry.OutcomeCreated)
	p.RecordItem("posts", telemetry.OutcomeUpdated)
	p.RecordPage(telemetry.OutcomeFailed)
	p.RecordEnrichment(telemetry.OutcomeApplied)
	p.RecordSource("sitemap", true)

	assert.InDelta(t, 2, testutil.ToFloat64(p.Metrics.Items.WithLabelValues("posts", telemetry.OutcomeCreated)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.Items.WithLabelValues("posts", telemetry.OutcomeUpdated)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.Pages.WithLabelValues(telemetry.OutcomeFailed)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(p.Metrics.SourceAvailable.WithLabelValues("sitemap", "true")), 0)
}

func TestProvider_Handler(t *testing.T) {
	t.Parallel()

	p := newProvider()
	p.ObserveOperation("discover", 1.5)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entity_discovery_operation_duration_seconds")
}

func TestProvider_StartSpan(t *testing.T) {
	t.Parallel()

	ctx, span := newProvider().StartSpan(context.Background(), "discover")
	defer span.End()
	assert.NotNil(t, ctx)
}

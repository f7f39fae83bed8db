package metrics_test

import (
	"testing"
	"time"

	"github.com/fivetwenty-io/strapi-client/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTP(t *testing.T) {
	t.Parallel()

	counter := metrics.HTTPRequestsCounter().WithLabelValues("PATCH", "418")
	before := testutil.ToFloat64(counter)

	metrics.ObserveHTTP("PATCH", 418, 10*time.Millisecond)

	assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0)

	failed := metrics.HTTPRequestsCounter().WithLabelValues("PATCH", "error")
	before = testutil.ToFloat64(failed)

	metrics.ObserveHTTP("PATCH", 0, time.Millisecond)

	assert.InDelta(t, before+1, testutil.ToFloat64(failed), 0)
}

func TestEntity(t *testing.T) {
	t.Parallel()

	counter := metrics.EntitiesCounter().WithLabelValues(metrics.DirectionImport, "api::metrics-test.metrics-test", metrics.ResultFailure)

	metrics.Entity(metrics.DirectionImport, "api::metrics-test.metrics-test", metrics.ResultFailure)
	metrics.Entity(metrics.DirectionImport, "api::metrics-test.metrics-test", metrics.ResultFailure)

	assert.InDelta(t, 2.0, testutil.ToFloat64(counter), 0)
	assert.NotPanics(t, func() { metrics.Media(metrics.DirectionExport, metrics.ResultSuccess) })
}

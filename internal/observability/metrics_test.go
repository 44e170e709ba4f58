package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepoint-intel/internal/domain"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics("test", reg), reg
}

// value reads the current value of a counter or gauge.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func TestRecordAnomalies(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordAnomalies([]domain.AnomalyFlag{
		{Type: domain.AnomalyPriceSpike, Severity: domain.SeverityCritical},
		{Type: domain.AnomalyPriceSpike, Severity: domain.SeverityCritical},
		{Type: domain.AnomalyPriceDrop, Severity: domain.SeverityMedium},
	})

	assert.Equal(t, 2.0, value(t, m.AnomaliesDetected.WithLabelValues("price_spike", "critical")))
	assert.Equal(t, 1.0, value(t, m.AnomaliesDetected.WithLabelValues("price_drop", "medium")))
}

func TestRecordImport(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordImport("observation", "csv", 8, 2)

	assert.Equal(t, 8.0, value(t, m.RecordsImported.WithLabelValues("observation", "csv")))
	assert.Equal(t, 2.0, value(t, m.RecordsRejected.WithLabelValues("observation")))
	assert.Greater(t, value(t, m.LastSuccessfulIngestion), 0.0)
}

func TestRecordPipelineRun(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordPipelineRun(nil, time.Second)
	m.RecordPipelineRun(errors.New("boom"), time.Second)

	assert.Equal(t, 1.0, value(t, m.PipelineRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, value(t, m.PipelineRunsTotal.WithLabelValues("failure")))
}

func TestHandlerFor(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.BenchmarksCreated.Add(3)

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "test_analysis_benchmarks_created_total 3"))
}

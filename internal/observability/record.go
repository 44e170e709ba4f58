package observability

import (
	"strconv"
	"time"

	"pricepoint-intel/internal/domain"
)

// RecordImport records accepted and rejected records for one import.
func (m *Metrics) RecordImport(kind, source string, accepted, rejected int) {
	m.RecordsImported.WithLabelValues(kind, source).Add(float64(accepted))
	m.RecordsRejected.WithLabelValues(kind).Add(float64(rejected))
	if accepted > 0 {
		m.LastSuccessfulIngestion.SetToCurrentTime()
	}
}

// RecordAnomalies counts flags by type and severity.
func (m *Metrics) RecordAnomalies(flags []domain.AnomalyFlag) {
	for _, f := range flags {
		m.AnomaliesDetected.WithLabelValues(f.Type.String(), f.Severity.String()).Inc()
	}
}

// RecordCoverageGaps counts gaps by severity.
func (m *Metrics) RecordCoverageGaps(gaps []domain.CoverageGap) {
	for _, g := range gaps {
		m.CoverageGapsFound.WithLabelValues(g.GapSeverity.String()).Inc()
	}
}

// ObserveEngine records how long one engine took.
func (m *Metrics) ObserveEngine(engine string, started time.Time) {
	m.EngineDuration.WithLabelValues(engine).Observe(time.Since(started).Seconds())
}

// RecordPipelineRun records a pipeline run outcome.
func (m *Metrics) RecordPipelineRun(err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	} else {
		m.LastSuccessfulPipeline.SetToCurrentTime()
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(duration.Seconds())
}

// RecordHTTP records one API request.
func (m *Metrics) RecordHTTP(route string, code int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordDBQuery records a store call duration and error.
func (m *Metrics) RecordDBQuery(store, operation string, started time.Time, err error) {
	m.DBQueryDuration.WithLabelValues(store, operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

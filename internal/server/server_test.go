package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricepoint-intel/internal/config"
	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/observability"
	"pricepoint-intel/internal/pipeline"
	"pricepoint-intel/internal/reporting"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts ...Option) (*Server, *observability.Metrics) {
	t.Helper()
	cfg := config.Default()
	cfg.UseMemory = true
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics("test", reg)
	opts = append([]Option{
		WithMetrics(m, reg),
		WithClock(func() time.Time { return now }),
		WithLogger(zerolog.Nop()),
	}, opts...)
	return New(cfg, opts...), m
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, g.Write(&pb))
	return pb.Gauge.GetValue()
}

func post(t *testing.T, h http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func spikePricing() []domain.PricingObservation {
	obs := func(vendor string, price float64) domain.PricingObservation {
		return domain.PricingObservation{
			SKUID: "SKU-1", VendorID: vendor, MarketID: "MKT-1", RegionName: "Metro",
			UnitPrice: price, CurrencyCode: "USD", ObservedAt: now.Add(-time.Hour),
		}
	}
	return []domain.PricingObservation{
		obs("V1", 10), obs("V2", 10), obs("V3", 10), obs("V4", 10), obs("V5", 40),
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestCoverage(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := post(t, s.Handler(), "/api/v1/coverage", CoverageRequest{
		Market:  domain.Market{MarketID: "MKT-1", RegionName: "Equator"},
		Vendors: []domain.Vendor{{VendorID: "V1", VendorName: "Near"}, {VendorID: "V2", VendorName: "None"}},
		Centers: []domain.DistributionCenter{{CenterID: "DC-1", VendorID: "V1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MKT-1", out["market_id"])

	// vendors without centers are left out
	coverage := out["coverage"].([]any)
	require.Len(t, coverage, 1)
	first := coverage[0].(map[string]any)
	assert.Equal(t, "V1", first["vendor_id"])
	assert.Equal(t, 100.0, first["coverage_score"])
	assert.Equal(t, 0.0, first["nearest_center_distance_km"])
}

func TestCoverage_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := post(t, s.Handler(), "/api/v1/coverage", CoverageRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", out["error"])

	rec, out = post(t, s.Handler(), "/api/v1/coverage", CoverageRequest{
		Market:  domain.Market{MarketID: "MKT-1", Latitude: 95},
		Vendors: []domain.Vendor{{VendorID: "V1"}},
		Centers: []domain.DistributionCenter{{CenterID: "DC-1", VendorID: "V1"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_coordinate", out["error"])
}

func TestCoverageGaps(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := post(t, s.Handler(), "/api/v1/coverage/gaps", CoverageGapsRequest{
		Markets: []domain.Market{{MarketID: "MKT-1", RegionName: "Equator"}},
		Vendors: []domain.Vendor{{VendorID: "V1"}, {VendorID: "V2"}},
		Centers: []domain.DistributionCenter{{CenterID: "DC-1", VendorID: "V1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50.0, out["min_coverage_score"])

	gaps := out["gaps"].([]any)
	require.Len(t, gaps, 1)
	gap := gaps[0].(map[string]any)
	assert.Equal(t, "V2", gap["vendor_id"])
	assert.Equal(t, "critical", gap["gap_severity"])
	assert.Nil(t, gap["nearest_center_distance_km"], "infinite distance must serialize as null")
	assert.Len(t, out["suggested_centers"], 1)

	bad := 150.0
	rec, _ = post(t, s.Handler(), "/api/v1/coverage/gaps", CoverageGapsRequest{MinCoverageScore: &bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnomalies(t *testing.T) {
	s, m := newTestServer(t)

	rec, out := post(t, s.Handler(), "/api/v1/anomalies", AnomaliesRequest{Pricing: spikePricing()})
	require.Equal(t, http.StatusOK, rec.Code)

	anomalies := out["anomalies"].([]any)
	require.NotEmpty(t, anomalies)
	assert.Equal(t, float64(len(anomalies)), out["total"])

	var spike map[string]any
	for _, a := range anomalies {
		if a.(map[string]any)["anomaly_type"] == "price_spike" {
			spike = a.(map[string]any)
		}
	}
	require.NotNil(t, spike, "expected a price spike")
	assert.Equal(t, "V5", spike["vendor_id"])
	assert.Equal(t, 40.0, spike["actual_price"])

	var pb dto.Metric
	require.NoError(t, m.AnomaliesDetected.WithLabelValues("price_spike", spike["severity"].(string)).Write(&pb))
	assert.Equal(t, 1.0, pb.Counter.GetValue())
}

func TestAnomalies_BadJSON(t *testing.T) {
	s, _ := newTestServer(t)

	for _, body := range []string{"", "{", `{"unknown":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/anomalies", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestHighVariance(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := post(t, s.Handler(), "/api/v1/variance/high", HighVarianceRequest{
		Pricing:      spikePricing(),
		BaseRegionID: "MKT-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.2, out["threshold_cv"])

	high := out["high_variance"].([]any)
	require.Len(t, high, 1)
	assert.Equal(t, "SKU-1", high[0].(map[string]any)["sku_id"])
	assert.Len(t, out["regional_stats"], 1)
	assert.Contains(t, out, "regional_variance")
}

func TestBenchmarksAndCompare(t *testing.T) {
	s, _ := newTestServer(t)

	rec, out := post(t, s.Handler(), "/api/v1/benchmarks", BenchmarksRequest{Pricing: spikePricing()})
	require.Equal(t, http.StatusOK, rec.Code)

	benchmarks := out["benchmarks"].([]any)
	require.Len(t, benchmarks, 1)
	bm := benchmarks[0].(map[string]any)
	assert.Equal(t, 16.0, bm["avg_price"])
	assert.Equal(t, float64(5), bm["sample_size"])
	assert.Equal(t, float64(1), out["overview"].(map[string]any)["total_markets"])

	vendor := []domain.PricingObservation{spikePricing()[0]}
	rec, out = post(t, s.Handler(), "/api/v1/benchmarks/compare", CompareRequest{
		VendorPricing: vendor,
		Pricing:       spikePricing(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	comparisons := out["comparisons"].([]any)
	require.Len(t, comparisons, 1)
	c := comparisons[0].(map[string]any)
	assert.Equal(t, "V1", c["vendor_id"])
	assert.Equal(t, "below_market", c["price_position"])
	assert.Equal(t, "V1", out["summary"].(map[string]any)["vendor_id"])

	rec, _ = post(t, s.Handler(), "/api/v1/benchmarks/compare", CompareRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestMetrics(t *testing.T) {
	s, m := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var pb dto.Metric
	require.NoError(t, m.HTTPRequests.WithLabelValues("/health", "200").Write(&pb))
	assert.Equal(t, 1.0, pb.Counter.GetValue())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_http_requests_total")
}

func TestWebSocketBroadcast(t *testing.T) {
	s, m := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	defer s.Hub().Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/anomalies"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, gaugeValue(t, m.WSClients))

	rec, out := post(t, s.Handler(), "/api/v1/anomalies", AnomaliesRequest{Pricing: spikePricing()})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event AnomalyEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "anomalies", event.Type)
	assert.Equal(t, out["total"], float64(event.Count))
	assert.True(t, event.DetectedAt.Equal(now))
	assert.Len(t, event.Anomalies, event.Count)

	s.Hub().Close()
	require.Eventually(t, func() bool { return s.Hub().Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, gaugeValue(t, m.WSClients))
}

func TestHub_NoBroadcastWithoutAnomalies(t *testing.T) {
	h := NewHub(zerolog.Nop(), nil)
	c := &wsClient{send: make(chan []byte, 1)}
	h.clients[c.id] = c

	h.BroadcastAnomalies(nil, now)
	assert.Empty(t, c.send)

	h.BroadcastAnomalies([]domain.AnomalyFlag{{SKUID: "S-1"}}, now)
	assert.Len(t, c.send, 1)

	// full buffer drops the client
	h.BroadcastAnomalies([]domain.AnomalyFlag{{SKUID: "S-1"}}, now)
	assert.Equal(t, 0, h.Clients())
}

type fakeRunner struct {
	calls   atomic.Int32
	block   chan struct{}
	entered chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.Result, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Result{Report: &reporting.Report{}}, nil
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	sch := NewScheduler(r, time.Hour, zerolog.Nop())

	done := make(chan bool)
	go func() { done <- sch.RunOnce(context.Background()) }()
	<-r.entered

	assert.False(t, sch.RunOnce(context.Background()))
	assert.True(t, sch.Status().Running)

	close(r.block)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), r.calls.Load())

	st := sch.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, 0, st.Failures)
}

func TestScheduler_RecordsFailures(t *testing.T) {
	r := &fakeRunner{err: errors.New("store down")}
	sch := NewScheduler(r, time.Hour, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sch.Start(ctx) }()

	require.Eventually(t, func() bool { return sch.Status().Runs == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	st := sch.Status()
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "store down", st.LastError)
	assert.Equal(t, "1h0m0s", st.Interval)
}

func TestStatus(t *testing.T) {
	r := &fakeRunner{}
	sch := NewScheduler(r, time.Minute, zerolog.Nop())
	sch.RunOnce(context.Background())
	s, _ := newTestServer(t, WithScheduler(sch))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	require.NotNil(t, resp.Pipeline)
	assert.Equal(t, 1, resp.Pipeline.Runs)
}

func TestRun_GracefulShutdown(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

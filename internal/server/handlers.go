package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/variance"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CoverageRequest asks for every vendor's coverage of one market.
type CoverageRequest struct {
	Market  domain.Market               `json:"market"`
	Vendors []domain.Vendor             `json:"vendors"`
	Centers []domain.DistributionCenter `json:"centers"`
}

// CoverageGapsRequest asks for under-covered (market, vendor) pairs.
type CoverageGapsRequest struct {
	Markets          []domain.Market             `json:"markets"`
	Vendors          []domain.Vendor             `json:"vendors"`
	Centers          []domain.DistributionCenter `json:"centers"`
	MinCoverageScore *float64                    `json:"min_coverage_score,omitempty"`
	Weights          map[string]float64          `json:"weights,omitempty"`
}

// AnomaliesRequest carries the observations to scan and optional history.
type AnomaliesRequest struct {
	Pricing    []domain.PricingObservation `json:"pricing"`
	Historical []domain.PricingObservation `json:"historical,omitempty"`
}

// HighVarianceRequest asks for SKUs whose price dispersion exceeds a CV threshold.
type HighVarianceRequest struct {
	Pricing      []domain.PricingObservation `json:"pricing"`
	ThresholdCV  *float64                    `json:"threshold_cv,omitempty"`
	BaseRegionID string                      `json:"base_region_id,omitempty"`
}

// BenchmarksRequest asks for per-SKU and per-category benchmarks.
type BenchmarksRequest struct {
	Pricing       []domain.PricingObservation `json:"pricing"`
	Historical    []domain.PricingObservation `json:"historical,omitempty"`
	PeriodEnd     *time.Time                  `json:"period_end,omitempty"`
	CategoryNames map[string]string           `json:"category_names,omitempty"`
}

// CompareRequest compares one vendor's prices against benchmarks. Benchmarks
// are built from Pricing when none are supplied.
type CompareRequest struct {
	VendorPricing []domain.PricingObservation `json:"vendor_pricing"`
	Benchmarks    []domain.RegionalBenchmark  `json:"benchmarks,omitempty"`
	Pricing       []domain.PricingObservation `json:"pricing,omitempty"`
}

type mapper interface {
	ToMap() map[string]any
}

func toMaps[T mapper](items []T) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, it.ToMap())
	}
	return out
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status    string           `json:"status"`
	Uptime    string           `json:"uptime"`
	WSClients int              `json:"ws_clients"`
	Pipeline  *SchedulerStatus `json:"pipeline,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:    "running",
		WSClients: s.hub.Clients(),
	}
	if s.scheduler != nil {
		st := s.scheduler.Status()
		resp.Pipeline = &st
		if !st.Started.IsZero() {
			resp.Uptime = s.clock().Sub(st.Started).Truncate(time.Second).String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	var req CoverageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Market.MarketID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "market.market_id is required")
		return
	}

	coverage, err := s.proximity.AnalyzeMarketVendors(req.Market, req.Vendors, req.Centers)
	if err != nil {
		s.unprocessable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": req.Market.MarketID,
		"coverage":  toMaps(coverage),
	})
}

func (s *Server) handleCoverageGaps(w http.ResponseWriter, r *http.Request) {
	var req CoverageGapsRequest
	if !s.decode(w, r, &req) {
		return
	}
	minScore := s.cfg.MinCoverageScore
	if req.MinCoverageScore != nil {
		minScore = *req.MinCoverageScore
	}
	if minScore < 0 || minScore > 100 {
		writeError(w, http.StatusBadRequest, "invalid_request", "min_coverage_score must be within [0, 100]")
		return
	}

	gaps, err := s.proximity.FindCoverageGaps(req.Markets, req.Vendors, req.Centers, minScore)
	if err != nil {
		s.unprocessable(w, err)
		return
	}
	suggestions, err := s.proximity.CalculateOptimalCenterLocations(req.Markets, req.Weights, 1)
	if err != nil {
		s.unprocessable(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"min_coverage_score": minScore,
		"gaps":               toMaps(gaps),
		"suggested_centers":  toMaps(suggestions),
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	var req AnomaliesRequest
	if !s.decode(w, r, &req) {
		return
	}

	flags := s.detector.DetectAnomalies(req.Pricing)
	if len(req.Historical) > 0 {
		flags = append(flags, s.detector.DetectHistoricalDeviations(req.Pricing, req.Historical)...)
	}
	flags = append(flags, s.detector.DetectCurrencyMismatches(req.Pricing)...)
	variance.SortBySeverity(flags)

	if s.metrics != nil {
		s.metrics.RecordAnomalies(flags)
	}
	s.hub.BroadcastAnomalies(flags, s.clock())

	counts := make(map[string]int)
	for _, f := range flags {
		counts[f.Severity.String()]++
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":           len(flags),
		"severity_counts": counts,
		"anomalies":       toMaps(flags),
	})
}

func (s *Server) handleHighVariance(w http.ResponseWriter, r *http.Request) {
	var req HighVarianceRequest
	if !s.decode(w, r, &req) {
		return
	}
	threshold := s.cfg.HighVarianceCV
	if req.ThresholdCV != nil {
		threshold = *req.ThresholdCV
	}
	if threshold < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "threshold_cv must be non-negative")
		return
	}

	resp := map[string]any{
		"threshold_cv":   threshold,
		"high_variance":  toMaps(s.detector.GetHighVarianceSKUs(req.Pricing, threshold)),
		"regional_stats": toMaps(s.detector.CalculateRegionalStats(req.Pricing)),
	}
	if req.BaseRegionID != "" {
		resp["regional_variance"] = toMaps(s.detector.CalculateRegionalVariance(req.Pricing, req.BaseRegionID))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	var req BenchmarksRequest
	if !s.decode(w, r, &req) {
		return
	}

	benchmarks := s.benchmarker.CreateSKUBenchmarks(req.Pricing, req.Historical, req.PeriodEnd)
	if s.metrics != nil {
		s.metrics.BenchmarksCreated.Add(float64(len(benchmarks)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"benchmarks":          toMaps(benchmarks),
		"category_benchmarks": toMaps(s.benchmarker.CreateCategoryBenchmarks(req.Pricing, req.CategoryNames)),
		"overview":            s.benchmarker.AggregateMarketSummary(benchmarks).ToMap(),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.VendorPricing) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "vendor_pricing is required")
		return
	}

	benchmarks := req.Benchmarks
	if len(benchmarks) == 0 {
		benchmarks = s.benchmarker.CreateSKUBenchmarks(req.Pricing, nil, nil)
	}
	comparisons := s.benchmarker.CompareVendorToBenchmark(req.VendorPricing, benchmarks)
	if s.metrics != nil {
		s.metrics.ComparisonsComputed.Add(float64(len(comparisons)))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"comparisons": toMaps(comparisons),
		"summary":     s.benchmarker.VendorCompetitivenessSummary(comparisons).ToMap(),
	})
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, "invalid_json", msg)
		return false
	}
	return true
}

// unprocessable maps engine input errors to 422.
func (s *Server) unprocessable(w http.ResponseWriter, err error) {
	code := "invalid_input"
	if errors.Is(err, domain.ErrInvalidCoordinate) {
		code = "invalid_coordinate"
	}
	s.logger.Debug().Err(err).Msg("rejected request")
	writeError(w, http.StatusUnprocessableEntity, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

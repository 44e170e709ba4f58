package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"pricepoint-intel/internal/domain"
	"pricepoint-intel/internal/observability"
)

// AuthType selects how credentials are attached to API requests.
type AuthType string

const (
	AuthNone   AuthType = ""
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
)

// PaginationType selects how successive pages are requested.
type PaginationType string

const (
	PaginationNone   PaginationType = ""
	PaginationOffset PaginationType = "offset"
	PaginationPage   PaginationType = "page"
	PaginationCursor PaginationType = "cursor"
)

// Endpoint defaults.
const (
	DefaultAPITimeout   = 30 * time.Second
	DefaultPageSize     = 100
	DefaultMaxPages     = 100
	DefaultAPIKeyHeader = "X-API-Key"
	DefaultCursorPath   = "next_cursor"
)

// Retry defaults.
const (
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second
)

// dataKeys are probed, in order, when no DataPath is configured and the body is an object.
var dataKeys = []string{"data", "items", "results", "records"}

// EndpointConfig describes one pricing API endpoint.
type EndpointConfig struct {
	URL     string
	Method  string // default GET
	Headers map[string]string
	Query   map[string]string

	AuthType     AuthType
	AuthToken    string
	APIKeyHeader string // default X-API-Key

	Timeout time.Duration // per request

	// DataPath is a dot path to the record array, e.g. "response.items".
	DataPath string
	// FieldMapping maps canonical fields to dot paths within each record.
	// Empty means the CSV column aliases are matched against top-level keys.
	FieldMapping map[string]string

	Pagination      PaginationType
	PaginationParam string // offset|page|cursor by default
	PageSizeParam   string // default "limit"
	PageSize        int
	CursorPath      string // default next_cursor
	MaxPages        int

	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64
	Burst             int
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = DefaultAPIKeyHeader
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultAPITimeout
	}
	if c.PaginationParam == "" {
		c.PaginationParam = string(c.Pagination)
	}
	if c.PageSizeParam == "" {
		c.PageSizeParam = "limit"
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.CursorPath == "" {
		c.CursorPath = DefaultCursorPath
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// FetchResult holds the raw records collected across pages.
type FetchResult struct {
	Records []map[string]any
	Pages   int
}

// statusError is a non-2xx response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// APIConnector fetches vendor pricing from JSON HTTP APIs.
type APIConnector struct {
	client     *http.Client
	validator  *Validator
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	logger     zerolog.Logger
	metrics    *observability.Metrics
	clock      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// APIOption configures an APIConnector.
type APIOption func(*APIConnector)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIConnector) { a.client = c }
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) APIOption {
	return func(a *APIConnector) { a.maxRetries = n }
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) APIOption {
	return func(a *APIConnector) { a.retryDelay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) APIOption {
	return func(a *APIConnector) { a.maxDelay = d }
}

// WithAPILogger sets the logger.
func WithAPILogger(l zerolog.Logger) APIOption {
	return func(a *APIConnector) { a.logger = l }
}

// WithAPIMetrics sets the metrics sink.
func WithAPIMetrics(m *observability.Metrics) APIOption {
	return func(a *APIConnector) { a.metrics = m }
}

// WithAPIClock sets the time source for missing observed_at values.
func WithAPIClock(clock func() time.Time) APIOption {
	return func(a *APIConnector) { a.clock = clock }
}

// NewAPIConnector creates an APIConnector.
func NewAPIConnector(v *Validator, opts ...APIOption) *APIConnector {
	if v == nil {
		v = NewValidator()
	}
	a := &APIConnector{
		client:     &http.Client{},
		validator:  v,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		maxDelay:   defaultMaxDelay,
		logger:     zerolog.Nop(),
		clock:      func() time.Time { return time.Now().UTC() },
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchVendorPricing fetches every page of cfg and validates each record as an observation.
// Row numbers in the result are 0-based record indexes across all pages.
func (a *APIConnector) FetchVendorPricing(ctx context.Context, cfg EndpointConfig) (*ImportResult[domain.PricingObservation], error) {
	started := a.clock()
	fetched, err := a.FetchPaginated(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := &ImportResult[domain.PricingObservation]{Source: cfg.URL, StartedAt: started}
	for i, raw := range fetched.Records {
		rec := mapAPIRecord(raw, cfg.FieldMapping)
		obs, iss := a.validator.Observation(rec, i, started)
		res.add(obs, iss)
	}
	res.CompletedAt = a.clock()

	a.logger.Info().
		Str("url", cfg.URL).
		Int("pages", fetched.Pages).
		Int("imported", res.Succeeded).
		Int("failed", res.Failed).
		Msg("api import complete")

	return res, nil
}

// FetchPaginated follows cfg's pagination until a short page, an empty cursor or MaxPages.
func (a *APIConnector) FetchPaginated(ctx context.Context, cfg EndpointConfig) (*FetchResult, error) {
	cfg = cfg.withDefaults()
	res := &FetchResult{}

	offset, page, cursor := 0, 1, ""
	for res.Pages < cfg.MaxPages {
		params := url.Values{}
		switch cfg.Pagination {
		case PaginationOffset:
			params.Set(cfg.PaginationParam, strconv.Itoa(offset))
			params.Set(cfg.PageSizeParam, strconv.Itoa(cfg.PageSize))
		case PaginationPage:
			params.Set(cfg.PaginationParam, strconv.Itoa(page))
			params.Set(cfg.PageSizeParam, strconv.Itoa(cfg.PageSize))
		case PaginationCursor:
			if cursor != "" {
				params.Set(cfg.PaginationParam, cursor)
			}
			params.Set(cfg.PageSizeParam, strconv.Itoa(cfg.PageSize))
		}

		body, err := a.FetchPage(ctx, cfg, params)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", res.Pages+1, err)
		}
		res.Pages++

		records := extractRecords(body, cfg.DataPath)
		res.Records = append(res.Records, records...)

		switch cfg.Pagination {
		case PaginationOffset:
			if len(records) < cfg.PageSize {
				return res, nil
			}
			offset += len(records)
		case PaginationPage:
			if len(records) < cfg.PageSize {
				return res, nil
			}
			page++
		case PaginationCursor:
			next, _ := getPath(body, cfg.CursorPath)
			cursor = stringify(next)
			if cursor == "" || len(records) == 0 {
				return res, nil
			}
		default:
			return res, nil
		}
	}

	a.logger.Warn().Str("url", cfg.URL).Int("max_pages", cfg.MaxPages).Msg("pagination stopped at page limit")
	return res, nil
}

// FetchPage performs one request with rate limiting and retry, returning the decoded JSON body.
func (a *APIConnector) FetchPage(ctx context.Context, cfg EndpointConfig, params url.Values) (any, error) {
	cfg = cfg.withDefaults()

	if err := a.wait(ctx, cfg); err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retryDelay
	b.MaxInterval = a.maxDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(a.maxRetries, 0))), ctx)

	var body any
	op := func() error {
		var err error
		body, err = a.do(ctx, cfg, params)
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && !retryable(se.Code) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if a.metrics != nil {
			a.metrics.APIRetries.Inc()
		}
		a.logger.Warn().Err(err).Str("url", cfg.URL).Dur("backoff", wait).Msg("api request failed, retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, cfg.URL)
		}
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.APIPagesFetched.Inc()
	}
	return body, nil
}

func (a *APIConnector) wait(ctx context.Context, cfg EndpointConfig) error {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	a.mu.Lock()
	lim, ok := a.limiters[cfg.URL]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
		a.limiters[cfg.URL] = lim
	}
	a.mu.Unlock()
	return lim.Wait(ctx)
}

func (a *APIConnector) do(ctx context.Context, cfg EndpointConfig, params url.Values) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("parse url: %w", err))
	}
	q := u.Query()
	for k, v := range cfg.Query {
		q.Set(k, v)
	}
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, cfg.Method, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	switch cfg.AuthType {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	case AuthAPIKey:
		req.Header.Set(cfg.APIKeyHeader, cfg.AuthToken)
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	if a.metrics != nil {
		a.metrics.APICallLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return body, nil
}

// extractRecords returns the object elements of the record array in body.
func extractRecords(body any, dataPath string) []map[string]any {
	var data any = body
	if dataPath != "" {
		data, _ = getPath(body, dataPath)
	} else if obj, ok := body.(map[string]any); ok {
		data = nil
		for _, key := range dataKeys {
			if v, ok := obj[key]; ok {
				data = v
				break
			}
		}
	}

	items, _ := data.([]any)
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}

// getPath walks a dot path through objects and arrays ("a.b.0.c").
func getPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

// mapAPIRecord flattens one API record into canonical string fields.
func mapAPIRecord(raw map[string]any, mapping map[string]string) Record {
	rec := make(Record)
	if len(mapping) > 0 {
		for field, path := range mapping {
			if v, ok := getPath(raw, path); ok {
				rec[field] = stringify(v)
			}
		}
		return rec
	}

	for field, aliases := range columnAliases[KindObservation] {
		for _, alias := range aliases {
			if v, ok := raw[alias]; ok {
				rec[field] = stringify(v)
				break
			}
		}
	}
	return rec
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
	"github.com/kjstillabower/weather-dashboard/internal/traffic"
)

// BackendClient is the weather backend as seen by the lookup panel and the dashboard.
type BackendClient interface {
	GetRecord(ctx context.Context, id string) (models.WeatherRecord, error)
	ListRecent(ctx context.Context, limit int) ([]models.WeatherRecord, error)
	GetStats(ctx context.Context) (models.DashboardStats, error)
	CreateRecord(ctx context.Context, req models.CreateRequest) (string, error)
}

var (
	ErrNotFound          = errors.New("record not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// Endpoint labels for metrics.
const (
	endpointGetRecord  = "get_record"
	endpointListRecent = "list_recent"
	endpointGetStats   = "get_stats"
	endpointCreate     = "create_record"
)

// HTTPClient talks to the backend over plain HTTP/JSON. No retries.
type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPClient returns a client rooted at baseURL (e.g. http://localhost:8000).
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return &HTTPClient{
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// detailRecord is the GET /weather/{id} shape: measurement nested under weather_data.
type detailRecord struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Location    string `json:"location"`
	Notes       string `json:"notes"`
	CreatedAt   string `json:"created_at"`
	WeatherData struct {
		Temperature float64 `json:"temperature"`
		Description string  `json:"description"`
		Humidity    float64 `json:"humidity"`
		WindSpeed   float64 `json:"wind_speed"`
	} `json:"weather_data"`
}

func (d detailRecord) toRecord() models.WeatherRecord {
	return models.WeatherRecord{
		ID:        d.ID,
		Date:      d.Date,
		Location:  d.Location,
		Notes:     d.Notes,
		CreatedAt: parseTimestamp(d.CreatedAt),
		Measurement: models.WeatherMeasurement{
			Temperature: d.WeatherData.Temperature,
			Description: d.WeatherData.Description,
			Humidity:    d.WeatherData.Humidity,
			WindSpeed:   d.WeatherData.WindSpeed,
		},
	}
}

// summaryRecord is the GET /weather?limit=n element shape: measurement flattened.
type summaryRecord struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Notes       string  `json:"notes"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	CreatedAt   string  `json:"created_at"`
}

func (s summaryRecord) toRecord() models.WeatherRecord {
	return models.WeatherRecord{
		ID:        s.ID,
		Date:      s.Date,
		Location:  s.Location,
		Notes:     s.Notes,
		CreatedAt: parseTimestamp(s.CreatedAt),
		Measurement: models.WeatherMeasurement{
			Temperature: s.Temperature,
			Description: s.Description,
			Humidity:    s.Humidity,
			WindSpeed:   s.WindSpeed,
		},
	}
}

type createResponse struct {
	ID string `json:"id"`
}

// GetRecord fetches one record in detail shape.
func (c *HTTPClient) GetRecord(ctx context.Context, id string) (models.WeatherRecord, error) {
	var d detailRecord
	if err := c.doJSON(ctx, endpointGetRecord, http.MethodGet, []string{"weather", url.PathEscape(id)}, nil, nil, &d); err != nil {
		return models.WeatherRecord{}, err
	}
	return d.toRecord(), nil
}

// ListRecent fetches the newest limit records in summary shape, in backend order.
func (c *HTTPClient) ListRecent(ctx context.Context, limit int) ([]models.WeatherRecord, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	var rows []summaryRecord
	if err := c.doJSON(ctx, endpointListRecent, http.MethodGet, []string{"weather"}, q, nil, &rows); err != nil {
		return nil, err
	}
	records := make([]models.WeatherRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

// GetStats fetches backend-computed aggregate statistics.
func (c *HTTPClient) GetStats(ctx context.Context) (models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.doJSON(ctx, endpointGetStats, http.MethodGet, []string{"dashboard", "stats"}, nil, nil, &stats); err != nil {
		return models.DashboardStats{}, err
	}
	return stats, nil
}

// CreateRecord submits a new weather request and returns the backend-assigned ID.
func (c *HTTPClient) CreateRecord(ctx context.Context, req models.CreateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	var resp createResponse
	if err := c.doJSON(ctx, endpointCreate, http.MethodPost, []string{"weather"}, nil, body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: empty id", ErrMalformedResponse)
	}
	return resp.ID, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, endpoint, method string, segments []string, query url.Values, body []byte, out interface{}) (err error) {
	start := time.Now()
	defer func() { recordOutcome(err) }()

	req, err := c.buildRequest(ctx, method, segments, query, body)
	if err != nil {
		observability.BackendCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.BackendCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.BackendCallDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.BackendCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.BackendCallDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	return nil
}

// recordOutcome feeds the backend health window. A 404 is a healthy answer;
// calls abandoned by the caller say nothing about the backend.
func recordOutcome(err error) {
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		traffic.RecordSuccess()
	case errors.Is(err, context.Canceled):
	default:
		traffic.RecordError()
	}
}

func (c *HTTPClient) buildRequest(ctx context.Context, method string, segments []string, query url.Values, body []byte) (*http.Request, error) {
	// Segments are already escaped; JoinPath keeps Path and RawPath consistent.
	u := c.baseURL.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Correlation-ID", correlationID(ctx))
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w", ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

// correlationID reuses the ID of the inbound status-server request when there is one.
func correlationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return uuid.New().String()
}

// parseTimestamp accepts RFC 3339 and the naive ISO form the backend emits
// (datetime.utcnow().isoformat(), no zone). Unparseable values yield zero time.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusNotFound {
		return "not_found"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

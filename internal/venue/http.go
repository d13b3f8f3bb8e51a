package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"quantd/internal/domain"
)

// Compile-time interface check.
var _ MarketDataSource = (*HTTPSource)(nil)

const defaultMaxBars = 750

// HTTPSource implements MarketDataSource against a REST endpoint serving
// minute bars as JSON. It carries no venue-specific wire knowledge beyond
// the query parameter names.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
	maxBars int
}

// NewHTTPSource creates a source for the given REST base URL. maxBars caps
// the count per request; zero selects the default of 750.
func NewHTTPSource(baseURL, apiKey string, maxBars int) *HTTPSource {
	if maxBars <= 0 {
		maxBars = defaultMaxBars
	}
	return &HTTPSource{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
		maxBars: maxBars,
	}
}

// MaxBarsPerRequest returns the per-call bar limit.
func (s *HTTPSource) MaxBarsPerRequest() int { return s.maxBars }

// wireBar is the JSON shape returned by the bars endpoint.
type wireBar struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// GetBarsInPeriod fetches up to count minute bars starting at startTS.
func (s *HTTPSource) GetBarsInPeriod(ctx context.Context, symbol string, startTS int64, count int) ([]domain.Bar, error) {
	if count > s.maxBars {
		count = s.maxBars
	}
	q := url.Values{
		"symbol":  {symbol},
		"binSize": {"1m"},
		"start":   {strconv.FormatInt(startTS, 10)},
		"count":   {strconv.Itoa(count)},
	}

	var wire []wireBar
	if err := s.getJSON(ctx, "/bars?"+q.Encode(), &wire); err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(wire))
	for _, w := range wire {
		bars = append(bars, domain.Bar{
			Symbol:    w.Symbol,
			Timestamp: w.Timestamp,
			Open:      w.Open,
			High:      w.High,
			Low:       w.Low,
			Close:     w.Close,
			Volume:    w.Volume,
		})
	}
	return bars, nil
}

// Origin returns the listing timestamp of the instrument.
func (s *HTTPSource) Origin(ctx context.Context, symbol string) (int64, error) {
	var resp struct {
		Symbol   string `json:"symbol"`
		OriginTS int64  `json:"origin_ts"`
	}
	q := url.Values{"symbol": {symbol}}
	if err := s.getJSON(ctx, "/instrument?"+q.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("fetching origin for %s: %w", symbol, err)
	}
	return resp.OriginTS, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("venue returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

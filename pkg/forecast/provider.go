package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Provider produces forecast bands for a target and key. The forecasting
// model itself is a black box behind this interface.
type Provider interface {
	GetForecast(ctx context.Context, target, key string, historyMinutes, horizonMinutes, stepSeconds int) (*Band, error)
}

// HTTPProvider fetches bands from an external forecaster over HTTP.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider for the given forecaster base URL.
func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetForecast requests a band from the forecaster.
func (p *HTTPProvider) GetForecast(ctx context.Context, target, key string, historyMinutes, horizonMinutes, stepSeconds int) (*Band, error) {
	q := url.Values{}
	q.Set("target", target)
	q.Set("key", key)
	q.Set("history_minutes", strconv.Itoa(historyMinutes))
	q.Set("horizon_minutes", strconv.Itoa(horizonMinutes))
	q.Set("step_seconds", strconv.Itoa(stepSeconds))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast request: unexpected status %d", resp.StatusCode)
	}

	var band Band
	if err := json.NewDecoder(resp.Body).Decode(&band); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	return &band, nil
}

// StaticProvider returns a fixed band; used in tests and offline diagnosis.
type StaticProvider struct {
	Band *Band
	Err  error
}

func (s *StaticProvider) GetForecast(ctx context.Context, target, key string, historyMinutes, horizonMinutes, stepSeconds int) (*Band, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Band, nil
}

package forecast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// band builds a forecast band from predicted values at one-minute steps.
func band(predicted ...float64) *Band {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &Band{}
	for i, v := range predicted {
		b.Forecast = append(b.Forecast, BandPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Predicted: v,
			Lower:     v * 0.9,
			Upper:     v * 1.1,
		})
	}
	return b
}

func TestPeak(t *testing.T) {
	assert.Equal(t, 0.0, (&Band{}).Peak())
	assert.Equal(t, 92.0, band(40, 92, 70).Peak())
}

func TestSustainMinutesTrailingRun(t *testing.T) {
	tests := []struct {
		name      string
		predicted []float64
		threshold float64
		expected  float64
	}{
		{
			name:      "all above",
			predicted: []float64{85, 90, 95},
			threshold: 80,
			expected:  3,
		},
		{
			name:      "trailing run only",
			predicted: []float64{85, 70, 90, 95},
			threshold: 80,
			expected:  2,
		},
		{
			name:      "run not at the end does not count",
			predicted: []float64{85, 90, 70},
			threshold: 80,
			expected:  0,
		},
		{
			name:      "at threshold counts",
			predicted: []float64{70, 80, 80},
			threshold: 80,
			expected:  2,
		},
		{
			name:      "empty",
			predicted: nil,
			threshold: 80,
			expected:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, band(tt.predicted...).SustainMinutes(tt.threshold))
		})
	}
}

func TestStep(t *testing.T) {
	b := band(1, 2, 3)
	assert.Equal(t, time.Minute, b.Step())

	b.Meta.StepSeconds = 30
	assert.Equal(t, 30*time.Second, b.Step())

	assert.Equal(t, time.Minute, (&Band{}).Step())
}

func TestEstimateResources(t *testing.T) {
	// Samples 50..100 mCPU: p95 = 95, p99 = 99, request = max(95, 90) = 95,
	// limit = max(99, 142.5) = 142.5.
	est, ok := EstimateResources([]float64{50, 60, 70, 80, 90, 100})
	require.True(t, ok)
	assert.InDelta(t, 95.0, est.P95, 1e-9)
	assert.InDelta(t, 99.0, est.P99, 1e-9)
	assert.InDelta(t, 95.0, est.Request, 1e-9)
	assert.InDelta(t, 142.5, est.Limit, 1e-9)
}

func TestEstimateResourcesAvgDominatesRequest(t *testing.T) {
	// Flat usage: avg*1.2 exceeds p95 of the peak.
	est, ok := EstimateResources([]float64{100, 100, 100, 100})
	require.True(t, ok)
	assert.InDelta(t, 120.0, est.Request, 1e-9)
	assert.InDelta(t, 180.0, est.Limit, 1e-9)
}

func TestEstimateResourcesEmpty(t *testing.T) {
	_, ok := EstimateResources(nil)
	assert.False(t, ok)
}

func TestHTTPProvider(t *testing.T) {
	served := &Band{
		Target:  "pod_cpu",
		Key:     "default/api-abc",
		History: []Point{{Value: 50}, {Value: 60}},
		Forecast: []BandPoint{
			{Predicted: 80, Lower: 70, Upper: 90},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/forecast", r.URL.Path)
		assert.Equal(t, "pod_cpu", r.URL.Query().Get("target"))
		assert.Equal(t, "default/api-abc", r.URL.Query().Get("key"))
		assert.Equal(t, "120", r.URL.Query().Get("history_minutes"))
		require.NoError(t, json.NewEncoder(w).Encode(served))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL)
	got, err := provider.GetForecast(context.Background(), "pod_cpu", "default/api-abc", 120, 30, 60)
	require.NoError(t, err)
	assert.Equal(t, "default/api-abc", got.Key)
	assert.Len(t, got.History, 2)
	assert.Len(t, got.Forecast, 1)
}

func TestHTTPProviderBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL)
	_, err := provider.GetForecast(context.Background(), "pod_cpu", "x", 1, 1, 60)
	assert.Error(t, err)
}

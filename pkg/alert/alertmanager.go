package alert

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
)

// AlertmanagerSink pushes alerts to an Alertmanager instance via its v2
// HTTP API. Failures are logged and counted, never returned.
type AlertmanagerSink struct {
	url    string
	client *http.Client
}

// NewAlertmanagerSink creates a sink for the given Alertmanager base URL.
func NewAlertmanagerSink(baseURL string) *AlertmanagerSink {
	return &AlertmanagerSink{
		url:    baseURL + "/api/v2/alerts",
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

type amAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations,omitempty"`
	StartsAt    string            `json:"startsAt,omitempty"`
}

// Push delivers one alert, best-effort.
func (s *AlertmanagerSink) Push(a Alert) {
	labels := map[string]string{
		"alertname": a.Name,
		"severity":  a.Severity,
		"source":    "warden",
	}
	for k, v := range a.Labels {
		labels[k] = v
	}
	payload := []amAlert{{
		Labels:      labels,
		Annotations: a.Annotations,
	}}
	if !a.StartsAt.IsZero() {
		payload[0].StartsAt = a.StartsAt.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logger := log.WithComponent("alert")
		logger.Error().Err(err).Str("alert", a.Name).Msg("marshal alert")
		metrics.AlertsPushed.WithLabelValues("error").Inc()
		return
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		logger := log.WithComponent("alert")
		logger.Warn().Err(err).Str("alert", a.Name).Msg("alert delivery failed")
		metrics.AlertsPushed.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger := log.WithComponent("alert")
		logger.Warn().Int("status", resp.StatusCode).Str("alert", a.Name).Msg("alertmanager rejected alert")
		metrics.AlertsPushed.WithLabelValues("rejected").Inc()
		return
	}
	metrics.AlertsPushed.WithLabelValues("ok").Inc()
}

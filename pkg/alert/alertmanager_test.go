package alert

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertmanagerPush(t *testing.T) {
	var received []amAlert
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/alerts", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewAlertmanagerSink(server.URL)
	sink.Push(Alert{
		Name:     "WardenCircuitOpened",
		Severity: SeverityCritical,
		Labels:   map[string]string{"namespace": "default", "deployment": "api"},
		Annotations: map[string]string{
			"summary": "circuit opened after repeated failed recoveries",
		},
		StartsAt: time.Now(),
	})

	require.Len(t, received, 1)
	assert.Equal(t, "WardenCircuitOpened", received[0].Labels["alertname"])
	assert.Equal(t, "critical", received[0].Labels["severity"])
	assert.Equal(t, "warden", received[0].Labels["source"])
	assert.Equal(t, "api", received[0].Labels["deployment"])
	assert.NotEmpty(t, received[0].StartsAt)
}

func TestAlertmanagerPushSwallowsFailure(t *testing.T) {
	sink := NewAlertmanagerSink("http://127.0.0.1:0")
	// Must not panic or block; delivery failure is absorbed.
	sink.Push(Alert{Name: "WardenTest", Severity: SeverityInfo})
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	rec.Push(Alert{Name: "A", Severity: SeverityInfo})
	rec.Push(Alert{Name: "B", Severity: SeverityWarning})
	rec.Push(Alert{Name: "A", Severity: SeverityCritical})

	assert.Len(t, rec.Alerts(), 3)
	assert.Len(t, rec.Named("A"), 2)
	assert.Empty(t, rec.Named("C"))
}

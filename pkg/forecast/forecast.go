package forecast

import (
	"time"

	"github.com/wardenhq/warden/pkg/types"
)

// Point is one observed sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// BandPoint is one forecast sample with its confidence interval.
type BandPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// Meta carries resolved workload context alongside a band. All fields are
// optional; pointer fields distinguish "absent" from zero.
type Meta struct {
	LimitMilliCPU     *float64             `json:"limitMilliCPU,omitempty"`
	ControllerKind    types.ControllerKind `json:"controllerKind,omitempty"`
	ControllerName    string               `json:"controllerName,omitempty"`
	DeploymentName    string               `json:"deploymentName,omitempty"`
	DeploymentUID     string               `json:"deploymentUID,omitempty"`
	CurrentReplicas   *int32               `json:"currentReplicas,omitempty"`
	PeerUsageMilliCPU []float64            `json:"peerUsageMilliCPU,omitempty"`
	StepSeconds       int                  `json:"stepSeconds,omitempty"`
}

// Band is a forecast: the history it was derived from, the predicted series
// with bounds, and workload metadata. The engine treats it as read-only
// evidence.
type Band struct {
	Target   string      `json:"target"`
	Key      string      `json:"key"`
	History  []Point     `json:"history"`
	Forecast []BandPoint `json:"forecast"`
	Meta     Meta        `json:"meta"`
}

// Peak returns the maximum predicted value across the band, or 0 for an
// empty forecast.
func (b *Band) Peak() float64 {
	var peak float64
	for _, p := range b.Forecast {
		if p.Predicted > peak {
			peak = p.Predicted
		}
	}
	return peak
}

// Step returns the forecast resolution. Meta wins; otherwise inferred from
// the first two forecast timestamps; defaults to one minute.
func (b *Band) Step() time.Duration {
	if b.Meta.StepSeconds > 0 {
		return time.Duration(b.Meta.StepSeconds) * time.Second
	}
	if len(b.Forecast) >= 2 {
		if d := b.Forecast[1].Timestamp.Sub(b.Forecast[0].Timestamp); d > 0 {
			return d
		}
	}
	return time.Minute
}

// SustainMinutes returns how long the predicted value stays at or above
// threshold, counted as a trailing contiguous run ending at the last
// forecast point.
func (b *Band) SustainMinutes(threshold float64) float64 {
	step := b.Step()
	var run int
	for i := len(b.Forecast) - 1; i >= 0; i-- {
		if b.Forecast[i].Predicted < threshold {
			break
		}
		run++
	}
	return float64(run) * step.Minutes()
}

// HistoryValues returns the observed sample values in order.
func (b *Band) HistoryValues() []float64 {
	out := make([]float64, len(b.History))
	for i, p := range b.History {
		out[i] = p.Value
	}
	return out
}

package forecast

// Estimate is a synthetic request/limit derived from historical usage when
// no resource limit is configured on the workload.
type Estimate struct {
	P95     float64
	P99     float64
	Request float64
	Limit   float64
}

// EstimateResources derives a synthetic CPU request and limit from usage
// samples: p95/p99 are taken as fractions of the observed peak, then
// request = max(p95, avg*1.2) and limit = max(p99, request*1.5).
func EstimateResources(samples []float64) (Estimate, bool) {
	if len(samples) == 0 {
		return Estimate{}, false
	}
	var peak, sum float64
	for _, v := range samples {
		sum += v
		if v > peak {
			peak = v
		}
	}
	avg := sum / float64(len(samples))

	est := Estimate{
		P95: peak * 0.95,
		P99: peak * 0.99,
	}
	est.Request = est.P95
	if scaled := avg * 1.2; scaled > est.Request {
		est.Request = scaled
	}
	est.Limit = est.P99
	if scaled := est.Request * 1.5; scaled > est.Limit {
		est.Limit = scaled
	}
	return est, true
}

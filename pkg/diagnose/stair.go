package diagnose

// StairDelta maps a predicted-load/limit ratio to a discrete replica step.
// Boundaries are inclusive on the left: a ratio exactly at the trigger ratio
// steps +1, exactly 1.0 steps +2, exactly 1.2 steps +3, 1.5 and above +4.
func StairDelta(ratio, triggerRatio float64) int {
	switch {
	case ratio < triggerRatio:
		return 0
	case ratio < 1.0:
		return 1
	case ratio < 1.2:
		return 2
	case ratio < 1.5:
		return 3
	default:
		return 4
	}
}

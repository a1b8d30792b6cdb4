// internal/metrics/indicators.go
package metrics

import "math"

// CalculateDriftIndicators derives regression rate, velocity trend and
// rejection rate from m.
//
// The velocity trend compares mean features completed in the first and
// second halves of the session list (midpoint n/2). A shift counts only
// when it exceeds max(first mean * VelocityRelative, VelocityAbsolute).
func CalculateDriftIndicators(m *DriftMetrics, t Tuning) Indicators {
	ind := Indicators{VelocityTrend: TrendInsufficientData}

	if m.TotalSessions > 0 {
		withRegressions := 0
		for _, s := range m.Sessions {
			if s.RegressionsCaught > 0 {
				withRegressions++
			}
		}
		ind.RegressionRate = float64(withRegressions) / float64(m.TotalSessions) * 100
	}

	if len(m.Sessions) >= MinTrendSessions {
		mid := len(m.Sessions) / 2
		first := meanCompleted(m.Sessions[:mid])
		second := meanCompleted(m.Sessions[mid:])
		threshold := math.Max(first*t.VelocityRelative, t.VelocityAbsolute)
		switch {
		case second > first+threshold:
			ind.VelocityTrend = TrendIncreasing
		case second < first-threshold:
			ind.VelocityTrend = TrendDecreasing
		default:
			ind.VelocityTrend = TrendStable
		}
	}

	if n := len(m.ValidationAttempts); n > 0 {
		ind.RejectionRate = float64(m.RejectionCount) / float64(n) * 100
	}
	return ind
}

func meanCompleted(sessions []SessionRecord) float64 {
	total := 0
	for _, s := range sessions {
		total += s.FeaturesCompleted
	}
	return float64(total) / float64(len(sessions))
}

// internal/metrics/integrity.go
package metrics

import (
	"fmt"
	"math"
)

// ValidateIntegrity recomputes each aggregate and compares it with the
// stored value. Float aggregates match within epsilon; a non-positive
// epsilon uses the default. An empty result means the document is
// consistent.
func ValidateIntegrity(m *DriftMetrics, epsilon float64) []string {
	if epsilon <= 0 {
		epsilon = DefaultTuning().Epsilon
	}
	a := aggregate(m)

	var issues []string
	if m.TotalSessions != a.totalSessions {
		issues = append(issues, fmt.Sprintf("total_sessions mismatch: stored=%d, calculated=%d",
			m.TotalSessions, a.totalSessions))
	}
	if m.TotalRegressionsCaught != a.totalRegressions {
		issues = append(issues, fmt.Sprintf("total_regressions_caught mismatch: stored=%d, calculated=%d",
			m.TotalRegressionsCaught, a.totalRegressions))
	}
	if math.Abs(m.AverageFeaturesPerSession-a.averageFeatures) > epsilon {
		issues = append(issues, fmt.Sprintf("average_features_per_session mismatch: stored=%.2f, calculated=%.2f",
			m.AverageFeaturesPerSession, a.averageFeatures))
	}
	if m.RejectionCount != a.rejections {
		issues = append(issues, fmt.Sprintf("rejection_count mismatch: stored=%d, calculated=%d",
			m.RejectionCount, a.rejections))
	}
	return issues
}

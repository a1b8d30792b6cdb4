// internal/metrics/exporter.go
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "claude_agent"

// Exporter publishes drift metrics as Prometheus gauges on its own
// registry. Values are reloaded from the store on every scrape.
type Exporter struct {
	store    *Store
	registry *prometheus.Registry

	totalSessions      prometheus.Gauge
	totalRegressions   prometheus.Gauge
	averageFeatures    prometheus.Gauge
	rejections         prometheus.Gauge
	multiFeature       prometheus.Gauge
	incomplete         prometheus.Gauge
	validationAttempts prometheus.Gauge
	regressionRate     prometheus.Gauge
	rejectionRate      prometheus.Gauge
	// velocityTrend is 1 for the current trend and 0 for the others.
	// Labels: trend (increasing, stable, decreasing, insufficient_data)
	velocityTrend *prometheus.GaugeVec
	// integrityIssues counts aggregates disagreeing with detail records.
	integrityIssues prometheus.Gauge
}

// NewExporter registers the drift gauges on a fresh registry.
func NewExporter(store *Store) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      name,
			Help:      help,
		})
	}

	return &Exporter{
		store:              store,
		registry:           reg,
		totalSessions:      gauge("sessions_total", "Coding sessions recorded"),
		totalRegressions:   gauge("regressions_caught_total", "Regressions caught across all sessions"),
		averageFeatures:    gauge("features_per_session", "Average features completed per session"),
		rejections:         gauge("rejections_total", "Validation attempts rejected"),
		multiFeature:       gauge("multi_feature_sessions_total", "Sessions that completed more than one feature"),
		incomplete:         gauge("incomplete_evaluation_sessions_total", "Sessions with an incomplete evaluation"),
		validationAttempts: gauge("validation_attempts_total", "Validation attempts recorded"),
		regressionRate:     gauge("regression_rate_percent", "Percentage of sessions that caught a regression"),
		rejectionRate:      gauge("rejection_rate_percent", "Percentage of validation attempts rejected"),
		integrityIssues:    gauge("integrity_issues", "Stored aggregates that disagree with the detail records"),
		velocityTrend: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "drift",
			Name:      "velocity_trend",
			Help:      "Current velocity trend (1 for the active trend)",
		}, []string{"trend"}),
	}
}

// Registry returns the registry holding the drift gauges.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Refresh reloads the store and updates every gauge.
func (e *Exporter) Refresh(ctx context.Context) {
	m := e.store.Load(ctx)
	ind := CalculateDriftIndicators(m, e.store.Tuning())

	e.totalSessions.Set(float64(m.TotalSessions))
	e.totalRegressions.Set(float64(m.TotalRegressionsCaught))
	e.averageFeatures.Set(m.AverageFeaturesPerSession)
	e.rejections.Set(float64(m.RejectionCount))
	e.multiFeature.Set(float64(m.MultiFeatureSessionCount))
	e.incomplete.Set(float64(m.IncompleteEvaluationCount))
	e.validationAttempts.Set(float64(len(m.ValidationAttempts)))
	e.regressionRate.Set(ind.RegressionRate)
	e.rejectionRate.Set(ind.RejectionRate)
	e.integrityIssues.Set(float64(len(ValidateIntegrity(m, e.store.Tuning().Epsilon))))

	for _, trend := range []string{TrendIncreasing, TrendStable, TrendDecreasing, TrendInsufficientData} {
		v := 0.0
		if trend == ind.VelocityTrend {
			v = 1
		}
		e.velocityTrend.WithLabelValues(trend).Set(v)
	}
}

// Handler serves the registry, refreshing the gauges before each scrape.
func (e *Exporter) Handler() http.Handler {
	inner := promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.Refresh(r.Context())
		inner.ServeHTTP(w, r)
	})
}

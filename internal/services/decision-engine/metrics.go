package decision_engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigo_decisions_total",
		Help: "Daily irrigation decisions produced, by field and outcome.",
	}, []string{"field", "outcome"})

	busyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigo_decision_busy_rejections_total",
		Help: "Decision requests rejected because the field was already being evaluated.",
	}, []string{"field"})

	decisionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigo_decision_errors_total",
		Help: "Decision runs aborted by a fatal error, by field.",
	}, []string{"field"})

	decisionSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "irrigo_decision_duration_seconds",
		Help:    "Wall time of one decision run including weather fetches.",
		Buckets: prometheus.DefBuckets,
	})

	depletionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "irrigo_root_zone_depletion_mm",
		Help: "Committed end-of-day root zone depletion per field.",
	}, []string{"field"})

	stressGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "irrigo_stress_coefficient",
		Help: "Stress coefficient Ks the latest decision was based on.",
	}, []string{"field"})

	et0Gauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "irrigo_et0_mm",
		Help: "Reference evapotranspiration of the latest decision day per field.",
	}, []string{"field"})

	dispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "irrigo_actuation_dispatch_failures_total",
		Help: "StartIrrigation calls that failed or were refused by the device service.",
	}, []string{"field"})
)

package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jacksonlee411/claimwatch/pkg/forensics"
	"github.com/jacksonlee411/claimwatch/pkg/rules"
)

const (
	outcomeOK           = "ok"
	outcomeInvalid      = "invalid"
	outcomePrecondition = "precondition"
	outcomeError        = "error"

	sectionRan   = "ran"
	sectionError = "error"
)

// Metrics are the analysis counters. A nil registerer yields working but
// unregistered collectors.
type Metrics struct {
	Analyses *prometheus.CounterVec
	Sections *prometheus.CounterVec
	Alerts   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimwatch_analyses_total",
			Help: "Analyses run, by source and outcome",
		}, []string{"source", "outcome"}),
		Sections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimwatch_report_sections_total",
			Help: "Report sections produced, by section and state",
		}, []string{"section", "state"}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "claimwatch_alerts_total",
			Help: "Alert rules fired, by severity",
		}, []string{"severity"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "claimwatch_analysis_duration_seconds",
			Help:    "Wall time of an analysis including ledger loading",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

func (m *Metrics) observe(source string, outcome string, started time.Time, a *analysisResult) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(source, outcome).Inc()
	m.Duration.WithLabelValues(source).Observe(time.Since(started).Seconds())
	if a == nil {
		return
	}
	errs := a.report.SectionErrors()
	for _, section := range a.report.Sections() {
		state := sectionRan
		if _, failed := errs[section]; failed {
			state = sectionError
		}
		m.Sections.WithLabelValues(section, state).Inc()
	}
	if f := a.report.SupplierFlow; f != nil && f.Subsupplier != nil {
		state := sectionRan
		if _, failed := errs[forensics.SectionSubsupplier]; failed {
			state = sectionError
		}
		m.Sections.WithLabelValues(forensics.SectionSubsupplier, state).Inc()
	}
	for _, alert := range a.alerts {
		m.Alerts.WithLabelValues(string(alert.Severity)).Inc()
	}
}

type analysisResult struct {
	report forensics.Report
	alerts []rules.Alert
}

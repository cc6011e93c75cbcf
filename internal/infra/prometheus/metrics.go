package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Redirect outcome label values.
const (
	OutcomeRedirect = "redirect"
	OutcomeFrozen   = "frozen"
	OutcomeNotFound = "not_found"
)

var (
	// RedirectsTotal counts redirect resolutions by terminal outcome.
	RedirectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortlink_redirects_total",
		Help: "Redirect resolutions by outcome.",
	}, []string{"outcome"})

	// ClicksRecorded counts activity rows successfully written.
	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_clicks_recorded_total",
		Help: "Click activity rows persisted.",
	})

	// ClickRecordFailures counts recording failures that were swallowed on
	// the redirect path. This is the observability sink for absorbed errors.
	ClickRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_click_record_failures_total",
		Help: "Click recording failures absorbed by the redirect path.",
	})
)

package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordmaster_session_events_total",
		Help: "Events applied to the session state, by kind.",
	}, []string{"kind"})
	decodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordmaster_session_decode_errors_total",
		Help: "Push payloads that could not be decoded, by topic.",
	}, []string{"topic"})
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordmaster_session_refresh_total",
		Help: "Full-state refreshes by result.",
	}, []string{"result"})
	submitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wordmaster_session_submissions_total",
		Help: "Turn submissions by result.",
	}, []string{"result"})
	comprehensionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wordmaster_session_comprehension_fetch_attempts_total",
		Help: "Comprehension question fetch attempts.",
	})
	watchersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wordmaster_session_watchers",
		Help: "Registered state watchers.",
	})
)

package api

import (
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wordmaster_api_request_duration_seconds",
		Help:    "Latency of REST calls to the game server.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})

	idSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
)

func observeRequest(path string, code int, start time.Time) {
	requestDuration.WithLabelValues(routeLabel(path), strconv.Itoa(code)).Observe(time.Since(start).Seconds())
}

// routeLabel collapses numeric path segments so ids do not explode label cardinality.
func routeLabel(path string) string {
	for {
		next := idSegment.ReplaceAllString(path, "/:id$1")
		if next == path {
			return path
		}
		path = next
	}
}

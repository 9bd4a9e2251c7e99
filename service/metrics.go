package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makecomics_generations_total",
		Help: "Comic page generations by outcome.",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "makecomics_generation_duration_seconds",
		Help:    "Time spent waiting on the image provider.",
		Buckets: []float64{1, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	})

	rateLimitDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "makecomics_ratelimit_denied_total",
		Help: "Free tier requests rejected by the weekly quota.",
	})

	archiveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "makecomics_archive_total",
		Help: "Page archive jobs by outcome.",
	}, []string{"outcome"})
)

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	if e, ok := AsError(err); ok {
		return string(e.Kind)
	}
	return string(KindInternal)
}

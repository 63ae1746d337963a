package main

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/strimzi/featuregates"
	"github.com/strimzi/featuregates/provider/remote"
	"github.com/strimzi/featuregates/refresh"
)

type instrumentation struct {
	remoteCalls     metrics.Counter
	remoteDuration  metrics.Histogram
	refreshes       metrics.Counter
	refreshDuration metrics.Histogram
	lastSuccess     metrics.Gauge
}

func newInstrumentation() *instrumentation {
	const namespace, subsystem = "strimzi", "feature_gates"
	return &instrumentation{
		remoteCalls: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_evaluations_total",
			Help:      "Remote backend evaluations, by outcome.",
		}, []string{"outcome"}),
		remoteDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_evaluation_duration_seconds",
			Help:      "Remote backend evaluation duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "refreshes_total",
			Help:      "Snapshot refresh attempts, by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "refresh_duration_seconds",
			Help:      "Snapshot resolution duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{"outcome"}),
		lastSuccess: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_successful_refresh_timestamp_seconds",
			Help:      "Unix time of the last published snapshot.",
		}, []string{}),
	}
}

func (m *instrumentation) options() []featuregates.Option {
	return []featuregates.Option{
		featuregates.WithRemoteOptions(remote.WithInstrumentation(m.remoteCalls, m.remoteDuration)),
		featuregates.WithRefreshOptions(refresh.WithInstrumentation(m.refreshes, m.refreshDuration, m.lastSuccess)),
	}
}

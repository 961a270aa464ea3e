package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	changes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "changes_total",
			Help:      "Restart triggers accepted by the coordinator, by source.",
		}, []string{"reason"},
	)
	restarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "restarts_total",
			Help:      "Replacement children launched after a change.",
		},
	)
	superseded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "superseded_total",
			Help:      "Restart attempts abandoned because a newer change arrived.",
		},
	)
	signalsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "signals_sent_total",
			Help:      "Termination signals sent to the tracked child.",
		},
	)
	launchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "launch_failures_total",
			Help:      "Child launches that failed to spawn.",
		},
	)
	childExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reloadr",
			Subsystem: "child",
			Name:      "exits_total",
			Help:      "Child exits by exit code (-1 when killed by a signal).",
		}, []string{"code"},
	)
	generation = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "generation",
			Help:      "Current change generation.",
		},
	)
	childRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "reloadr",
			Subsystem: "child",
			Name:      "running",
			Help:      "1 while the tracked child is alive.",
		},
	)
	terminationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "reloadr",
			Subsystem: "supervisor",
			Name:      "termination_seconds",
			Help:      "Time from a change to confirmed termination of the previous child.",
			Buckets:   []float64{.05, .1, .2, .5, 1, 2, 5, 10, 30},
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{changes, restarts, superseded, signalsSent, launchFailures, childExits, generation, childRunning, terminationSeconds}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncChange(reason string) {
	if regOK.Load() {
		changes.WithLabelValues(reason).Inc()
	}
}

func IncRestart() {
	if regOK.Load() {
		restarts.Inc()
	}
}

func IncSuperseded() {
	if regOK.Load() {
		superseded.Inc()
	}
}

func IncSignal() {
	if regOK.Load() {
		signalsSent.Inc()
	}
}

func IncLaunchFailure() {
	if regOK.Load() {
		launchFailures.Inc()
	}
}

func IncChildExit(code int) {
	if regOK.Load() {
		childExits.WithLabelValues(strconv.Itoa(code)).Inc()
	}
}

func SetGeneration(g uint64) {
	if regOK.Load() {
		generation.Set(float64(g))
	}
}

func SetChildRunning(running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		childRunning.Set(v)
	}
}

func ObserveTermination(seconds float64) {
	if regOK.Load() {
		terminationSeconds.Observe(seconds)
	}
}

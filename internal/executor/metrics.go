package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK        = "ok"
	outcomeExit      = "exit"
	outcomeTimeout   = "timeout"
	outcomeTransport = "transport"
)

var (
	execTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tweakd",
		Name:      "exec_total",
		Help:      "Backend shell commands executed, by outcome.",
	}, []string{"outcome"})

	execDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tweakd",
		Name:      "exec_duration_seconds",
		Help:      "Wall-clock duration of backend shell commands.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
	})
)

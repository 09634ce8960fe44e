package feature

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	patchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tweakd",
		Name:      "feature_patch_total",
		Help:      "Kernel image patch runs by result.",
	}, []string{"result"})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tweakd",
		Name:      "feature_persist_failures_total",
		Help:      "Per-feature persistence calls that failed after a successful patch.",
	})
)

package tweak

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var opTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tweakd",
	Name:      "tweak_operations_total",
	Help:      "Tweak load/save/apply operations by outcome.",
}, []string{"tweak", "op", "result"})

func countOp(tweak, op string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	opTotal.WithLabelValues(tweak, op, result).Inc()
}

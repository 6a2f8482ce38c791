package warmup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WarmupItems tracks warmed entities by family and result
var WarmupItems = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lms_cache_warmup_items_total",
		Help: "Total number of entities warmed in batch warm-ups",
	},
	[]string{"family", "result"},
)

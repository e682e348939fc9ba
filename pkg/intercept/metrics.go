package intercept

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// hookResults tracks hook outcomes by hook and action.
var hookResults = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "render_cache_hook_results_total",
		Help: "Total number of interceptor hook results by hook and action",
	},
	[]string{"hook", "action"}, // "before_render"/"after_render", "continue"/"respond"
)

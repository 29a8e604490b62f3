package chef

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefbot_turns_total",
		Help: "Chat turns completed, including degraded ones.",
	})
	turnFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chefbot_turn_fallbacks_total",
		Help: "Turns answered with the fixed fallback reply after a model failure.",
	})
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chefbot_tool_calls_total",
		Help: "Tool invocations requested by the model, by tool name.",
	}, []string{"tool"})
)

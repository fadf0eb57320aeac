package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var scheduleDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "irrigation_schedule_decisions_total",
		Help: "Schedules evaluated by the scheduler, by resulting action.",
	},
	[]string{"action"},
)

func observeDecision(action string) {
	scheduleDecisionsTotal.WithLabelValues(action).Inc()
}

package command

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "valve_commands_published_total",
		Help: "Total number of valve commands published, by outcome.",
	},
	[]string{"outcome"},
)

func observePublish(outcome string) {
	commandsPublishedTotal.WithLabelValues(outcome).Inc()
}

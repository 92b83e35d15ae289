// Package metrics holds the process-wide Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	Reservations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_reservations_total",
		Help: "Guest reservation attempts by result.",
	}, []string{"result"})

	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_webhook_events_total",
		Help: "Payment provider webhook deliveries by result.",
	}, []string{"result"})

	PurgeDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_purge_deleted_total",
		Help: "Records removed by purge runs by kind.",
	}, []string{"kind"})

	PurgeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "giftlist_purge_runs_total",
		Help: "Purge invocations by mode.",
	}, []string{"mode"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		Reservations,
		WebhookEvents,
		PurgeDeleted,
		PurgeRuns,
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Package metrics registers the engine's Prometheus collectors and serves
// the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FeedTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantd_feed_ticks_total", Help: "Trade records ingested from the feed"},
		[]string{"symbol"},
	)
	FeedReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "quantd_feed_reconnects_total", Help: "Streaming connection reconnects"},
	)
	BarsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantd_bars_built_total", Help: "Bars produced per minute cycle"},
		[]string{"symbol", "null"},
	)
	EventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantd_events_dispatched_total", Help: "Events drained from the queue"},
		[]string{"kind"},
	)
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "quantd_queue_depth", Help: "Events waiting in the queue"},
	)
	BackfillRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantd_backfill_requests_total", Help: "Historical range requests issued"},
		[]string{"symbol", "outcome"},
	)
	TradesOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantd_trades_opened_total", Help: "Trades created from accepted signals"},
		[]string{"symbol", "direction"},
	)
	TradesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "quantd_trades_completed_total", Help: "Trades reaching their closing condition"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		FeedTicksTotal,
		FeedReconnectsTotal,
		BarsBuiltTotal,
		EventsDispatchedTotal,
		QueueDepth,
		BackfillRequestsTotal,
		TradesOpenedTotal,
		TradesCompletedTotal,
	)
}

// Serve starts the scrape endpoint on addr. The returned server is owned by
// the caller and shut down by the supervisor.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the reconciliation pipeline.
// All Inc helpers are nil-receiver safe so callers can run without metrics
// (tests, tooling) by passing nil.
type Metrics struct {
	TicksAccepted     prometheus.Counter
	DuplicatesDropped prometheus.Counter
	MalformedDropped  prometheus.Counter
	StaleDropped      prometheus.Counter
	InboxDrops        prometheus.Counter
	WSReconnects      prometheus.Counter
	SnapshotFetches   prometheus.Counter
	SnapshotErrors    prometheus.Counter
	PrintsPersisted   prometheus.Counter
	StreamConnected   prometheus.Gauge
}

// NewMetrics registers and returns all metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_ticks_accepted_total",
			Help: "Total ticks accepted into the aggregate",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_duplicates_dropped_total",
			Help: "Total ticks dropped as duplicates (flagged or dedup key seen)",
		}),
		MalformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_malformed_dropped_total",
			Help: "Total ticks dropped for missing price/volume",
		}),
		StaleDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_stale_events_dropped_total",
			Help: "Total events dropped for a superseded symbol subscription",
		}),
		InboxDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_inbox_drops_total",
			Help: "Total events dropped because the engine inbox was full",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_ws_reconnects_total",
			Help: "Total stream reconnection attempts",
		}),
		SnapshotFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_snapshot_fetches_total",
			Help: "Total snapshot fetches completed",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_snapshot_errors_total",
			Help: "Total snapshot fetches that failed after retries",
		}),
		PrintsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tapefeed_prints_persisted_total",
			Help: "Total trade prints written to storage",
		}),
		StreamConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tapefeed_stream_connected",
			Help: "1 while the market stream connection is up",
		}),
	}

	reg.MustRegister(
		m.TicksAccepted,
		m.DuplicatesDropped,
		m.MalformedDropped,
		m.StaleDropped,
		m.InboxDrops,
		m.WSReconnects,
		m.SnapshotFetches,
		m.SnapshotErrors,
		m.PrintsPersisted,
		m.StreamConnected,
	)
	return m
}

func (m *Metrics) IncTicksAccepted() {
	if m != nil {
		m.TicksAccepted.Inc()
	}
}

func (m *Metrics) IncDuplicatesDropped() {
	if m != nil {
		m.DuplicatesDropped.Inc()
	}
}

func (m *Metrics) IncMalformedDropped() {
	if m != nil {
		m.MalformedDropped.Inc()
	}
}

func (m *Metrics) IncStaleDropped() {
	if m != nil {
		m.StaleDropped.Inc()
	}
}

func (m *Metrics) IncInboxDrops() {
	if m != nil {
		m.InboxDrops.Inc()
	}
}

func (m *Metrics) IncWSReconnects() {
	if m != nil {
		m.WSReconnects.Inc()
	}
}

func (m *Metrics) IncSnapshotFetches() {
	if m != nil {
		m.SnapshotFetches.Inc()
	}
}

func (m *Metrics) IncSnapshotErrors() {
	if m != nil {
		m.SnapshotErrors.Inc()
	}
}

func (m *Metrics) AddPrintsPersisted(n int) {
	if m != nil {
		m.PrintsPersisted.Add(float64(n))
	}
}

func (m *Metrics) SetStreamConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.StreamConnected.Set(1)
	} else {
		m.StreamConnected.Set(0)
	}
}

// Package metrics exposes order book activity as Prometheus metrics.
package metrics

import (
	match "github.com/0x5487/lob-backtest"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lob"

// Collector counts BookLog events. It is a match.PublishLog and reads each
// log synchronously, so pooled logs are safe to recycle after Publish.
type Collector struct {
	events   *prometheus.CounterVec
	trades   prometheus.Counter
	quantity prometheus.Counter
	notional prometheus.Counter
	sequence prometheus.Gauge
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "book_events_total",
			Help:      "Order book events by type",
		}, []string{"type"}),

		trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Total number of trades executed",
		}),

		quantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Total quantity traded",
		}),

		notional: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_notional_total",
			Help:      "Total price times quantity traded, in ticks",
		}),

		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_sequence_id",
			Help:      "Sequence id of the last published book event",
		}),
	}

	for _, collector := range []prometheus.Collector{c.events, c.trades, c.quantity, c.notional, c.sequence} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	// expose every type from the start
	for _, typ := range []match.LogType{match.LogTypeOpen, match.LogTypeMatch, match.LogTypeCancel, match.LogTypeAmend} {
		c.events.WithLabelValues(string(typ))
	}

	return c, nil
}

// Publish implements match.PublishLog.
func (c *Collector) Publish(logs ...*match.BookLog) {
	for _, log := range logs {
		c.events.WithLabelValues(string(log.Type)).Inc()
		if log.Type == match.LogTypeMatch {
			c.trades.Inc()
			c.quantity.Add(float64(log.Quantity))
			c.notional.Add(float64(log.Amount))
		}
		c.sequence.Set(float64(log.SequenceID))
	}
}

package dispatcher

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the dispatcher's instruments.
type Metrics struct {
	Connections metrics.Gauge
	// Events counts handled client events, labeled by event and status.
	Events     metrics.Counter
	Broadcasts metrics.Counter
}

// NewMetrics registers the dispatcher instruments with the default Prometheus registry.
func NewMetrics(namespace, subsystem string) Metrics {
	return Metrics{
		Connections: kitprometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections",
			Help:      "Number of connected clients.",
		}, nil),
		Events: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Client events handled, by event and status.",
		}, []string{"event", "status"}),
		Broadcasts: kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "broadcasts_total",
			Help:      "Download messages broadcast to all clients.",
		}, nil),
	}
}

func discardMetrics() Metrics {
	return Metrics{
		Connections: discard.NewGauge(),
		Events:      discard.NewCounter(),
		Broadcasts:  discard.NewCounter(),
	}
}

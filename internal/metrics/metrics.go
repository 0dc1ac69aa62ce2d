// Package metrics defines the Prometheus collectors exposed by the
// broker and worker processes on /metrics, the supplemental observability
// surface recovered from original_source's per-worker TOTAL/SUCCESS/FAIL
// log-file counters (§4.2, §6) and generalized into proper counters and
// gauges, following the prometheus/client_golang usage shown in the
// cuemby-warren example repo.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker collects the metrics one worker process exposes: request
// counts by outcome, mirroring the log-file's TOTAL/SUCCESS/FAIL
// fields, and a gauge of records currently held in its shard.
type Worker struct {
	RequestsTotal   *prometheus.CounterVec
	RecordsIngested prometheus.Counter
	Records         prometheus.Gauge
}

// NewWorker registers and returns a Worker collector set. tag
// distinguishes one worker's series from another's when multiple
// workers share a process (tests) or a scrape target.
func NewWorker(reg prometheus.Registerer, tag int) *Worker {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"worker": strconv.Itoa(tag)}

	return &Worker{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "epiquery",
			Subsystem:   "worker",
			Name:        "requests_total",
			Help:        "Query requests handled by this worker, by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		RecordsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "epiquery",
			Subsystem:   "worker",
			Name:        "records_ingested_total",
			Help:        "Patient records successfully ingested by this worker.",
			ConstLabels: labels,
		}),
		Records: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "epiquery",
			Subsystem:   "worker",
			Name:        "records",
			Help:        "Patient records currently held by this worker's shard.",
			ConstLabels: labels,
		}),
	}
}

// Broker collects the metrics the broker process exposes: query counts
// by verb, fan-out timeouts, and the number of workers currently
// registered.
type Broker struct {
	QueriesTotal      *prometheus.CounterVec
	FanoutTimeouts    prometheus.Counter
	WorkersRegistered prometheus.Gauge
}

// NewBroker registers and returns a Broker collector set.
func NewBroker(reg prometheus.Registerer) *Broker {
	factory := promauto.With(reg)

	return &Broker{
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "epiquery",
			Subsystem: "broker",
			Name:      "queries_total",
			Help:      "Client queries handled by the broker, by verb.",
		}, []string{"verb"}),
		FanoutTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "epiquery",
			Subsystem: "broker",
			Name:      "fanout_timeouts_total",
			Help:      "Fan-outs in which at least one worker timed out or could not be reached.",
		}),
		WorkersRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "epiquery",
			Subsystem: "broker",
			Name:      "workers_registered",
			Help:      "Workers currently registered with the broker.",
		}),
	}
}

package sinkmanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_sink_events_ingested_total",
		Help: "Total events accepted on the sink manager's event path",
	}, []string{"connector_id"})

	ContraflowEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_sink_contraflow_emitted_total",
		Help: "Total contraflow events fanned out, by action",
	}, []string{"connector_id", "action"})

	DrainQuorumSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamgate_sink_drain_quorum_size",
		Help: "Number of distinct source uids observed via Start signals",
	}, []string{"connector_id"})

	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamgate_sink_circuit_state",
		Help: "Current connection state: 0=established, 1=lost",
	}, []string{"connector_id"})

	SerializerFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_sink_serializer_frames_total",
		Help: "Total byte frames produced by the event serializer",
	}, []string{"connector_id", "stream_id"})

	EventProcessingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamgate_sink_event_duration_seconds",
		Help:    "Time taken by the user sink to handle one event",
		Buckets: prometheus.DefBuckets,
	}, []string{"connector_id"})
)

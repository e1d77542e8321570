// Package metrics holds the prometheus collectors of the sync server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meetsync"

var (
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions",
		Help:      "Sessions held in memory.",
	})

	AttachedDevices = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "attached_devices",
		Help:      "Devices currently attached, by kind.",
	}, []string{"kind"})

	Intents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intents_total",
		Help:      "Inbound device intents, by type and outcome.",
	}, []string{"type", "outcome"})

	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_frames_total",
		Help:      "Frames queued to devices, by event.",
	}, []string{"event"})

	DroppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_sends_total",
		Help:      "Sends that failed because a device was closed or too slow.",
	})

	Provisioning = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provisioning_seconds",
		Help:      "Meeting provisioning latency, by outcome kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

package hash_ring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ringPrometheusMetrics sync.Once

	ringNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hash_ring",
			Name:      "nodes",
			Help:      "Number of physical nodes currently present in the ring",
		},
		[]string{"ring"})
	ringPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hash_ring",
			Name:      "positions",
			Help:      "Number of virtual node positions currently stored in the ring",
		},
		[]string{"ring"})
	ringLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hash_ring",
			Name:      "lookups_total",
			Help:      "Number of key lookups, partitioned by whether a node was found",
		},
		[]string{"ring", "outcome"})
	ringMembershipChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hash_ring",
			Name:      "membership_changes_total",
			Help:      "Number of nodes added to or removed from the ring",
		},
		[]string{"ring", "operation"})
	ringPositionCollisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hash_ring",
			Name:      "position_collisions_total",
			Help:      "Number of times a node position overwrote the position of another node",
		},
		[]string{"ring"})
	ringMigratedKeys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hash_ring",
			Name:      "migrated_keys_total",
			Help:      "Number of tracked keys handed to the migrator after a membership change",
		},
		[]string{"ring", "outcome"})
)

type ringMetrics struct {
	nodes        prometheus.Gauge
	positions    prometheus.Gauge
	lookupFound  prometheus.Counter
	lookupEmpty  prometheus.Counter
	added        prometheus.Counter
	removed      prometheus.Counter
	collisions   prometheus.Counter
	migratedOK   prometheus.Counter
	migratedFail prometheus.Counter
}

func newRingMetrics(name string) *ringMetrics {
	ringPrometheusMetrics.Do(func() {
		prometheus.MustRegister(ringNodes)
		prometheus.MustRegister(ringPositions)
		prometheus.MustRegister(ringLookups)
		prometheus.MustRegister(ringMembershipChanges)
		prometheus.MustRegister(ringPositionCollisions)
		prometheus.MustRegister(ringMigratedKeys)
	})

	return &ringMetrics{
		nodes:        ringNodes.WithLabelValues(name),
		positions:    ringPositions.WithLabelValues(name),
		lookupFound:  ringLookups.WithLabelValues(name, "found"),
		lookupEmpty:  ringLookups.WithLabelValues(name, "empty"),
		added:        ringMembershipChanges.WithLabelValues(name, "add"),
		removed:      ringMembershipChanges.WithLabelValues(name, "remove"),
		collisions:   ringPositionCollisions.WithLabelValues(name),
		migratedOK:   ringMigratedKeys.WithLabelValues(name, "success"),
		migratedFail: ringMigratedKeys.WithLabelValues(name, "failure"),
	}
}

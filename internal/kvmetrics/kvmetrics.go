// Package kvmetrics centralizes the server's Prometheus instrumentation as
// package-level promauto vars, the shape used throughout friggdb (see
// friggdb/friggdb.go and friggdb/pool/pool.go).
package kvmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KeyspaceSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "friggkv",
		Name:      "keyspace_size",
		Help:      "Number of live keys in the top-level keyspace.",
	})

	TTLHeapSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "friggkv",
		Name:      "ttl_heap_size",
		Help:      "Number of entries currently tracked for expiration.",
	})

	ExpirationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "friggkv",
		Name:      "expirations_total",
		Help:      "Total number of keys removed by TTL expiration.",
	})

	RehashesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "friggkv",
		Name:      "hmap_rehashes_in_flight",
		Help:      "1 while the keyspace hash table is progressively rehashing, else 0.",
	})

	PoolQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "friggkv",
		Name:      "pool_queue_length",
		Help:      "Current number of jobs queued for the background offload pool.",
	})

	PoolJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "friggkv",
		Name:      "pool_jobs_total",
		Help:      "Total number of jobs handed to the background offload pool.",
	})

	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "friggkv",
		Name:      "connections_open",
		Help:      "Number of currently open client connections.",
	})

	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "friggkv",
		Name:      "commands_total",
		Help:      "Total number of commands processed, by command name and status.",
	}, []string{"command", "status"})
)

package engine

import (
	"flag"

	"github.com/grafana/friggkv/internal/keyspace"
	"github.com/grafana/friggkv/internal/workerpool"
)

// Config controls the server's wiring, following the teacher's
// RegisterFlagsAndApplyDefaults convention (see cmd/tempo/app.Config) but
// scoped to a listen address override (default 0.0.0.0:1234) plus tuning
// knobs for the worker pool, the large-set offload threshold, the per-tick
// expiration cap and the request queue depth.
type Config struct {
	ListenAddr            string
	PoolWorkers           int
	PoolQueueDepth        int
	LargeZSetThreshold    int
	MaxExpirationsPerTick int
	RequestQueueDepth     int
}

// RegisterFlags registers the server's flags against fs, prefixed the way
// the teacher's components register themselves under a shared FlagSet.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ListenAddr, "listen-address", "0.0.0.0:1234", "TCP address to listen on.")
	fs.IntVar(&c.PoolWorkers, "pool.workers", workerpool.DefaultConfig().Workers, "Background worker-pool size for offloaded large-value frees.")
	fs.IntVar(&c.PoolQueueDepth, "pool.queue-depth", workerpool.DefaultConfig().QueueDepth, "Background worker-pool job queue depth.")
	fs.IntVar(&c.LargeZSetThreshold, "keyspace.large-zset-threshold", keyspace.LargeZSetThreshold, "Sorted-set member count above which teardown is offloaded to the worker pool.")
	fs.IntVar(&c.MaxExpirationsPerTick, "keyspace.max-expirations-per-tick", keyspace.MaxExpirationsPerTick, "Maximum number of keys expired in a single event-loop tick.")
	fs.IntVar(&c.RequestQueueDepth, "engine.request-queue-depth", 1024, "Depth of the channel feeding parsed requests to the single keyspace-owning goroutine.")
}

func (c Config) withDefaults() Config {
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:1234"
	}
	if c.PoolWorkers <= 0 {
		c.PoolWorkers = workerpool.DefaultConfig().Workers
	}
	if c.PoolQueueDepth <= 0 {
		c.PoolQueueDepth = workerpool.DefaultConfig().QueueDepth
	}
	if c.LargeZSetThreshold <= 0 {
		c.LargeZSetThreshold = keyspace.LargeZSetThreshold
	}
	if c.MaxExpirationsPerTick <= 0 {
		c.MaxExpirationsPerTick = keyspace.MaxExpirationsPerTick
	}
	if c.RequestQueueDepth <= 0 {
		c.RequestQueueDepth = 1024
	}
	return c
}

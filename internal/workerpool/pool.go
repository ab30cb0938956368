// Package workerpool is a fixed-size worker pool draining a FIFO job queue,
// generalized from friggdb/pool.Pool. Unlike the teacher's pool (which
// scatters a batch of jobs and gathers a single proto.Message result back),
// this pool exists purely to run self-contained, fire-and-forget jobs — the
// background frees of large values the event loop unlinks from the keyspace
// before handing them off (spec §4.5). There is no result channel and no
// cancellation: a job must never touch anything the event loop goroutine
// also touches.
package workerpool

import (
	"github.com/grafana/friggkv/internal/kvmetrics"
	"go.uber.org/atomic"
)

// Job is a self-contained unit of work. It must not read or write any state
// shared with the event loop; by the time it is submitted the thing it
// operates on must already be unlinked from every shared structure.
type Job func()

// Config controls pool sizing.
type Config struct {
	Workers    int
	QueueDepth int
}

// DefaultConfig mirrors friggdb's pool defaults in spirit: a modest worker
// count and a deep but bounded queue.
func DefaultConfig() Config {
	return Config{Workers: 4, QueueDepth: 10_000}
}

// Pool runs submitted Jobs on a fixed set of background goroutines.
type Pool struct {
	queue   chan Job
	queued  atomic.Int64
	workers int
}

// New starts cfg.Workers goroutines pulling from a queue of depth
// cfg.QueueDepth and returns the running pool.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}

	p := &Pool{
		queue:   make(chan Job, cfg.QueueDepth),
		workers: cfg.Workers,
	}
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues job to run on some worker goroutine. It never blocks the
// caller beyond the channel send (the queue is deep but bounded by
// QueueDepth; a full queue blocks the submitter, which in this server is
// only ever the event loop goroutine handing off a large free — backpressure
// here is a deliberate signal that frees are falling behind, not a bug).
func (p *Pool) Submit(job Job) {
	p.queued.Inc()
	kvmetrics.PoolJobsTotal.Inc()
	kvmetrics.PoolQueueLength.Set(float64(p.queued.Load()))
	p.queue <- job
}

// QueueLength reports the number of jobs submitted but not yet completed.
func (p *Pool) QueueLength() int {
	return int(p.queued.Load())
}

func (p *Pool) worker() {
	for job := range p.queue {
		job()
		p.queued.Dec()
		kvmetrics.PoolQueueLength.Set(float64(p.queued.Load()))
	}
}

// Shutdown closes the queue; workers drain any already-queued jobs and
// exit. Submit must not be called again afterward.
func (p *Pool) Shutdown() {
	close(p.queue)
}

package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsAllJobs(t *testing.T) {
	p := New(Config{Workers: 4, QueueDepth: 100})

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup

	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			seen[i] = true
			mu.Unlock()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs did not complete in time")
	}

	require.Len(t, seen, n)
	for i := 0; i < n; i++ {
		assert.True(t, seen[i], "job %d did not run", i)
	}
}

func TestQueueLengthTracksInFlightJobs(t *testing.T) {
	p := New(Config{Workers: 1, QueueDepth: 10})

	release := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		<-release
	})
	<-started

	p.Submit(func() {})

	assert.Eventually(t, func() bool {
		return p.QueueLength() >= 1
	}, time.Second, time.Millisecond)

	close(release)
}

func TestDefaultConfigAppliedWhenUnset(t *testing.T) {
	p := New(Config{})
	assert.Equal(t, DefaultConfig().Workers, p.workers)
}

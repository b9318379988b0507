package workerspool

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Bounded(t *testing.T) {
	const maxParallelism = 3
	pool := New(maxParallelism)
	require.Equal(t, maxParallelism, pool.MaxParallelism())

	var running, maxRunning, count atomic.Int32
	for range 50 {
		require.True(t, pool.WaitToStart(nil, func() {
			current := running.Add(1)
			for {
				prev := maxRunning.Load()
				if current <= prev || maxRunning.CompareAndSwap(prev, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			runtime.Gosched()
			running.Add(-1)
			count.Add(1)
		}))
	}
	pool.Wait()
	assert.Equal(t, int32(50), count.Load())
	assert.LessOrEqual(t, maxRunning.Load(), int32(maxParallelism))
	assert.Equal(t, 0, pool.NumRunning())
}

func TestPool_DefaultParallelism(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), New(0).MaxParallelism())
	assert.True(t, New(-1).IsUnlimited())
}

func TestPool_Cancel(t *testing.T) {
	pool := New(1)
	release := make(chan struct{})
	require.True(t, pool.WaitToStart(nil, func() { <-release }))

	cancel := make(chan struct{})
	started := make(chan bool)
	go func() {
		started <- pool.WaitToStart(cancel, func() {})
	}()
	close(cancel)
	pool.Wake()
	select {
	case ok := <-started:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitToStart did not return after cancel")
	}
	close(release)
	pool.Wait()
}

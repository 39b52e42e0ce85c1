package ingest

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bill-analytics-service/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingLoader(n *int32) LoadFunc {
	return func() (*Snapshot, error) {
		atomic.AddInt32(n, 1)
		return &Snapshot{Table: models.NewTable(nil, nil), Report: &LoadReport{}}, nil
	}
}

func TestCacheHitAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache(clock, time.Minute)
	var loads int32

	_, hit, err := cache.GetOrCompute("s1", countingLoader(&loads))
	require.NoError(t, err)
	assert.False(t, hit)

	snapshot, hit, err := cache.GetOrCompute("s1", countingLoader(&loads))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), loads)
	assert.NotNil(t, snapshot.Report, "the load report is cached with the table")

	clock.Advance(time.Minute)
	_, hit, err = cache.GetOrCompute("s1", countingLoader(&loads))
	require.NoError(t, err)
	assert.False(t, hit, "entries expire at the TTL")
	assert.Equal(t, int32(2), loads)
}

func TestCacheInvalidate(t *testing.T) {
	cache := NewCache(nil, 0)
	var loads int32

	_, _, err := cache.GetOrCompute("s1", countingLoader(&loads))
	require.NoError(t, err)
	_, _, err = cache.GetOrCompute("s2", countingLoader(&loads))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	cache.Invalidate("s1")
	assert.Equal(t, 1, cache.Len())

	_, hit, err := cache.GetOrCompute("s1", countingLoader(&loads))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(3), loads)
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	boom := errors.New("boom")

	_, _, err := cache.GetOrCompute("s1", func() (*Snapshot, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())

	var loads int32
	_, hit, err := cache.GetOrCompute("s1", countingLoader(&loads))
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCachePurge(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewCache(clock, time.Minute)
	var loads int32

	_, _, _ = cache.GetOrCompute("old", countingLoader(&loads))
	clock.Advance(30 * time.Second)
	_, _, _ = cache.GetOrCompute("new", countingLoader(&loads))
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, cache.Purge())
	assert.Equal(t, 1, cache.Len())
}

func TestCacheCoalescesConcurrentRebuilds(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	var loads int32
	release := make(chan struct{})

	slow := func() (*Snapshot, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return &Snapshot{Table: models.NewTable(nil, nil)}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := cache.GetOrCompute("s1", slow)
			assert.NoError(t, err)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestCacheInvalidateDuringRebuild(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})
	stale := &Snapshot{Table: models.NewTable(nil, nil)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, hit, err := cache.GetOrCompute("s1", func() (*Snapshot, error) {
			close(started)
			<-release
			return stale, nil
		})
		assert.NoError(t, err)
		assert.False(t, hit)
		assert.Same(t, stale, got)
	}()

	<-started
	cache.Invalidate("s1")
	close(release)
	<-done

	assert.Zero(t, cache.Len(), "a rebuild invalidated mid-flight is not stored")

	fresh := &Snapshot{Table: models.NewTable(nil, nil)}
	got, hit, err := cache.GetOrCompute("s1", func() (*Snapshot, error) { return fresh, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Same(t, fresh, got)

	got, hit, err = cache.GetOrCompute("s1", func() (*Snapshot, error) { return stale, nil })
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, fresh, got)
}

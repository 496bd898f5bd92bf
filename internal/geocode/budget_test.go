package geocode

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

func TestBudget_ConcurrentConsumersNeverExceedLimit(t *testing.T) {
	b := NewBudget(10)
	var granted atomic.Int64
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.TryConsume() {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), granted.Load())
	assert.Equal(t, 10, b.Used())
	assert.Equal(t, 0, b.Remaining())
}

func TestBudget_NegativeLimit(t *testing.T) {
	b := NewBudget(-5)
	assert.False(t, b.TryConsume())
	assert.Equal(t, 0, b.Remaining())
}

func TestUpgradeQueue_NonBlockingAndDeduplicated(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	q := newUpgradeQueue(1, func(_ context.Context, job upgradeJob) {
		mu.Lock()
		processed = append(processed, job.CacheKey)
		mu.Unlock()
	})

	accepted, dup := q.enqueue(upgradeJob{CacheKey: "a"})
	assert.True(t, accepted)
	assert.False(t, dup)

	accepted, dup = q.enqueue(upgradeJob{CacheKey: "a"})
	assert.False(t, accepted)
	assert.True(t, dup)

	// Queue is full and the worker has not started: dropped, not blocked.
	accepted, dup = q.enqueue(upgradeJob{CacheKey: "b"})
	assert.False(t, accepted)
	assert.False(t, dup)

	q.start(context.Background())
	q.close()
	require.NoError(t, q.wait(context.Background()))

	accepted, _ = q.enqueue(upgradeJob{CacheKey: "c"})
	assert.False(t, accepted, "closed queue rejects jobs")
	assert.Equal(t, []string{"a"}, processed)
}

func TestRegistry_Select(t *testing.T) {
	a := &fakeProvider{name: "nominatim"}
	b := &fakeProvider{name: "google"}
	reg := NewRegistry(a, b)

	got, err := reg.Select([]string{"google", " Nominatim "})
	require.NoError(t, err)
	assert.Equal(t, []domain.GeocodeProvider{b, a}, got)

	_, err = reg.Select([]string{"bing"})
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), "google, nominatim")
}

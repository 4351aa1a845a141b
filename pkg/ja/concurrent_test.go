package ja

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flier/rcuja/pkg/rcu"
)

// TestConcurrentMixedWorkload runs 4 writers over disjoint key ranges while
// 4 readers continuously look up the union. Readers must never observe a
// chain under the wrong key; after the writers join, every inserted key must
// be present.
func TestConcurrentMixedWorkload(t *testing.T) {
	const (
		nrWriters   = 4
		nrReaders   = 4
		keysPerSpan = 512
	)

	flavor := rcu.NewGp()
	arr, err := NewWithFlavor(16, flavor)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		writing atomic.Int32
		failed  atomic.Bool
	)

	span := func(w int) uint64 { return uint64(w) * 0x1000 }

	writing.Store(nrWriters)

	for w := 0; w < nrWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			defer writing.Add(-1)

			base := span(w)
			for i := uint64(0); i < keysPerSpan; i++ {
				it := &testItem{key: base + i}
				if err := arr.Add(it.key, &it.Node); err != nil {
					failed.Store(true)
					return
				}
			}
		}(w)
	}

	for r := 0; r < nrReaders; r++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(seed))
			for writing.Load() > 0 {
				key := span(rng.Intn(nrWriters)) + uint64(rng.Intn(keysPerSpan))

				flavor.ReadLock()
				if head := arr.Lookup(key); head != nil && itemOf(head).key != key {
					failed.Store(true)
				}
				flavor.ReadUnlock()
			}
		}(int64(r))
	}

	wg.Wait()
	require.False(t, failed.Load())

	for w := 0; w < nrWriters; w++ {
		for i := uint64(0); i < keysPerSpan; i++ {
			key := span(w) + i
			head := arr.Lookup(key)
			require.NotNil(t, head, "key %#x missing after writers joined", key)
			assert.Equal(t, key, itemOf(head).key)
		}
	}

	require.NoError(t, arr.Destroy())
}

// TestConcurrentDuplicates chains the same key from many goroutines; the
// leaf-head mutex must serialize them without losing a node.
func TestConcurrentDuplicates(t *testing.T) {
	const (
		nrWriters    = 8
		addsPerGoro  = 100
		expectedSize = nrWriters * addsPerGoro
	)

	flavor := rcu.NewGp()
	arr, err := NewWithFlavor(32, flavor)
	require.NoError(t, err)

	const key = 0xdeadbe

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	for w := 0; w < nrWriters; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < addsPerGoro; i++ {
				it := &testItem{key: key}
				if arr.Add(key, &it.Node) != nil {
					failed.Store(true)
					return
				}
			}
		}()
	}
	wg.Wait()
	require.False(t, failed.Load())

	flavor.ReadLock()
	assert.Len(t, chainKeys(arr.Lookup(key)), expectedSize)
	flavor.ReadUnlock()

	require.NoError(t, arr.Destroy())
}

// TestConcurrentAddsUnderRecompaction hammers recompaction: every writer
// inserts into the same byte ranges, so the shared top-level nodes recompact
// under contention. Every key is looked up once the writers have joined.
func TestConcurrentAddsUnderRecompaction(t *testing.T) {
	const nrWriters = 8

	flavor := rcu.NewGp()
	arr, err := NewWithFlavor(16, flavor)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		failed atomic.Bool
	)
	for w := 0; w < nrWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Interleaved keys: all writers grow the same level-1
			// node through every shape.
			for i := uint64(0); i < 256; i++ {
				key := i<<8 | uint64(w)
				it := &testItem{key: key}
				if arr.Add(key, &it.Node) != nil {
					failed.Store(true)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	require.False(t, failed.Load())

	for w := 0; w < nrWriters; w++ {
		for i := uint64(0); i < 256; i++ {
			key := i<<8 | uint64(w)
			head := arr.Lookup(key)
			require.NotNil(t, head, "key %#x", key)
			assert.Equal(t, key, itemOf(head).key)
		}
	}

	require.NoError(t, arr.Destroy())
}

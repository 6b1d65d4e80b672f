package providers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPoolRoundRobin(t *testing.T) {
	pool := NewKeyPool([]string{"key-a", "key-b", "key-c"})

	got := []string{pool.Next(), pool.Next(), pool.Next(), pool.Next()}
	assert.Equal(t, []string{"key-a", "key-b", "key-c", "key-a"}, got)
}

func TestKeyPoolSingleKey(t *testing.T) {
	pool := NewKeyPool([]string{"only"})
	assert.Equal(t, "only", pool.Next())
	assert.Equal(t, "only", pool.Next())
}

func TestKeyPoolEmpty(t *testing.T) {
	pool := NewKeyPool(nil)
	assert.Equal(t, "", pool.Next())
	assert.Equal(t, 0, pool.Size())
}

func TestKeyPoolConcurrentDistribution(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	pool := NewKeyPool(keys)

	const calls = 400
	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := pool.Next()
			mu.Lock()
			counts[key]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Every key gets an equal share of an evenly divisible call count.
	for _, key := range keys {
		assert.Equal(t, calls/len(keys), counts[key])
	}
}

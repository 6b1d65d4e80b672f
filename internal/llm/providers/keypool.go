package providers

import "sync/atomic"

// KeyPool hands out API keys round-robin so traffic spreads across every
// key configured for a provider. The rotation counter is injected state
// owned by the pool, not a process-wide global.
type KeyPool struct {
	keys    []string
	counter atomic.Uint64
}

// NewKeyPool creates a pool over the given keys. An empty or nil slice
// yields a pool whose Next returns "".
func NewKeyPool(keys []string) *KeyPool {
	return &KeyPool{keys: keys}
}

// Next returns the next key in rotation. Safe for concurrent use.
func (p *KeyPool) Next() string {
	if len(p.keys) == 0 {
		return ""
	}
	n := p.counter.Add(1) - 1
	return p.keys[n%uint64(len(p.keys))]
}

// Size returns the number of keys in the pool.
func (p *KeyPool) Size() int { return len(p.keys) }

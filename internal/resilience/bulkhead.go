package resilience

import (
	"context"
	"sync"
)

// Bulkhead caps in-flight calls per key (per-provider) with a bounded
// semaphore, keyed lazily on first use.
type Bulkhead struct {
	mu          sync.Mutex
	limitPerKey int
	semaphores  map[string]chan struct{}
}

func NewBulkhead(limitPerKey int) *Bulkhead {
	return &Bulkhead{limitPerKey: limitPerKey, semaphores: make(map[string]chan struct{})}
}

func (b *Bulkhead) semaphoreFor(key string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	sem, ok := b.semaphores[key]
	if !ok {
		sem = make(chan struct{}, b.limitPerKey)
		b.semaphores[key] = sem
	}
	return sem
}

// Run executes fn holding one of key's limited slots, blocking until a slot
// frees up or ctx is cancelled.
func (b *Bulkhead) Run(ctx context.Context, key string, fn func() error) error {
	sem := b.semaphoreFor(key)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-sem }()
	return fn()
}

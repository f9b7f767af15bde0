package runtime

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/semaphore"
)

// admissionPool gates entry into the in-process VM's capacity pool with an
// owner-keyed weight: the more executions an owner already has in flight,
// the heavier its next acquisition, so a single tenant's burst queues
// behind everyone else instead of draining the pool.
type admissionPool struct {
	sem      *semaphore.Weighted
	capacity int64

	mu     sync.Mutex
	owners *lru.Cache[string, *ownerState]
}

type ownerState struct {
	inflight int64
}

func newAdmissionPool(capacity int64, ownerCacheSize int) (*admissionPool, error) {
	owners, err := lru.New[string, *ownerState](ownerCacheSize)
	if err != nil {
		return nil, err
	}
	return &admissionPool{
		sem:      semaphore.NewWeighted(capacity),
		capacity: capacity,
		owners:   owners,
	}, nil
}

// acquire blocks until the pool admits the execution or ctx is done. The
// returned release func must be called exactly once.
func (p *admissionPool) acquire(ctx context.Context, ownerID string) (func(), error) {
	weight := p.admissionWeight(ownerID)
	if err := p.sem.Acquire(ctx, weight); err != nil {
		return nil, err
	}
	p.adjustInflight(ownerID, 1)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		p.adjustInflight(ownerID, -1)
		p.sem.Release(weight)
	}, nil
}

func (p *admissionPool) admissionWeight(ownerID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	weight := int64(1)
	if state, ok := p.owners.Get(ownerID); ok {
		weight += state.inflight
	}
	if weight > p.capacity {
		weight = p.capacity
	}
	return weight
}

func (p *admissionPool) adjustInflight(ownerID string, delta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.owners.Get(ownerID)
	if !ok {
		state = &ownerState{}
		p.owners.Add(ownerID, state)
	}
	state.inflight += delta
	if state.inflight < 0 {
		state.inflight = 0
	}
}

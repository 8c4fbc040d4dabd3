package options

import (
	"context"
	"sync"

	"elicate/internal/logger"
)

// KeyValueStore is the external persistence collaborator.
// Keys follow the StorageKey format; values are JSON documents.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type persistOp struct {
	key    string
	value  string
	delete bool
	done   chan struct{}
}

// persister writes override mutations to a KeyValueStore on a single
// goroutine, so writes reach the store in mutation order. The queue is
// unbounded: enqueueing never waits on the backend.
type persister struct {
	kv KeyValueStore

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []persistOp
	closed bool
	wg     sync.WaitGroup
}

func newPersister(kv KeyValueStore) *persister {
	p := &persister{kv: kv}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(1)
	go p.run()
	return p
}

// next blocks until an op is queued. It returns false once the persister is
// closed and the queue has drained.
func (p *persister) next() (persistOp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return persistOp{}, false
	}
	op := p.queue[0]
	p.queue[0] = persistOp{}
	p.queue = p.queue[1:]
	return op, true
}

func (p *persister) run() {
	defer p.wg.Done()

	ctx := context.Background()
	for {
		op, ok := p.next()
		if !ok {
			return
		}
		if op.done != nil {
			close(op.done)
			continue
		}

		var err error
		if op.delete {
			err = p.kv.Delete(ctx, op.key)
		} else {
			err = p.kv.Set(ctx, op.key, op.value)
		}
		if err != nil {
			logger.Warn("Failed to persist option override", "key", op.key, "error", err)
		}
	}
}

func (p *persister) enqueue(op persistOp) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}
	p.queue = append(p.queue, op)
	p.cond.Signal()
	return true
}

func (p *persister) set(key, value string) {
	if !p.enqueue(persistOp{key: key, value: value}) {
		logger.Warn("Option override dropped after close", "key", key)
	}
}

func (p *persister) remove(key string) {
	if !p.enqueue(persistOp{key: key, delete: true}) {
		logger.Warn("Option override removal dropped after close", "key", key)
	}
}

// flush blocks until every write queued before the call has been attempted.
func (p *persister) flush(ctx context.Context) error {
	done := make(chan struct{})
	if !p.enqueue(persistOp{done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains pending writes and stops the worker.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
}

// Package pool wraps sync.Pool with strong typing and optional Reset()
// support, so hot request paths reuse objects without interface{} casts.
package pool

import "sync"

// Resettable objects are zeroed automatically on Put.
type Resettable interface {
	Reset()
}

type Pool[T any] struct {
	pool sync.Pool
}

// NewLitePool builds a typed pool around the given constructor. The
// constructor must return a usable, non-nil value.
func NewLitePool[T any](newFn func() T) *Pool[T] {
	if newFn == nil {
		panic("litepool: constructor must not be nil")
	}
	if any(newFn()) == nil {
		panic("litepool: constructor returned nil")
	}
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
	}
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // safe, only the validated constructor feeds the pool
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}

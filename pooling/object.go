package pooling

import (
	"context"
	"time"

	"github.com/jackc/puddle/v2"
)

// Object is a value checked out of a Pool. It is owned by a single caller
// and must be handed back with Release or removed from the pool with Take.
type Object[T any] struct {
	res  *puddle.Resource[*entry[T]]
	pool *Pool[T]
}

// Value returns the pooled value. It panics after Release or Take.
func (o *Object[T]) Value() T {
	if o.res == nil {
		panic(ErrObjectReleased)
	}
	return o.res.Value().value
}

func (o *Object[T]) Released() bool {
	return o.res == nil
}

func (o *Object[T]) Metrics() Metrics {
	if o.res == nil {
		return Metrics{}
	}
	return o.res.Value().metrics
}

// Release recycles the value and returns it to the idle set. If the
// Manager rejects it, the value is destroyed and the *RecycleError is
// returned; the caller holds nothing either way.
func (o *Object[T]) Release(ctx context.Context) error {
	if o.res == nil {
		return ErrObjectReleased
	}
	res := o.res
	o.res = nil
	p := o.pool
	recycleCtx, cancel := p.timeout(ctx, p.config.Timeouts.Recycle)
	defer cancel()
	e := res.Value()
	if err := p.manager.Recycle(recycleCtx, e.value); err != nil {
		res.Destroy()
		return p.recycleError(ctx, recycleCtx, err)
	}
	e.metrics.RecycledAt = time.Now()
	e.metrics.RecycleCount++
	res.Release()
	return nil
}

func (p *Pool[T]) recycleError(ctx, recycleCtx context.Context, err error) error {
	if ctx.Err() == nil && recycleCtx.Err() == context.DeadlineExceeded {
		return &PoolError{Kind: ErrorTimeout, Timeout: TimeoutRecycle, Err: err}
	}
	if recycleErr, ok := err.(*RecycleError); ok {
		return recycleErr
	}
	return NewRecycleBackend(err)
}

// Take removes the value from the pool for good. The pool frees its slot
// and the caller becomes responsible for closing the value.
func (o *Object[T]) Take() T {
	if o.res == nil {
		panic(ErrObjectReleased)
	}
	res := o.res
	o.res = nil
	value := res.Value().value
	res.Hijack()
	return value
}

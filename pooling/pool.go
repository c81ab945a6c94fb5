package pooling

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/juju/errors"
)

const maxPoolSize = math.MaxInt32

// Builder collects the pool configuration. Nothing is validated before
// Build.
type Builder[T any] struct {
	manager Manager[T]
	config  Config
	runtime Runtime
}

func NewBuilder[T any](manager Manager[T]) *Builder[T] {
	return &Builder[T]{
		manager: manager,
		config:  DefaultConfig(),
	}
}

func (b *Builder[T]) Config(config Config) *Builder[T] {
	b.config = config
	return b
}

func (b *Builder[T]) MaxSize(maxSize int) *Builder[T] {
	b.config.MaxSize = maxSize
	return b
}

func (b *Builder[T]) Timeouts(timeouts Timeouts) *Builder[T] {
	b.config.Timeouts = timeouts
	return b
}

func (b *Builder[T]) Runtime(runtime Runtime) *Builder[T] {
	b.runtime = runtime
	return b
}

func (b *Builder[T]) Build() (*Pool[T], error) {
	if b.config.MaxSize < 1 || b.config.MaxSize > maxPoolSize {
		return nil, &BuildError{Kind: BuildInvalidSize, MaxSize: b.config.MaxSize}
	}
	if b.runtime == nil && !b.config.Timeouts.isZero() {
		return nil, &BuildError{Kind: BuildNoRuntime, MaxSize: b.config.MaxSize}
	}
	p := &Pool[T]{
		manager: b.manager,
		config:  b.config,
		runtime: b.runtime,
	}
	pool, err := puddle.NewPool(&puddle.Config[*entry[T]]{
		Constructor: p.construct,
		Destructor:  p.destruct,
		MaxSize:     int32(b.config.MaxSize),
	})
	if err != nil {
		return nil, &BuildError{Kind: BuildBackend, MaxSize: b.config.MaxSize, Err: err}
	}
	p.pool = pool
	return p, nil
}

type entry[T any] struct {
	value   T
	metrics Metrics
}

// Pool hands out values created by its Manager.
type Pool[T any] struct {
	manager Manager[T]
	config  Config
	runtime Runtime
	pool    *puddle.Pool[*entry[T]]
}

// Get checks a value out of the pool, creating one if no idle value is
// available and the pool is below capacity. A creation started on behalf
// of a caller that gave up still runs to completion and its value is kept
// idle.
func (p *Pool[T]) Get(ctx context.Context) (*Object[T], error) {
	waitCtx, cancel := p.timeout(ctx, p.config.Timeouts.Wait)
	defer cancel()
	res, err := p.pool.Acquire(waitCtx)
	if err != nil {
		return nil, p.acquireError(ctx, err)
	}
	return &Object[T]{res: res, pool: p}, nil
}

func (p *Pool[T]) acquireError(ctx context.Context, err error) error {
	if _, ok := err.(*PoolError); ok {
		return err
	}
	if err == puddle.ErrClosedPool {
		return &PoolError{Kind: ErrorClosed}
	}
	if err == context.DeadlineExceeded || err == context.Canceled {
		if ctx.Err() != nil {
			return errors.Trace(ctx.Err())
		}
		return &PoolError{Kind: ErrorTimeout, Timeout: TimeoutWait, Err: err}
	}
	return &PoolError{Kind: ErrorBackend, Err: err}
}

func (p *Pool[T]) construct(ctx context.Context) (*entry[T], error) {
	createCtx, cancel := p.timeout(ctx, p.config.Timeouts.Create)
	defer cancel()
	value, err := p.manager.Create(createCtx)
	if err != nil {
		if ctx.Err() == nil && createCtx.Err() == context.DeadlineExceeded {
			return nil, &PoolError{Kind: ErrorTimeout, Timeout: TimeoutCreate, Err: err}
		}
		return nil, &PoolError{Kind: ErrorBackend, Err: err}
	}
	return &entry[T]{
		value:   value,
		metrics: Metrics{CreatedAt: time.Now()},
	}, nil
}

func (p *Pool[T]) destruct(e *entry[T]) {
	closeValue(e.value)
}

func closeValue(value interface{}) {
	if closer, ok := value.(io.Closer); ok {
		closer.Close()
	}
}

func (p *Pool[T]) timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 || p.runtime == nil {
		return ctx, func() {}
	}
	return p.runtime.Timeout(ctx, d)
}

func (p *Pool[T]) Manager() Manager[T] {
	return p.manager
}

func (p *Pool[T]) Config() Config {
	return p.config
}

func (p *Pool[T]) Status() Status {
	stat := p.pool.Stat()
	return Status{
		MaxSize:      int(stat.MaxResources()),
		Size:         int(stat.TotalResources()),
		Available:    int(stat.IdleResources()),
		Acquired:     int(stat.AcquiredResources()),
		Constructing: int(stat.ConstructingResources()),
	}
}

// Close destroys idle values and waits for checked out values to be
// released. Values released after Close are destroyed.
func (p *Pool[T]) Close() {
	p.pool.Close()
}

package pooling

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testValue struct {
	id     int
	closed int32
}

func (v *testValue) Close() error {
	atomic.StoreInt32(&v.closed, 1)
	return nil
}

func (v *testValue) isClosed() bool {
	return atomic.LoadInt32(&v.closed) == 1
}

type testManager struct {
	mu          sync.Mutex
	created     []*testValue
	createDelay time.Duration
	createErr   error
	recycleErr  error

	creating    int32
	maxCreating int32
}

func (m *testManager) Create(ctx context.Context) (*testValue, error) {
	n := atomic.AddInt32(&m.creating, 1)
	defer atomic.AddInt32(&m.creating, -1)
	for {
		max := atomic.LoadInt32(&m.maxCreating)
		if n <= max || atomic.CompareAndSwapInt32(&m.maxCreating, max, n) {
			break
		}
	}
	if m.createDelay > 0 {
		select {
		case <-time.After(m.createDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := &testValue{id: len(m.created) + 1}
	m.created = append(m.created, v)
	return v, nil
}

func (m *testManager) Recycle(ctx context.Context, v *testValue) error {
	return m.recycleErr
}

func (m *testManager) createdCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.created)
}

func TestBuildInvalidSize(t *testing.T) {
	_, err := NewBuilder[*testValue](&testManager{}).MaxSize(0).Build()
	require.Error(t, err)
	buildErr, ok := err.(*BuildError)
	require.True(t, ok)
	assert.Equal(t, BuildInvalidSize, buildErr.Kind)
	assert.Equal(t, 0, buildErr.MaxSize)
}

func TestBuildNoRuntime(t *testing.T) {
	_, err := NewBuilder[*testValue](&testManager{}).
		Config(Config{MaxSize: 2, Timeouts: Timeouts{Wait: time.Second}}).
		Build()
	require.Error(t, err)
	buildErr, ok := err.(*BuildError)
	require.True(t, ok)
	assert.Equal(t, BuildNoRuntime, buildErr.Kind)

	p, err := NewBuilder[*testValue](&testManager{}).
		Config(Config{MaxSize: 2, Timeouts: Timeouts{Wait: time.Second}}).
		Runtime(ContextRuntime).
		Build()
	require.NoError(t, err)
	p.Close()
}

func TestDefaultConfig(t *testing.T) {
	p, err := NewBuilder[*testValue](&testManager{}).Build()
	require.NoError(t, err)
	defer p.Close()
	assert.True(t, p.Config().MaxSize >= 4)
	assert.Equal(t, p.Config().MaxSize, p.Status().MaxSize)
}

func TestGetReusesRecycledValue(t *testing.T) {
	m := &testManager{}
	p, err := NewBuilder[*testValue](m).MaxSize(2).Build()
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	obj, err := p.Get(ctx)
	require.NoError(t, err)
	first := obj.Value()
	assert.False(t, obj.Metrics().CreatedAt.IsZero())
	require.NoError(t, obj.Release(ctx))
	assert.True(t, obj.Released())
	assert.Equal(t, ErrObjectReleased, obj.Release(ctx))

	obj, err = p.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, first, obj.Value())
	assert.Equal(t, 1, obj.Metrics().RecycleCount)
	assert.False(t, first.isClosed())
	require.NoError(t, obj.Release(ctx))
	assert.Equal(t, 1, m.createdCount())

	status := p.Status()
	assert.Equal(t, 1, status.Size)
	assert.Equal(t, 1, status.Available)
	assert.Equal(t, 0, status.Acquired)
}

func TestRecycleFailureDiscardsValue(t *testing.T) {
	m := &testManager{recycleErr: NewRecycleMessage("bad reply %q", "PANG")}
	p, err := NewBuilder[*testValue](m).MaxSize(2).Build()
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	obj, err := p.Get(ctx)
	require.NoError(t, err)
	first := obj.Value()
	err = obj.Release(ctx)
	require.Error(t, err)
	recycleErr, ok := err.(*RecycleError)
	require.True(t, ok)
	assert.Equal(t, `bad reply "PANG"`, recycleErr.Message)
	assert.Eventually(t, first.isClosed, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return p.Status().Size == 0 }, time.Second, 5*time.Millisecond)

	m.recycleErr = nil
	obj, err = p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, obj.Value())
	require.NoError(t, obj.Release(ctx))
	assert.Equal(t, 2, m.createdCount())
}

func TestRecycleBackendError(t *testing.T) {
	cause := errors.New("broken pipe")
	m := &testManager{recycleErr: cause}
	p, err := NewBuilder[*testValue](m).MaxSize(1).Build()
	require.NoError(t, err)
	defer p.Close()

	obj, err := p.Get(context.Background())
	require.NoError(t, err)
	err = obj.Release(context.Background())
	recycleErr, ok := err.(*RecycleError)
	require.True(t, ok)
	assert.Equal(t, cause, recycleErr.Err)
	assert.Empty(t, recycleErr.Message)
}

func TestTakeRemovesValueFromPool(t *testing.T) {
	m := &testManager{}
	p, err := NewBuilder[*testValue](m).MaxSize(2).Build()
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	a, err := p.Get(ctx)
	require.NoError(t, err)
	b, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Status().Size)

	taken := a.Take()
	assert.True(t, a.Released())
	assert.Equal(t, 1, p.Status().Size)
	assert.False(t, taken.isClosed())
	assert.Panics(t, func() { a.Value() })

	require.NoError(t, b.Release(ctx))
	c, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, taken, c.Value())
	d, err := p.Get(ctx)
	require.NoError(t, err)
	assert.NotSame(t, taken, d.Value())
	assert.Equal(t, 3, m.createdCount())
	require.NoError(t, c.Release(ctx))
	require.NoError(t, d.Release(ctx))
}

func TestCreateErrorIsBackend(t *testing.T) {
	cause := errors.New("connection refused")
	p, err := NewBuilder[*testValue](&testManager{createErr: cause}).MaxSize(1).Build()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Get(context.Background())
	require.Error(t, err)
	poolErr, ok := err.(*PoolError)
	require.True(t, ok)
	assert.Equal(t, ErrorBackend, poolErr.Kind)
	assert.Equal(t, cause, poolErr.Err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, p.Status().Size)
}

func TestWaitTimeout(t *testing.T) {
	p, err := NewBuilder[*testValue](&testManager{}).
		Config(Config{MaxSize: 1, Timeouts: Timeouts{Wait: 20 * time.Millisecond}}).
		Runtime(ContextRuntime).
		Build()
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	held, err := p.Get(ctx)
	require.NoError(t, err)
	_, err = p.Get(ctx)
	require.Error(t, err)
	assert.True(t, IsTimeout(err, TimeoutWait))
	assert.False(t, IsTimeout(err, TimeoutCreate))
	require.NoError(t, held.Release(ctx))
}

func TestCreateTimeout(t *testing.T) {
	p, err := NewBuilder[*testValue](&testManager{createDelay: time.Second}).
		Config(Config{MaxSize: 1, Timeouts: Timeouts{Create: 20 * time.Millisecond}}).
		Runtime(ContextRuntime).
		Build()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Get(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err, TimeoutCreate))
}

func TestCanceledGetLetsCreationFinish(t *testing.T) {
	m := &testManager{createDelay: 50 * time.Millisecond}
	p, err := NewBuilder[*testValue](m).MaxSize(1).Build()
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = p.Get(ctx)
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, errors.Cause(err))

	require.Eventually(t, func() bool {
		return p.Status().Available == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.createdCount())

	obj, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, obj.Value().id)
	require.NoError(t, obj.Release(context.Background()))
}

func TestConcurrentGetIsBoundedByMaxSize(t *testing.T) {
	m := &testManager{createDelay: 10 * time.Millisecond}
	p, err := NewBuilder[*testValue](m).MaxSize(5).Build()
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			obj, err := p.Get(ctx)
			if err != nil {
				errs <- err
				return
			}
			time.Sleep(5 * time.Millisecond)
			errs <- obj.Release(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, atomic.LoadInt32(&m.maxCreating) <= 5)
	assert.True(t, m.createdCount() <= 5)
	assert.True(t, p.Status().Size <= 5)
}

func TestClosedPool(t *testing.T) {
	m := &testManager{}
	p, err := NewBuilder[*testValue](m).MaxSize(1).Build()
	require.NoError(t, err)

	obj, err := p.Get(context.Background())
	require.NoError(t, err)
	v := obj.Value()
	require.NoError(t, obj.Release(context.Background()))
	p.Close()
	assert.True(t, v.isClosed())

	_, err = p.Get(context.Background())
	require.Error(t, err)
	assert.True(t, IsClosed(err))
}

package cluster

import (
	"context"

	"github.com/ltick/tick-rediscluster/metrics"
	"github.com/ltick/tick-rediscluster/pooling"
)

type PoolBuilder struct {
	builder *pooling.Builder[Conn]
	manager *Manager
}

func NewPoolBuilder(manager *Manager) *PoolBuilder {
	return &PoolBuilder{
		builder: pooling.NewBuilder[Conn](manager),
		manager: manager,
	}
}

func (b *PoolBuilder) Config(config pooling.Config) *PoolBuilder {
	b.builder.Config(config)
	return b
}

func (b *PoolBuilder) Runtime(runtime pooling.Runtime) *PoolBuilder {
	b.builder.Runtime(runtime)
	return b
}

func (b *PoolBuilder) Manager() *Manager {
	return b.manager
}

// Build returns a *pooling.BuildError on failure.
func (b *PoolBuilder) Build() (*Pool, error) {
	pool, err := b.builder.Build()
	if err != nil {
		return nil, err
	}
	return &Pool{pool: pool, manager: b.manager}, nil
}

// Pool hands out cluster Connections.
type Pool struct {
	pool    *pooling.Pool[Conn]
	manager *Manager
}

// Get returns an idle connection or creates one. Errors are
// *pooling.PoolError values, or the context error when ctx ended first.
func (p *Pool) Get(ctx context.Context) (*Connection, error) {
	obj, err := p.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	return newConnection(obj), nil
}

func (p *Pool) Manager() *Manager {
	return p.manager
}

func (p *Pool) Status() pooling.Status {
	return p.pool.Status()
}

// Collector exports Status as prometheus gauges labelled pool=name.
func (p *Pool) Collector(namespace, name string) *metrics.PoolCollector {
	return metrics.NewPoolCollector(namespace, name, p)
}

// Close waits for checked out connections, closes every pooled connection
// and then the cluster client.
func (p *Pool) Close() error {
	p.pool.Close()
	return p.manager.Close()
}

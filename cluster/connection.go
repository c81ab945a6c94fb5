package cluster

import (
	"context"

	"github.com/juju/errors"
	"github.com/ltick/tick-rediscluster/pooling"
)

// ErrConnectionReleased is returned by every Connection method once the
// connection went back to the pool or was taken out of it.
var ErrConnectionReleased = errors.New("cluster: connection already released")

// Connection is a pooled Conn checked out by a caller. Close hands it back
// to the pool; Take removes it from the pool for good. Either way the
// Connection is unusable afterwards.
type Connection struct {
	obj *pooling.Object[Conn]
}

func newConnection(obj *pooling.Object[Conn]) *Connection {
	return &Connection{obj: obj}
}

func (c *Connection) conn() (Conn, error) {
	if c.obj == nil || c.obj.Released() {
		return nil, ErrConnectionReleased
	}
	return c.obj.Value(), nil
}

func (c *Connection) Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := c.conn()
	if err != nil {
		return nil, err
	}
	return conn.Do(ctx, cmd, args...)
}

func (c *Connection) Pipeline(ctx context.Context, cmds []Command, offset, count int) ([]interface{}, error) {
	conn, err := c.conn()
	if err != nil {
		return nil, err
	}
	return conn.Pipeline(ctx, cmds, offset, count)
}

// DB returns the logical database index, 0 once released.
func (c *Connection) DB() int64 {
	conn, err := c.conn()
	if err != nil {
		return 0
	}
	return conn.DB()
}

func (c *Connection) IsOpen() bool {
	conn, err := c.conn()
	if err != nil {
		return false
	}
	return conn.IsOpen()
}

func (c *Connection) CheckConnection(ctx context.Context) bool {
	conn, err := c.conn()
	if err != nil {
		return false
	}
	return conn.CheckConnection(ctx)
}

// Conn borrows the underlying connection. It stays owned by the pool.
func (c *Connection) Conn() (Conn, error) {
	return c.conn()
}

func (c *Connection) Metrics() pooling.Metrics {
	if c.obj == nil {
		return pooling.Metrics{}
	}
	return c.obj.Metrics()
}

// Release recycles the connection and returns it to the pool. A
// connection failing its health check is closed and the *RecycleError is
// returned.
func (c *Connection) Release(ctx context.Context) error {
	if c.obj == nil || c.obj.Released() {
		return ErrConnectionReleased
	}
	return c.obj.Release(ctx)
}

// Close is Release with a background context, so that a Connection can be
// handled like a redigo connection.
func (c *Connection) Close() error {
	return c.Release(context.Background())
}

// Take detaches the connection from the pool. The pool frees its slot and
// the caller must close the returned Conn.
func (c *Connection) Take() (Conn, error) {
	if c.obj == nil || c.obj.Released() {
		return nil, ErrConnectionReleased
	}
	return c.obj.Take(), nil
}

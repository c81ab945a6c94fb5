package cluster

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/juju/errors"
	"github.com/mna/redisc"
)

const (
	maxAttempts   = 16
	tryAgainDelay = 10 * time.Millisecond
)

var (
	errPipelineRange = "cluster: pipeline range [%d:%d] out of %d commands"
	errBroadcast     = "cluster: broadcast '%s' to '%s'"
	errTooManyRedirs = "cluster: '%s' still redirected after %d attempts"
	errConnClosed    = errors.New("cluster: connection closed")
)

// ClusterConn is the Conn returned by ClusterClient. It owns one redigo
// connection per master node and sends each command to the node owning the
// slot of its first argument, following MOVED and ASK redirections.
// Broadcasts run over the same connections, so a failed node session
// fails them too. A ClusterConn is not safe for concurrent use.
type ClusterConn struct {
	router router
	nodes  map[string]redis.Conn
	addrs  []string
	closed bool
}

// dialClusterConn dials every master known to r.
func dialClusterConn(ctx context.Context, r router) (*ClusterConn, error) {
	masters := r.masters()
	if len(masters) == 0 {
		return nil, errors.New(errNoMaster)
	}
	c := &ClusterConn{
		router: r,
		nodes:  make(map[string]redis.Conn, len(masters)),
	}
	for _, addr := range masters {
		if _, err := c.node(ctx, addr); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

// node returns the connection to addr, dialing it the first time.
func (c *ClusterConn) node(ctx context.Context, addr string) (redis.Conn, error) {
	if conn, ok := c.nodes[addr]; ok {
		return conn, nil
	}
	conn, err := c.router.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.nodes[addr] = conn
	c.addrs = append(c.addrs, addr)
	sort.Strings(c.addrs)
	return conn, nil
}

// route picks the node for slot, falling back to any owned node when the
// slot is unknown or the command has no key. A wrong guess is corrected by
// the MOVED reply.
func (c *ClusterConn) route(slot int) string {
	if slot >= 0 {
		if addr := c.router.owner(slot); addr != "" {
			return addr
		}
	}
	return c.addrs[0]
}

func commandSlot(args []interface{}) int {
	if len(args) == 0 {
		return -1
	}
	switch key := args[0].(type) {
	case string:
		return redisc.Slot(key)
	case []byte:
		return redisc.Slot(string(key))
	}
	return redisc.Slot(fmt.Sprint(args[0]))
}

func (c *ClusterConn) Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	if c.closed {
		return nil, errConnClosed
	}
	addr := c.route(commandSlot(args))
	asking := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := c.node(ctx, addr)
		if err != nil {
			return nil, err
		}
		if asking {
			if err := conn.Send("ASKING"); err != nil {
				return nil, err
			}
			asking = false
		}
		reply, err := doContext(ctx, conn, cmd, args...)
		if redir := redisc.ParseRedir(err); redir != nil {
			if redir.Type == "ASK" {
				asking = true
			} else {
				c.router.moved(redir.NewSlot, redir.Addr)
			}
			addr = redir.Addr
			continue
		}
		if redisc.IsTryAgain(err) {
			select {
			case <-time.After(tryAgainDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return reply, err
	}
	return nil, errors.Errorf(errTooManyRedirs, cmd, maxAttempts)
}

// pipelineRoutes sends each keyed command to the owner of its slot, and
// each keyless one (MULTI, EXEC, ...) to the node of the closest keyed
// command before it, or of the first keyed command of the batch.
func (c *ClusterConn) pipelineRoutes(cmds []Command) []string {
	current := ""
	for _, cmd := range cmds {
		if slot := commandSlot(cmd.Args); slot >= 0 {
			current = c.route(slot)
			break
		}
	}
	if current == "" {
		current = c.addrs[0]
	}
	routes := make([]string, len(cmds))
	for i, cmd := range cmds {
		if slot := commandSlot(cmd.Args); slot >= 0 {
			current = c.route(slot)
		}
		routes[i] = current
	}
	return routes
}

// Pipeline sends cmds grouped by node, flushes every node once and reads
// the replies back in command order, keeping count of them from offset.
// Error replies, redirections included, are kept as redis.Error values; a
// MOVED reply still updates the slot layout for later commands.
func (c *ClusterConn) Pipeline(ctx context.Context, cmds []Command, offset, count int) ([]interface{}, error) {
	if c.closed {
		return nil, errConnClosed
	}
	if offset < 0 || count < 0 || offset+count > len(cmds) {
		return nil, errors.Errorf(errPipelineRange, offset, offset+count, len(cmds))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	routes := c.pipelineRoutes(cmds)
	conns := make([]redis.Conn, len(cmds))
	flushed := map[string]bool{}
	for i, cmd := range cmds {
		conn, err := c.node(ctx, routes[i])
		if err != nil {
			return nil, err
		}
		if err := conn.Send(cmd.Name, cmd.Args...); err != nil {
			return nil, err
		}
		conns[i] = conn
	}
	for i, conn := range conns {
		if flushed[routes[i]] {
			continue
		}
		flushed[routes[i]] = true
		if err := conn.Flush(); err != nil {
			return nil, err
		}
	}
	replies := make([]interface{}, 0, count)
	for i, conn := range conns {
		reply, err := receiveContext(ctx, conn)
		if err != nil {
			redisErr, ok := err.(redis.Error)
			if !ok {
				return nil, err
			}
			if redir := redisc.ParseRedir(redisErr); redir != nil && redir.Type == "MOVED" {
				c.router.moved(redir.NewSlot, redir.Addr)
			}
			reply = redisErr
		}
		if i >= offset && i < offset+count {
			replies = append(replies, reply)
		}
	}
	return replies, nil
}

// Broadcast sends cmd on every owned node connection, in address order.
func (c *ClusterConn) Broadcast(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	if c.closed {
		return nil, errConnClosed
	}
	replies := make([]interface{}, 0, len(c.addrs))
	for _, addr := range c.addrs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply, err := doContext(ctx, c.nodes[addr], cmd, args...)
		if err != nil {
			return nil, errors.Annotatef(err, errBroadcast, cmd, addr)
		}
		replies = append(replies, []interface{}{[]byte(addr), reply})
	}
	return replies, nil
}

// DB is always 0: cluster nodes only serve the first database.
func (c *ClusterConn) DB() int64 {
	return 0
}

func (c *ClusterConn) IsOpen() bool {
	if c.closed {
		return false
	}
	for _, conn := range c.nodes {
		if conn.Err() != nil {
			return false
		}
	}
	return true
}

func (c *ClusterConn) CheckConnection(ctx context.Context) bool {
	reply, err := c.Broadcast(ctx, "PING")
	if err != nil {
		return false
	}
	return ValidatePingReply(ParseReply(reply)) == nil
}

// Addrs returns the addresses of the nodes this connection holds a session
// with, sorted.
func (c *ClusterConn) Addrs() []string {
	addrs := make([]string, len(c.addrs))
	copy(addrs, c.addrs)
	return addrs
}

func (c *ClusterConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var err error
	for _, addr := range c.addrs {
		if closeErr := c.nodes[addr].Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// doContext bounds the reply wait by the deadline of ctx, if any.
func doContext(ctx context.Context, conn redis.Conn, cmd string, args ...interface{}) (interface{}, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return conn.Do(cmd, args...)
	}
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return redis.DoWithTimeout(conn, timeout, cmd, args...)
}

func receiveContext(ctx context.Context, conn redis.Conn) (interface{}, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return conn.Receive()
	}
	timeout := time.Until(deadline)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return redis.ReceiveWithTimeout(conn, timeout)
}

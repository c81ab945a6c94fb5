package cluster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fatih/structs"
	"github.com/gomodule/redigo/redis"
	"github.com/juju/errors"
	"github.com/mna/redisc"
)

var (
	errOpenClient       = "cluster: open client error"
	errEmptyNodes       = "cluster: initial nodes can't be empty"
	errMixedCredentials = "cluster: cannot use different credentials among initial nodes (node #%d '%s')"
	errNoMaster         = "cluster: no master node known after refresh"
	errDialNode         = "cluster: dial node '%s'"
)

// ClientOptions tunes the redigo connections opened by a ClusterClient.
type ClientOptions struct {
	ConnectTimeout time.Duration `json:"connect_timeout" structs:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout" structs:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" structs:"write_timeout"`
	// NodeMaxIdle, NodeMaxActive and NodeIdleTimeout size the per-node
	// pools redisc uses to discover the slot layout.
	NodeMaxIdle     int           `json:"node_max_idle" structs:"node_max_idle"`
	NodeMaxActive   int           `json:"node_max_active" structs:"node_max_active"`
	NodeIdleTimeout time.Duration `json:"node_idle_timeout" structs:"node_idle_timeout"`
}

func (o ClientOptions) Map() map[string]interface{} {
	return structs.Map(o)
}

// router tells a ClusterConn which master owns a hash slot and dials
// masters for it.
type router interface {
	owner(slot int) string
	masters() []string
	moved(slot int, addr string)
	dial(ctx context.Context, addr string) (redis.Conn, error)
}

// ClusterClient discovers the slot layout through redisc and opens
// ClusterConns holding one redigo connection per master node.
// It is safe for concurrent use.
type ClusterClient struct {
	nodes       []ConnectionInfo
	options     ClientOptions
	dialOptions []redis.DialOption
	cluster     *redisc.Cluster

	mu    sync.RWMutex
	slots [redisc.HashSlots]string
}

var _ router = (*ClusterClient)(nil)

func OpenClusterClient(nodes []ConnectionInfo, options ClientOptions) (*ClusterClient, error) {
	if len(nodes) == 0 {
		return nil, errors.New(errEmptyNodes)
	}
	for i, node := range nodes[1:] {
		if !node.sameAuth(nodes[0]) {
			return nil, errors.Annotate(errors.Errorf(errMixedCredentials, i+1, node), errOpenClient)
		}
	}
	c := &ClusterClient{
		nodes:   nodes,
		options: options,
	}
	c.dialOptions = c.buildDialOptions()
	c.cluster = &redisc.Cluster{
		StartupNodes:  addrs(nodes),
		DialOptions:   c.dialOptions,
		CreatePool:    c.createPool,
		LayoutRefresh: c.layoutRefresh,
	}
	return c, nil
}

func (c *ClusterClient) buildDialOptions() []redis.DialOption {
	seed := c.nodes[0]
	opts := []redis.DialOption{}
	if seed.Username != "" {
		opts = append(opts, redis.DialUsername(seed.Username))
	}
	if seed.Password != "" {
		opts = append(opts, redis.DialPassword(seed.Password))
	}
	if seed.TLS != nil {
		opts = append(opts, redis.DialUseTLS(true), redis.DialTLSSkipVerify(seed.TLS.InsecureSkipVerify))
	}
	if c.options.ConnectTimeout > 0 {
		opts = append(opts, redis.DialConnectTimeout(c.options.ConnectTimeout))
	}
	if c.options.ReadTimeout > 0 {
		opts = append(opts, redis.DialReadTimeout(c.options.ReadTimeout))
	}
	if c.options.WriteTimeout > 0 {
		opts = append(opts, redis.DialWriteTimeout(c.options.WriteTimeout))
	}
	return opts
}

func (c *ClusterClient) createPool(address string, options ...redis.DialOption) (*redis.Pool, error) {
	return &redis.Pool{
		MaxIdle:     c.options.NodeMaxIdle,
		MaxActive:   c.options.NodeMaxActive,
		IdleTimeout: c.options.NodeIdleTimeout,
		Dial: func() (redis.Conn, error) {
			conn, err := redis.Dial("tcp", address, options...)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}, nil
}

func (c *ClusterClient) layoutRefresh(_, mapping [redisc.HashSlots][]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for slot, nodes := range mapping {
		if len(nodes) > 0 {
			c.slots[slot] = nodes[0]
		} else {
			c.slots[slot] = ""
		}
	}
}

func (c *ClusterClient) owner(slot int) string {
	if slot < 0 || slot >= redisc.HashSlots {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slots[slot]
}

// masters returns the distinct master addresses of the slot layout, sorted.
func (c *ClusterClient) masters() []string {
	c.mu.RLock()
	seen := map[string]bool{}
	for _, addr := range c.slots {
		if addr != "" {
			seen[addr] = true
		}
	}
	c.mu.RUnlock()
	masters := make([]string, 0, len(seen))
	for addr := range seen {
		masters = append(masters, addr)
	}
	sort.Strings(masters)
	return masters
}

// moved records a MOVED redirection until the next refresh.
func (c *ClusterClient) moved(slot int, addr string) {
	if slot < 0 || slot >= redisc.HashSlots {
		return
	}
	c.mu.Lock()
	c.slots[slot] = addr
	c.mu.Unlock()
}

func (c *ClusterClient) dial(ctx context.Context, addr string) (redis.Conn, error) {
	conn, err := redis.DialContext(ctx, "tcp", addr, c.dialOptions...)
	if err != nil {
		return nil, errors.Annotatef(err, errDialNode, addr)
	}
	return conn, nil
}

// refresh reloads the slot layout from the cluster, giving up when ctx is
// done. An abandoned refresh still completes in the background.
func (c *ClusterClient) refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- c.cluster.Refresh()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect refreshes the slot layout from the seed nodes and dials every
// master, so that handshake failures are reported here and not on first
// use. redisc errors are returned as is.
func (c *ClusterClient) Connect(ctx context.Context) (Conn, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	return dialClusterConn(ctx, c)
}

func (c *ClusterClient) Nodes() []ConnectionInfo {
	nodes := make([]ConnectionInfo, len(c.nodes))
	copy(nodes, c.nodes)
	return nodes
}

func (c *ClusterClient) Options() ClientOptions {
	return c.options
}

func (c *ClusterClient) Close() error {
	return c.cluster.Close()
}

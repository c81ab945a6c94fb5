package cluster

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/ltick/tick-rediscluster/logger"
	"github.com/ltick/tick-rediscluster/metrics"
	"github.com/ltick/tick-rediscluster/pooling"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a Conn whose PING broadcast answers with a fixed reply.
type fakeConn struct {
	id        int
	ping      interface{}
	pingErr   error
	closed    int32
	broadcast int32
}

func (c *fakeConn) Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	if cmd == "ECHO" && len(args) == 1 {
		return args[0], nil
	}
	return "OK", nil
}

func (c *fakeConn) Pipeline(ctx context.Context, cmds []Command, offset, count int) ([]interface{}, error) {
	replies := make([]interface{}, 0, count)
	for i := offset; i < offset+count; i++ {
		replies = append(replies, cmds[i].Name)
	}
	return replies, nil
}

func (c *fakeConn) Broadcast(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	atomic.AddInt32(&c.broadcast, 1)
	if c.pingErr != nil {
		return nil, c.pingErr
	}
	return c.ping, nil
}

func (c *fakeConn) DB() int64 {
	return 0
}

func (c *fakeConn) IsOpen() bool {
	return !c.isClosed()
}

func (c *fakeConn) CheckConnection(ctx context.Context) bool {
	return ValidatePingReply(ParseReply(c.ping)) == nil
}

func (c *fakeConn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

func (c *fakeConn) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// fakeClient hands out fakeConns answering PING for every seed node.
type fakeClient struct {
	mu         sync.Mutex
	nodes      []string
	conns      []*fakeConn
	connectErr error
	delay      time.Duration
	closed     bool

	connecting    int32
	maxConnecting int32
}

func newFakeClient(nodes ...string) *fakeClient {
	return &fakeClient{nodes: nodes}
}

func (c *fakeClient) healthyReply() interface{} {
	reply := make([]interface{}, 0, len(c.nodes))
	for _, node := range c.nodes {
		reply = append(reply, pong(node))
	}
	return reply
}

func (c *fakeClient) Connect(ctx context.Context) (Conn, error) {
	n := atomic.AddInt32(&c.connecting, 1)
	defer atomic.AddInt32(&c.connecting, -1)
	for {
		max := atomic.LoadInt32(&c.maxConnecting)
		if n <= max || atomic.CompareAndSwapInt32(&c.maxConnecting, max, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := &fakeConn{id: len(c.conns) + 1, ping: c.healthyReply()}
	c.conns = append(c.conns, conn)
	return conn, nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeClient) connCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

var testSeeds = []string{"10.0.0.1:7000", "10.0.0.2:7000", "10.0.0.3:7000"}

func testNodeInfos(t *testing.T) []ConnectionInfo {
	nodes := make([]Address, 0, len(testSeeds))
	for _, seed := range testSeeds {
		nodes = append(nodes, Address(seed))
	}
	infos, err := ResolveNodes(nodes)
	require.NoError(t, err)
	return infos
}

func newTestPool(t *testing.T, client *fakeClient, maxSize int, opts ...ManagerOption) *Pool {
	manager := NewManagerWithClient(client, testNodeInfos(t), opts...)
	pool, err := NewPoolBuilder(manager).Config(pooling.Config{MaxSize: maxSize}).Build()
	require.NoError(t, err)
	return pool
}

func TestManagerCreate(t *testing.T) {
	client := newFakeClient(testSeeds...)
	recorder := metrics.NewRecorder("test")
	m := NewManagerWithClient(client, testNodeInfos(t), WithRecorder(recorder))

	conn, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, conn.IsOpen())

	connectErr := errors.New("CLUSTERDOWN The cluster is down")
	client.connectErr = connectErr
	_, err = m.Create(context.Background())
	assert.Equal(t, connectErr, err)

	assert.Equal(t, float64(1), counterValue(t, recorder, metrics.EventCreate))
	assert.Equal(t, float64(1), counterValue(t, recorder, metrics.EventCreateError))
}

func TestManagerRecycleHealthy(t *testing.T) {
	client := newFakeClient(testSeeds...)
	recorder := metrics.NewRecorder("test")
	m := NewManagerWithClient(client, testNodeInfos(t), WithRecorder(recorder))
	conn, err := m.Create(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Recycle(context.Background(), conn))
	assert.False(t, conn.(*fakeConn).isClosed())
	assert.Equal(t, float64(1), counterValue(t, recorder, metrics.EventRecycle))
}

func TestManagerRecycleInvalidReply(t *testing.T) {
	var logged []string
	logFunc := func(ctx context.Context, format string, data ...interface{}) {
		logged = append(logged, format)
	}
	m := NewManagerWithClient(newFakeClient(testSeeds...), testNodeInfos(t), WithLogFunc(logFunc))

	err := m.Recycle(context.Background(), &fakeConn{ping: "PONG"})
	require.Error(t, err)
	recycleErr, ok := err.(*pooling.RecycleError)
	require.True(t, ok)
	assert.Equal(t, `Invalid PING response: status("PONG")`, recycleErr.Message)
	probeErr, ok := recycleErr.Err.(*ProbeError)
	require.True(t, ok)
	assert.Equal(t, ProbeTopLevel, probeErr.Site)

	err = m.Recycle(context.Background(), &fakeConn{ping: []interface{}{pong("a:7000"), []interface{}{[]byte("b:7000"), "ERR"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid PING response's Bulk nested element")
	assert.Len(t, logged, 2)
}

func TestManagerRecycleBackendError(t *testing.T) {
	m := NewManagerWithClient(newFakeClient(testSeeds...), testNodeInfos(t))
	pingErr := errors.New("i/o timeout")

	err := m.Recycle(context.Background(), &fakeConn{pingErr: pingErr})
	require.Error(t, err)
	recycleErr, ok := err.(*pooling.RecycleError)
	require.True(t, ok)
	assert.Equal(t, pingErr, recycleErr.Err)
}

func TestManagerNodesKeepsOrder(t *testing.T) {
	client := newFakeClient(testSeeds...)
	m := NewManagerWithClient(client, testNodeInfos(t))
	assert.Equal(t, testSeeds, addrs(m.Nodes()))

	nodes := m.Nodes()
	nodes[0].Addr.Host = "changed"
	assert.Equal(t, testSeeds, addrs(m.Nodes()))
	assert.Equal(t, client, m.Client())

	require.NoError(t, m.Close())
	assert.True(t, client.closed)
}

func counterValue(t *testing.T, recorder *metrics.Recorder, event string) float64 {
	m := &dto.Metric{}
	require.NoError(t, recorder.Counter(event).Write(m))
	return m.GetCounter().GetValue()
}

func TestManagerLogsToTickLogger(t *testing.T) {
	dir, err := ioutil.TempDir("", "tick-rediscluster")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	fileName := filepath.Join(dir, "cluster.log")
	targetConfig, err := json.Marshal(map[string]interface{}{"FileName": fileName})
	require.NoError(t, err)

	l, err := logger.NewLogger(context.Background())
	require.NoError(t, err)
	_, err = l.Open("cluster", logger.TypeFile, string(targetConfig), logger.LevelDebug)
	require.NoError(t, err)

	client := newFakeClient(testSeeds...)
	client.connectErr = errors.New("CLUSTERDOWN The cluster is down")
	m := NewManagerWithClient(client, testNodeInfos(t), WithLogFunc(l.LogFunc("cluster", logger.LevelError)))
	_, err = m.Create(context.Background())
	require.Error(t, err)
	require.NoError(t, l.CloseLogger("cluster"))

	content, err := ioutil.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(content), "cluster: create connection error: CLUSTERDOWN The cluster is down")
}

package cluster

import (
	"context"

	"github.com/ltick/tick-rediscluster/logger"
	"github.com/ltick/tick-rediscluster/metrics"
	"github.com/ltick/tick-rediscluster/pooling"
)

type ManagerOption func(*Manager)

// WithLogFunc sets where create and recycle failures are logged.
func WithLogFunc(logFunc logger.LogFunc) ManagerOption {
	return func(m *Manager) {
		m.logFunc = logFunc
	}
}

// WithRecorder counts create and recycle outcomes on recorder.
func WithRecorder(recorder *metrics.Recorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// Manager creates and health-checks cluster connections for a pool. It
// only reads shared state, so Create and Recycle can run concurrently.
type Manager struct {
	client   Client
	nodes    []ConnectionInfo
	logFunc  logger.LogFunc
	recorder *metrics.Recorder
}

var _ pooling.Manager[Conn] = (*Manager)(nil)

// NewManager opens a ClusterClient over the given seed nodes.
func NewManager[T IntoConnectionInfo](nodes []T, options ClientOptions, opts ...ManagerOption) (*Manager, error) {
	infos, err := ResolveNodes(nodes)
	if err != nil {
		return nil, err
	}
	client, err := OpenClusterClient(infos, options)
	if err != nil {
		return nil, err
	}
	return NewManagerWithClient(client, infos, opts...), nil
}

// NewManagerWithClient builds a Manager over an already opened client.
// nodes are only kept for Nodes.
func NewManagerWithClient(client Client, nodes []ConnectionInfo, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:  client,
		nodes:   nodes,
		logFunc: logger.DiscardLogFunc,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logFunc == nil {
		m.logFunc = logger.DiscardLogFunc
	}
	return m
}

// Nodes returns the seed nodes in the order they were given.
func (m *Manager) Nodes() []ConnectionInfo {
	nodes := make([]ConnectionInfo, len(m.nodes))
	copy(nodes, m.nodes)
	return nodes
}

// Client returns the client connections are opened with.
func (m *Manager) Client() Client {
	return m.client
}

// Create opens one connection. The client error is returned unmodified.
func (m *Manager) Create(ctx context.Context) (Conn, error) {
	conn, err := m.client.Connect(ctx)
	if err != nil {
		m.recorder.Observe(metrics.EventCreateError)
		m.logFunc(ctx, "cluster: create connection error: %s", err.Error())
		return nil, err
	}
	m.recorder.Observe(metrics.EventCreate)
	return conn, nil
}

// Recycle broadcasts PING and accepts the connection only if every node
// answered [address, PONG]. A failure always discards the connection.
func (m *Manager) Recycle(ctx context.Context, conn Conn) error {
	reply, err := conn.Broadcast(ctx, "PING")
	if err != nil {
		m.recycleFailed(ctx, err)
		return pooling.NewRecycleBackend(err)
	}
	if probeErr := ValidatePingReply(ParseReply(reply)); probeErr != nil {
		m.recycleFailed(ctx, probeErr)
		return &pooling.RecycleError{Message: probeErr.Error(), Err: probeErr}
	}
	m.recorder.Observe(metrics.EventRecycle)
	return nil
}

func (m *Manager) recycleFailed(ctx context.Context, err error) {
	m.recorder.Observe(metrics.EventRecycleError)
	m.logFunc(ctx, "cluster: recycle connection error: %s", err.Error())
}

// Close closes the client. Connections already handed out stay open.
func (m *Manager) Close() error {
	return m.client.Close()
}

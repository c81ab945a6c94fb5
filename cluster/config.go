package cluster

import (
	"context"

	"github.com/ltick/tick-rediscluster/config"
	"github.com/ltick/tick-rediscluster/pooling"
)

// Config is the data needed to build a cluster Pool: the seed nodes and
// optional pool sizing.
type Config[T IntoConnectionInfo] struct {
	Nodes  []T             `json:"nodes"`
	Pool   *pooling.Config `json:"pool,omitempty"`
	Client ClientOptions   `json:"client"`
}

func FromNodes[T IntoConnectionInfo](nodes []T) *Config[T] {
	return &Config[T]{Nodes: nodes}
}

// PoolConfig returns the configured sizing or pooling.DefaultConfig.
func (c *Config[T]) PoolConfig() pooling.Config {
	if c.Pool == nil {
		return pooling.DefaultConfig()
	}
	return *c.Pool
}

// Builder opens the cluster client and returns a PoolBuilder carrying the
// pool configuration. Node and client failures are *ConfigError.
func (c *Config[T]) Builder(opts ...ManagerOption) (*PoolBuilder, error) {
	manager, err := NewManager(c.Nodes, c.Client, opts...)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return NewPoolBuilder(manager).Config(c.PoolConfig()), nil
}

// CreatePool builds the pool in one call, binding runtime when it is not
// nil. The *CreatePoolError tells configuration errors from build errors.
func (c *Config[T]) CreatePool(runtime pooling.Runtime, opts ...ManagerOption) (*Pool, error) {
	builder, err := c.Builder(opts...)
	if err != nil {
		return nil, &CreatePoolError{Config: err.(*ConfigError)}
	}
	if runtime != nil {
		builder = builder.Runtime(runtime)
	}
	pool, err := builder.Build()
	if err != nil {
		builder.Manager().Close()
		buildErr, ok := err.(*pooling.BuildError)
		if !ok {
			buildErr = &pooling.BuildError{Kind: pooling.BuildBackend, Err: err}
		}
		return nil, &CreatePoolError{Build: buildErr}
	}
	return pool, nil
}

const (
	OptionNodes               = "REDIS_CLUSTER_NODES"
	OptionPoolMaxSize         = "REDIS_CLUSTER_POOL_MAX_SIZE"
	OptionPoolWaitTimeout     = "REDIS_CLUSTER_POOL_WAIT_TIMEOUT"
	OptionPoolCreateTimeout   = "REDIS_CLUSTER_POOL_CREATE_TIMEOUT"
	OptionPoolRecycleTimeout  = "REDIS_CLUSTER_POOL_RECYCLE_TIMEOUT"
	OptionConnectTimeout      = "REDIS_CLUSTER_CONNECT_TIMEOUT"
	OptionReadTimeout         = "REDIS_CLUSTER_READ_TIMEOUT"
	OptionWriteTimeout        = "REDIS_CLUSTER_WRITE_TIMEOUT"
	OptionNodePoolMaxIdle     = "REDIS_CLUSTER_NODE_POOL_MAX_IDLE"
	OptionNodePoolMaxActive   = "REDIS_CLUSTER_NODE_POOL_MAX_ACTIVE"
	OptionNodePoolIdleTimeout = "REDIS_CLUSTER_NODE_POOL_IDLE_TIMEOUT"
)

// ConfigOptions lists the options read by LoadConfig, each bound to the
// environment variable of the same name.
func ConfigOptions() map[string]config.Option {
	return map[string]config.Option{
		OptionNodes:               {Type: config.String, EnvironmentKey: OptionNodes},
		OptionPoolMaxSize:         {Type: config.Int, EnvironmentKey: OptionPoolMaxSize},
		OptionPoolWaitTimeout:     {Type: config.Duration, EnvironmentKey: OptionPoolWaitTimeout},
		OptionPoolCreateTimeout:   {Type: config.Duration, EnvironmentKey: OptionPoolCreateTimeout},
		OptionPoolRecycleTimeout:  {Type: config.Duration, EnvironmentKey: OptionPoolRecycleTimeout},
		OptionConnectTimeout:      {Type: config.Duration, EnvironmentKey: OptionConnectTimeout},
		OptionReadTimeout:         {Type: config.Duration, EnvironmentKey: OptionReadTimeout},
		OptionWriteTimeout:        {Type: config.Duration, EnvironmentKey: OptionWriteTimeout},
		OptionNodePoolMaxIdle:     {Type: config.Int, Default: 2, EnvironmentKey: OptionNodePoolMaxIdle},
		OptionNodePoolMaxActive:   {Type: config.Int, EnvironmentKey: OptionNodePoolMaxActive},
		OptionNodePoolIdleTimeout: {Type: config.Duration, EnvironmentKey: OptionNodePoolIdleTimeout},
	}
}

// NewProvider returns a config.Config with ConfigOptions registered and
// bound to the environment, after loading dotEnvFile if it is not empty.
func NewProvider(ctx context.Context, dotEnvFile string) (*config.Config, error) {
	provider, err := config.NewConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := provider.SetOptions(ConfigOptions()); err != nil {
		return nil, err
	}
	if err := provider.LoadFromEnvFile(dotEnvFile); err != nil {
		return nil, err
	}
	return provider, nil
}

// LoadConfig reads the cluster configuration from provider. The pool
// sizing is left nil unless a max size is set, so that PoolConfig falls
// back to the defaults.
func LoadConfig(provider *config.Config) *Config[Address] {
	c := FromNodes(ParseAddresses(provider.GetString(OptionNodes)))
	timeouts := pooling.Timeouts{
		Wait:    provider.GetDuration(OptionPoolWaitTimeout),
		Create:  provider.GetDuration(OptionPoolCreateTimeout),
		Recycle: provider.GetDuration(OptionPoolRecycleTimeout),
	}
	if provider.IsSet(OptionPoolMaxSize) {
		c.Pool = &pooling.Config{
			MaxSize:  provider.GetInt(OptionPoolMaxSize),
			Timeouts: timeouts,
		}
	} else if timeouts != (pooling.Timeouts{}) {
		poolConfig := pooling.DefaultConfig()
		poolConfig.Timeouts = timeouts
		c.Pool = &poolConfig
	}
	c.Client = ClientOptions{
		ConnectTimeout:  provider.GetDuration(OptionConnectTimeout),
		ReadTimeout:     provider.GetDuration(OptionReadTimeout),
		WriteTimeout:    provider.GetDuration(OptionWriteTimeout),
		NodeMaxIdle:     provider.GetInt(OptionNodePoolMaxIdle),
		NodeMaxActive:   provider.GetInt(OptionNodePoolMaxActive),
		NodeIdleTimeout: provider.GetDuration(OptionNodePoolIdleTimeout),
	}
	return c
}

package cluster

import (
	"github.com/ltick/tick-rediscluster/pooling"
)

// ConfigError reports seed nodes that could not be resolved or a cluster
// client that could not be opened from them.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "cluster: config: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// CreatePoolError is returned by Config.CreatePool. Exactly one of Config
// and Build is set.
type CreatePoolError struct {
	Config *ConfigError
	Build  *pooling.BuildError
}

func (e *CreatePoolError) Error() string {
	if e.Config != nil {
		return e.Config.Error()
	}
	return e.Build.Error()
}

func (e *CreatePoolError) Unwrap() error {
	if e.Config != nil {
		return e.Config
	}
	return e.Build
}

// IsConfig reports whether the seed nodes or client were rejected.
func (e *CreatePoolError) IsConfig() bool {
	return e.Config != nil
}

// IsBuild reports whether the pool builder rejected the pool settings.
func (e *CreatePoolError) IsBuild() bool {
	return e.Build != nil
}

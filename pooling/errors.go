package pooling

import (
	"fmt"

	"github.com/juju/errors"
)

var (
	errBuildInvalidSize = "pooling: build: max size must be between 1 and %d, got %d"
	errBuildNoRuntime   = "pooling: build: timeouts are configured but no runtime was specified"
	errBuild            = "pooling: build error"

	// ErrObjectReleased is returned when an Object is used after Release or Take.
	ErrObjectReleased = errors.New("pooling: object already released")
)

type BuildErrorKind int

const (
	BuildInvalidSize BuildErrorKind = iota
	BuildNoRuntime
	BuildBackend
)

// BuildError is returned by Builder.Build. It never wraps a Manager error.
type BuildError struct {
	Kind    BuildErrorKind
	MaxSize int
	Err     error
}

func (e *BuildError) Error() string {
	switch e.Kind {
	case BuildInvalidSize:
		return fmt.Sprintf(errBuildInvalidSize, maxPoolSize, e.MaxSize)
	case BuildNoRuntime:
		return errBuildNoRuntime
	}
	if e.Err != nil {
		return errBuild + ": " + e.Err.Error()
	}
	return errBuild
}

func (e *BuildError) Unwrap() error { return e.Err }

type ErrorKind int

const (
	ErrorTimeout ErrorKind = iota
	ErrorBackend
	ErrorClosed
)

type TimeoutType int

const (
	TimeoutWait TimeoutType = iota
	TimeoutCreate
	TimeoutRecycle
)

var timeoutTypeNames = map[TimeoutType]string{
	TimeoutWait:    "waiting for a slot to become available",
	TimeoutCreate:  "creating a new object",
	TimeoutRecycle: "recycling an object",
}

func (t TimeoutType) String() string {
	if name, ok := timeoutTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// PoolError is returned by Pool.Get.
type PoolError struct {
	Kind    ErrorKind
	Timeout TimeoutType
	// Err holds the Manager error for ErrorBackend and the context error
	// for ErrorTimeout.
	Err error
}

func (e *PoolError) Error() string {
	switch e.Kind {
	case ErrorTimeout:
		return "pooling: timeout occurred while " + e.Timeout.String()
	case ErrorBackend:
		return "pooling: error occurred while creating a new object: " + e.Err.Error()
	case ErrorClosed:
		return "pooling: pool has been closed"
	}
	return "pooling: unknown error"
}

func (e *PoolError) Unwrap() error { return e.Err }

// RecycleError reports a value that failed its health check. Message is set
// when the Manager rejected the value itself, Err when the check could not
// be carried out.
type RecycleError struct {
	Message string
	Err     error
}

// NewRecycleMessage returns a RecycleError carrying a description of what
// the Manager found wrong with the value.
func NewRecycleMessage(format string, args ...interface{}) *RecycleError {
	return &RecycleError{Message: fmt.Sprintf(format, args...)}
}

// NewRecycleBackend returns a RecycleError wrapping the error that stopped
// the health check.
func NewRecycleBackend(err error) *RecycleError {
	return &RecycleError{Err: err}
}

func (e *RecycleError) Error() string {
	if e.Message != "" {
		return "pooling: recycle: " + e.Message
	}
	if e.Err != nil {
		return "pooling: recycle: " + e.Err.Error()
	}
	return "pooling: recycle failed"
}

func (e *RecycleError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a PoolError caused by the given timeout.
func IsTimeout(err error, t TimeoutType) bool {
	e, ok := errors.Cause(err).(*PoolError)
	return ok && e.Kind == ErrorTimeout && e.Timeout == t
}

func IsClosed(err error) bool {
	e, ok := errors.Cause(err).(*PoolError)
	return ok && e.Kind == ErrorClosed
}

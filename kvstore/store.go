package kvstore

import (
	"context"
	"strconv"

	"github.com/gomodule/redigo/redis"
	"github.com/juju/errors"
	"github.com/ltick/tick-rediscluster/cluster"
	"github.com/ltick/tick-rediscluster/logger"
)

var (
	errGetConnection  = "kvstore: get connection error"
	errKeyType        = "kvstore: key type %T not support"
	errOddArguments   = "kvstore: %s expects field/value pairs, got %d arguments"
	errKeysReply      = "kvstore: unexpected KEYS reply from '%s'"
	errReleaseCommand = "kvstore: release connection after %s error: %s"
)

// ConnectionSource hands out pooled cluster connections, as *cluster.Pool
// does.
type ConnectionSource interface {
	Get(ctx context.Context) (*cluster.Connection, error)
}

type Option func(*Store)

// WithKeyPrefix prepends prefix to every key.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keyPrefix = prefix
	}
}

// WithDebug logs every command sent.
func WithDebug(logFunc logger.LogFunc) Option {
	return func(s *Store) {
		s.debugFunc = logFunc
	}
}

// WithLogFunc sets where connections failing their health check on release
// are logged.
func WithLogFunc(logFunc logger.LogFunc) Option {
	return func(s *Store) {
		s.logFunc = logFunc
	}
}

// Store runs single key commands on a connection checked out for the
// duration of each call. Keys must not span hash slots within one command.
type Store struct {
	source    ConnectionSource
	keyPrefix string
	debugFunc logger.LogFunc
	logFunc   logger.LogFunc
}

func NewStore(source ConnectionSource, opts ...Option) *Store {
	s := &Store{
		source:    source,
		debugFunc: logger.DiscardLogFunc,
		logFunc:   logger.DiscardLogFunc,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetConfig() map[string]interface{} {
	return map[string]interface{}{
		"prefix": s.keyPrefix,
	}
}

func (s *Store) withConn(ctx context.Context, cmd string, fn func(c *cluster.Connection) (interface{}, error)) (interface{}, error) {
	c, err := s.source.Get(ctx)
	if err != nil {
		return nil, errors.Annotate(err, errGetConnection)
	}
	defer func() {
		if err := c.Release(ctx); err != nil {
			s.logFunc(ctx, errReleaseCommand, cmd, err.Error())
		}
	}()
	return fn(c)
}

func (s *Store) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	return s.withConn(ctx, cmd, func(c *cluster.Connection) (interface{}, error) {
		s.debugFunc(ctx, "kvstore: %s %v", cmd, args)
		return c.Do(ctx, cmd, args...)
	})
}

func (s *Store) generateKey(key interface{}) (string, error) {
	switch key := key.(type) {
	case string:
		return s.keyPrefix + key, nil
	case int:
		return s.keyPrefix + strconv.Itoa(key), nil
	case int64:
		return s.keyPrefix + strconv.FormatInt(key, 10), nil
	case []byte:
		return s.keyPrefix + string(key), nil
	}
	return "", errors.Errorf(errKeyType, key)
}

func (s *Store) doKey(ctx context.Context, cmd string, key interface{}, args ...interface{}) (interface{}, error) {
	sKey, err := s.generateKey(key)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, cmd, redis.Args{}.Add(sKey).Add(args...)...)
}

func (s *Store) Get(ctx context.Context, key interface{}) (string, error) {
	return redis.String(s.doKey(ctx, "GET", key))
}

func (s *Store) Set(ctx context.Context, key interface{}, value interface{}) error {
	_, err := s.doKey(ctx, "SET", key, value)
	return err
}

func (s *Store) Del(ctx context.Context, key interface{}) (int64, error) {
	return redis.Int64(s.doKey(ctx, "DEL", key))
}

func (s *Store) Expire(ctx context.Context, key interface{}, expire int64) error {
	_, err := s.doKey(ctx, "EXPIRE", key, expire)
	return err
}

func (s *Store) Exists(ctx context.Context, key interface{}) (bool, error) {
	return redis.Bool(s.doKey(ctx, "EXISTS", key))
}

func (s *Store) Hset(ctx context.Context, key interface{}, field interface{}, value interface{}) error {
	_, err := s.doKey(ctx, "HSET", key, field, value)
	return err
}

func (s *Store) Hget(ctx context.Context, key interface{}, field interface{}) (string, error) {
	return redis.String(s.doKey(ctx, "HGET", key, field))
}

// Hmset sets field/value pairs.
func (s *Store) Hmset(ctx context.Context, key interface{}, args ...interface{}) error {
	if len(args)%2 != 0 {
		return errors.Errorf(errOddArguments, "HMSET", len(args))
	}
	_, err := s.doKey(ctx, "HMSET", key, args...)
	return err
}

// Hmget returns the values of fields in order, "" for missing ones.
func (s *Store) Hmget(ctx context.Context, key interface{}, fields ...interface{}) ([]string, error) {
	return redis.Strings(s.doKey(ctx, "HMGET", key, fields...))
}

func (s *Store) Hgetall(ctx context.Context, key interface{}) (map[string]string, error) {
	return redis.StringMap(s.doKey(ctx, "HGETALL", key))
}

func (s *Store) Hdel(ctx context.Context, key interface{}, field interface{}) (int64, error) {
	return redis.Int64(s.doKey(ctx, "HDEL", key, field))
}

func (s *Store) Hlen(ctx context.Context, key interface{}) (int64, error) {
	return redis.Int64(s.doKey(ctx, "HLEN", key))
}

// HgetallStruct loads a hash into the struct pointed to by dest, using the
// redis field tags.
func (s *Store) HgetallStruct(ctx context.Context, key interface{}, dest interface{}) error {
	values, err := redis.Values(s.doKey(ctx, "HGETALL", key))
	if err != nil {
		return err
	}
	return redis.ScanStruct(values, dest)
}

func (s *Store) Sadd(ctx context.Context, key interface{}, members ...interface{}) error {
	args := redis.Args{}
	for _, member := range members {
		args = args.AddFlat(member)
	}
	_, err := s.doKey(ctx, "SADD", key, args...)
	return err
}

func (s *Store) Scard(ctx context.Context, key interface{}) (int64, error) {
	return redis.Int64(s.doKey(ctx, "SCARD", key))
}

// Zadd adds score/member pairs.
func (s *Store) Zadd(ctx context.Context, key interface{}, args ...interface{}) error {
	if len(args)%2 != 0 {
		return errors.Errorf(errOddArguments, "ZADD", len(args))
	}
	_, err := s.doKey(ctx, "ZADD", key, args...)
	return err
}

func (s *Store) Zrem(ctx context.Context, key interface{}, member interface{}) (int64, error) {
	return redis.Int64(s.doKey(ctx, "ZREM", key, member))
}

func (s *Store) Zscore(ctx context.Context, key interface{}, member interface{}) (float64, error) {
	return redis.Float64(s.doKey(ctx, "ZSCORE", key, member))
}

func (s *Store) Zcard(ctx context.Context, key interface{}) (int64, error) {
	return redis.Int64(s.doKey(ctx, "ZCARD", key))
}

func (s *Store) Zrange(ctx context.Context, key interface{}, start int64, stop int64) ([]string, error) {
	return redis.Strings(s.doKey(ctx, "ZRANGE", key, start, stop))
}

// Keys asks every master node for the keys matching pattern, prefixed, and
// merges the answers in node order.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	reply, err := s.withConn(ctx, "KEYS", func(c *cluster.Connection) (interface{}, error) {
		conn, err := c.Conn()
		if err != nil {
			return nil, err
		}
		s.debugFunc(ctx, "kvstore: KEYS %s", s.keyPrefix+pattern)
		return conn.Broadcast(ctx, "KEYS", s.keyPrefix+pattern)
	})
	if err != nil {
		return nil, err
	}
	nodes, err := redis.Values(reply, nil)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for _, node := range nodes {
		pair, err := redis.Values(node, nil)
		if err != nil || len(pair) != 2 {
			return nil, errors.Errorf(errKeysReply, node)
		}
		addr, _ := redis.String(pair[0], nil)
		nodeKeys, err := redis.Strings(pair[1], nil)
		if err != nil {
			return nil, errors.Annotatef(err, errKeysReply, addr)
		}
		keys = append(keys, nodeKeys...)
	}
	return keys, nil
}

// ErrNil reports whether err is the reply to a missing key.
func ErrNil(err error) bool {
	return errors.Cause(err) == redis.ErrNil
}

package cluster

import (
	"context"
)

// Client opens routed connections against a cluster.
type Client interface {
	Connect(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is a live cluster session able to route commands to any node.
type Conn interface {
	// Do sends a single command and waits for its reply.
	Do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error)
	// Pipeline sends cmds as one batch and returns count replies starting
	// at offset.
	Pipeline(ctx context.Context, cmds []Command, offset, count int) ([]interface{}, error)
	// Broadcast sends cmd to every master node and returns one
	// [address, reply] pair per node.
	Broadcast(ctx context.Context, cmd string, args ...interface{}) (interface{}, error)
	DB() int64
	IsOpen() bool
	// CheckConnection pings every node.
	CheckConnection(ctx context.Context) bool
	Close() error
}

type Command struct {
	Name string
	Args []interface{}
}

func Cmd(name string, args ...interface{}) Command {
	return Command{Name: name, Args: args}
}

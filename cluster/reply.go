package cluster

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/gomodule/redigo/redis"
)

// ReplyKind tells which redis reply type a Reply holds.
type ReplyKind int

const (
	NilReply ReplyKind = iota
	StatusReply
	IntReply
	BulkReply
	ArrayReply
	ErrorReply
)

var replyKindNames = map[ReplyKind]string{
	NilReply:    "nil",
	StatusReply: "status",
	IntReply:    "int",
	BulkReply:   "bulk",
	ArrayReply:  "array",
	ErrorReply:  "error",
}

func (k ReplyKind) String() string {
	if name, ok := replyKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Reply is a redis reply tagged with its kind, so that its shape can be
// matched explicitly.
type Reply struct {
	Kind   ReplyKind
	Status string
	Int    int64
	Bulk   []byte
	Array  []Reply
	Err    string
}

// ParseReply tags a reply as returned by redigo. A value of any other type
// becomes an ErrorReply naming that type.
func ParseReply(v interface{}) Reply {
	switch v := v.(type) {
	case nil:
		return Reply{Kind: NilReply}
	case string:
		return Reply{Kind: StatusReply, Status: v}
	case int64:
		return Reply{Kind: IntReply, Int: v}
	case int:
		return Reply{Kind: IntReply, Int: int64(v)}
	case []byte:
		return Reply{Kind: BulkReply, Bulk: v}
	case []interface{}:
		items := make([]Reply, 0, len(v))
		for _, item := range v {
			items = append(items, ParseReply(item))
		}
		return Reply{Kind: ArrayReply, Array: items}
	case redis.Error:
		return Reply{Kind: ErrorReply, Err: string(v)}
	case error:
		return Reply{Kind: ErrorReply, Err: v.Error()}
	}
	return Reply{Kind: ErrorReply, Err: fmt.Sprintf("unexpected reply type %T", v)}
}

// Equal compares kind and payload, element by element for arrays.
func (r Reply) Equal(o Reply) bool {
	if r.Kind != o.Kind {
		return false
	}
	switch r.Kind {
	case StatusReply:
		return r.Status == o.Status
	case IntReply:
		return r.Int == o.Int
	case BulkReply:
		return bytes.Equal(r.Bulk, o.Bulk)
	case ErrorReply:
		return r.Err == o.Err
	case ArrayReply:
		if len(r.Array) != len(o.Array) {
			return false
		}
		for i := range r.Array {
			if !r.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
	}
	return true
}

func (r Reply) String() string {
	switch r.Kind {
	case StatusReply:
		return "status(" + strconv.Quote(r.Status) + ")"
	case IntReply:
		return "int(" + strconv.FormatInt(r.Int, 10) + ")"
	case BulkReply:
		return "bulk(" + strconv.Quote(string(r.Bulk)) + ")"
	case ErrorReply:
		return "error(" + strconv.Quote(r.Err) + ")"
	case ArrayReply:
		return "array(" + formatReplies(r.Array) + ")"
	}
	return "nil"
}

func formatReplies(replies []Reply) string {
	items := make([]string, 0, len(replies))
	for _, item := range replies {
		items = append(items, item.String())
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// PingToken is the status every node answers a PING with.
var PingToken = Reply{Kind: StatusReply, Status: "PONG"}

// ProbeSite locates where a PING broadcast reply was rejected.
type ProbeSite int

const (
	// ProbeTopLevel: the broadcast reply is not an array.
	ProbeTopLevel ProbeSite = iota
	// ProbeNodeElement: a per-node reply is not an array.
	ProbeNodeElement
	// ProbeNodeNested: a per-node array is not [address, PONG].
	ProbeNodeNested
)

// ProbeError pinpoints where a PING broadcast reply left the expected
// shape.
type ProbeError struct {
	Site  ProbeSite
	Reply Reply
	// Items holds the offending per-node array for ProbeNodeNested.
	Items []Reply
}

func (e *ProbeError) Error() string {
	switch e.Site {
	case ProbeNodeElement:
		return "Invalid PING response's Bulk element: " + e.Reply.String()
	case ProbeNodeNested:
		return "Invalid PING response's Bulk nested element: " + formatReplies(e.Items)
	}
	return "Invalid PING response: " + e.Reply.String()
}

// ValidatePingReply accepts only the multi-node shape
// [[address, PONG], ...]. A bare PONG is rejected.
func ValidatePingReply(r Reply) *ProbeError {
	if r.Kind != ArrayReply {
		return &ProbeError{Site: ProbeTopLevel, Reply: r}
	}
	for _, node := range r.Array {
		if node.Kind != ArrayReply {
			return &ProbeError{Site: ProbeNodeElement, Reply: node}
		}
		if len(node.Array) != 2 || !node.Array[1].Equal(PingToken) {
			return &ProbeError{Site: ProbeNodeNested, Reply: node, Items: node.Array}
		}
	}
	return nil
}

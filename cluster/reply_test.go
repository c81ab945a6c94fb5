package cluster

import (
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pong(addr string) []interface{} {
	return []interface{}{[]byte(addr), "PONG"}
}

func TestParseReply(t *testing.T) {
	assert.Equal(t, Reply{Kind: NilReply}, ParseReply(nil))
	assert.Equal(t, Reply{Kind: StatusReply, Status: "OK"}, ParseReply("OK"))
	assert.Equal(t, Reply{Kind: IntReply, Int: 42}, ParseReply(int64(42)))
	assert.Equal(t, Reply{Kind: BulkReply, Bulk: []byte("v")}, ParseReply([]byte("v")))
	assert.Equal(t, Reply{Kind: ErrorReply, Err: "MOVED 1 a:7000"}, ParseReply(redis.Error("MOVED 1 a:7000")))

	r := ParseReply([]interface{}{int64(1), []interface{}{"PONG"}})
	require.Equal(t, ArrayReply, r.Kind)
	require.Len(t, r.Array, 2)
	assert.Equal(t, `array([int(1), array([status("PONG")])])`, r.String())
}

func TestParseReplyUnexpectedType(t *testing.T) {
	r := ParseReply(3.5)
	assert.Equal(t, Reply{Kind: ErrorReply, Err: "unexpected reply type float64"}, r)

	probeErr := ValidatePingReply(ParseReply([]interface{}{[]interface{}{[]byte("a:7000"), struct{}{}}}))
	require.NotNil(t, probeErr)
	assert.Equal(t, ProbeNodeNested, probeErr.Site)
	assert.Contains(t, probeErr.Error(), "unexpected reply type struct {}")
}

func TestReplyEqual(t *testing.T) {
	assert.True(t, ParseReply("PONG").Equal(PingToken))
	assert.False(t, ParseReply([]byte("PONG")).Equal(PingToken))
	assert.False(t, ParseReply("pong").Equal(PingToken))
	assert.True(t, ParseReply(pong("a:7000")).Equal(ParseReply(pong("a:7000"))))
	assert.False(t, ParseReply(pong("a:7000")).Equal(ParseReply(pong("b:7000"))))
}

func TestValidatePingReplyAccepts(t *testing.T) {
	reply := []interface{}{pong("a:7000"), pong("b:7001"), pong("c:7002")}
	assert.Nil(t, ValidatePingReply(ParseReply(reply)))
	assert.Nil(t, ValidatePingReply(ParseReply([]interface{}{})))
}

func TestValidatePingReplyRejects(t *testing.T) {
	cases := []struct {
		name    string
		reply   interface{}
		site    ProbeSite
		message string
	}{
		{"scalar pong", "PONG", ProbeTopLevel, `Invalid PING response: status("PONG")`},
		{"bulk top level", []byte("PONG"), ProbeTopLevel, `Invalid PING response: bulk("PONG")`},
		{"element not array", []interface{}{pong("a:7000"), "PONG"}, ProbeNodeElement,
			`Invalid PING response's Bulk element: status("PONG")`},
		{"element too short", []interface{}{[]interface{}{"PONG"}}, ProbeNodeNested,
			`Invalid PING response's Bulk nested element: [status("PONG")]`},
		{"element too long", []interface{}{[]interface{}{[]byte("a:7000"), "PONG", "PONG"}}, ProbeNodeNested,
			`Invalid PING response's Bulk nested element: [bulk("a:7000"), status("PONG"), status("PONG")]`},
		{"wrong token", []interface{}{[]interface{}{[]byte("a:7000"), "LOADING"}}, ProbeNodeNested,
			`Invalid PING response's Bulk nested element: [bulk("a:7000"), status("LOADING")]`},
		{"error token", []interface{}{[]interface{}{[]byte("a:7000"), redis.Error("ERR down")}}, ProbeNodeNested,
			`Invalid PING response's Bulk nested element: [bulk("a:7000"), error("ERR down")]`},
	}
	for _, c := range cases {
		probeErr := ValidatePingReply(ParseReply(c.reply))
		require.NotNil(t, probeErr, c.name)
		assert.Equal(t, c.site, probeErr.Site, c.name)
		assert.Equal(t, c.message, probeErr.Error(), c.name)
	}
}

package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQualify(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "automaton"}
	assert.Equal(t, "automaton.poller.enqueued", c.qualify("poller.enqueued"))
	assert.Equal(t, "automaton.job_metric", c.qualify(" job/metric "))
	assert.Equal(t, "automaton.foo.bar", c.qualify("foo..bar"))
	assert.Equal(t, "automaton", c.qualify("..."))
	assert.Empty(t, c.qualify("   "))

	bare := &Client{}
	assert.Equal(t, "poller.enqueued", bare.qualify("poller.enqueued"))
}

func TestRenderTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", "service": "rules"}
	local := map[string]string{
		"result": " success ",
		"":       "dropped",
		"env":    "stage", // local overrides global
	}

	assert.Equal(t, "|#env:stage,result:success,service:rules", renderTags(global, local))
	assert.Empty(t, renderTags(nil, nil))
}

func TestTrimTags(t *testing.T) {
	t.Parallel()

	original := map[string]string{" env ": " prod ", "": "dropped"}
	trimmed := trimTags(original)

	assert.Equal(t, map[string]string{"env": "prod"}, trimmed)

	trimmed["env"] = "stage"
	assert.Equal(t, " prod ", original[" env "], "input map must not be mutated")
}

func TestClientEmitsLineProtocol(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{
		enabled:    true,
		prefix:     "automaton",
		globalTags: map[string]string{"env": "test"},
		conn:       clientConn,
	}

	lines := make(chan string, 1)
	go func() {
		buf := make([]byte, 512)
		n, err := peerConn.Read(buf)
		if err != nil {
			lines <- "read error: " + err.Error()
			return
		}
		lines <- string(buf[:n])
	}()

	c.Count("poller.enqueued", 3, map[string]string{"result": "success"})

	select {
	case line := <-lines:
		assert.Equal(t, "automaton.poller.enqueued:3|c|#env:test,result:success", line)
	case <-time.After(time.Second):
		t.Fatal("no metric line received")
	}
}

func TestClientEnabledAndClose(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{enabled: true, conn: clientConn}
	assert.True(t, c.Enabled())

	require.NoError(t, c.Close())
	assert.False(t, c.Enabled())

	// closing again is safe
	require.NoError(t, c.Close())
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	assert.False(t, c.Enabled())
	assert.NoError(t, c.Close())
	c.Count("x", 1, nil)
	c.Gauge("x", 1, nil)
	c.Timing("x", time.Second, nil)
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	t.Parallel()

	c, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}

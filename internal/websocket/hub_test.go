package websocket

import (
	"encoding/json"
	"testing"

	"sao-connect/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newTestClient() *Client {
	return NewClient(nil, nil, 4, nil)
}

func registeredClient(t *testing.T, hub *Hub, userID int64, role string) *Client {
	t.Helper()
	c := newTestClient()
	require.True(t, c.authenticate(userID, role))
	require.NoError(t, hub.Register(c))
	return c
}

// drain returns every frame queued on the client without blocking.
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case payload := <-c.Send:
			var f frame
			require.NoError(t, json.Unmarshal(payload, &f))
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func TestHubRegisterMultipleConnections(t *testing.T) {
	metrics := utils.NewMetricsCollector()
	hub := NewHub(nil, metrics)

	tab1 := registeredClient(t, hub, 1, "student")
	tab2 := registeredClient(t, hub, 1, "student")
	registeredClient(t, hub, 2, "admin")

	assert.Equal(t, 3, hub.Count())
	assert.ElementsMatch(t, []*Client{tab1, tab2}, hub.ConnectionsFor(1))

	hub.Unregister(tab1)
	assert.Equal(t, 2, hub.Count())
	assert.Equal(t, []*Client{tab2}, hub.ConnectionsFor(1))

	// Second unregister is a no-op
	hub.Unregister(tab1)
	assert.Equal(t, 2, hub.Count())
}

func TestHubRegisterRequiresAuthentication(t *testing.T) {
	hub := NewHub(nil, nil)
	c := newTestClient()

	err := hub.Register(c)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotAuthenticated))
	assert.Equal(t, 0, hub.Count())
}

func TestHubUnregisterUnknownClient(t *testing.T) {
	hub := NewHub(nil, nil)
	registeredClient(t, hub, 1, "student")

	assert.NotPanics(t, func() { hub.Unregister(newTestClient()) })
	assert.Equal(t, 1, hub.Count())
}

func TestHubBroadcastToPredicate(t *testing.T) {
	hub := NewHub(nil, utils.NewMetricsCollector())
	one := registeredClient(t, hub, 1, "admin")
	two := registeredClient(t, hub, 2, "student")
	three := registeredClient(t, hub, 3, "student")

	sent := hub.BroadcastTo(ToUsers(1, 2), OutboundEnvelope{Type: TypeMessage, Data: map[string]int{"id": 9}})
	assert.Equal(t, 2, sent)

	assert.Len(t, drain(t, one), 1)
	assert.Len(t, drain(t, two), 1)
	assert.Empty(t, drain(t, three))
}

func TestHubBroadcastSkipsClosedAndFullClients(t *testing.T) {
	hub := NewHub(nil, utils.NewMetricsCollector())
	closed := registeredClient(t, hub, 1, "student")
	full := registeredClient(t, hub, 1, "student")
	healthy := registeredClient(t, hub, 1, "student")

	closed.Close()
	for i := 0; i < cap(full.Send); i++ {
		require.NoError(t, full.Enqueue([]byte(`{}`)))
	}

	sent := hub.BroadcastTo(ToUsers(1), OutboundEnvelope{Type: TypeMessage, Data: nil})
	assert.Equal(t, 1, sent)
	assert.Len(t, drain(t, healthy), 1)
	assert.Empty(t, drain(t, closed))
}

func TestClientEnqueueErrors(t *testing.T) {
	c := NewClient(nil, nil, 1, nil)
	require.NoError(t, c.Enqueue([]byte("a")))

	err := c.Enqueue([]byte("b"))
	assert.True(t, utils.IsErrorCode(err, utils.ErrTransport))

	assert.True(t, c.Close())
	assert.False(t, c.Close())
	err = c.Enqueue([]byte("c"))
	assert.True(t, utils.IsErrorCode(err, utils.ErrTransport))
	assert.Equal(t, StateClosed, c.State())
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(nil, utils.NewMetricsCollector())
	pending := newTestClient()
	require.NoError(t, hub.Accept(pending))
	authed := registeredClient(t, hub, 1, "student")

	hub.Shutdown()

	assert.Equal(t, 0, hub.Count())
	assert.False(t, pending.IsOpen())
	assert.False(t, authed.IsOpen())

	late := newTestClient()
	require.True(t, late.authenticate(2, "student"))
	assert.Error(t, hub.Register(late))
	assert.Error(t, hub.Accept(newTestClient()))
}

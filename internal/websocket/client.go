package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sao-connect/internal/middleware"
	"sao-connect/internal/utils"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	DefaultSendBuffer = 256
)

// ClientState is the lifecycle position of one connection.
type ClientState int

const (
	StateUnauthenticated ClientState = iota
	StateAuthenticated
	StateClosed
)

func (s ClientState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Transport is the subset of *websocket.Conn a Client needs.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	// Unique per connection, used in logs.
	ID string

	// The websocket connection.
	Conn Transport

	// Buffered channel of outbound messages. Never closed; done signals shutdown.
	Send chan []byte

	logger *slog.Logger

	// Identity verified at handshake time, nil when the handshake carried none.
	session *middleware.Identity

	mu     sync.RWMutex
	state  ClientState
	userID int64
	role   string

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn Transport, session *middleware.Identity, sendBuffer int, logger *slog.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	id := uuid.NewString()
	return &Client{
		ID:      id,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		logger:  logger.With("conn", id),
		session: session,
		state:   StateUnauthenticated,
		done:    make(chan struct{}),
	}
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// UserID is zero until the client authenticates.
func (c *Client) UserID() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Client) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

// IsOpen reports whether the client can still receive envelopes.
func (c *Client) IsOpen() bool {
	return c.State() != StateClosed
}

// Session returns the handshake identity, if any.
func (c *Client) Session() *middleware.Identity {
	return c.session
}

// authenticate moves an unauthenticated client to Authenticated. It reports
// false for any other starting state.
func (c *Client) authenticate(userID int64, role string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUnauthenticated {
		return false
	}
	c.state = StateAuthenticated
	c.userID = userID
	c.role = role
	return true
}

// Close moves the client to Closed and stops the write pump. It reports
// whether this call performed the transition.
func (c *Client) Close() bool {
	c.mu.Lock()
	wasOpen := c.state != StateClosed
	c.state = StateClosed
	c.mu.Unlock()

	c.closeOnce.Do(func() { close(c.done) })
	return wasOpen
}

// Done is closed once the client is Closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue queues one frame without blocking.
func (c *Client) Enqueue(payload []byte) error {
	if !c.IsOpen() {
		return utils.NewTransportError("connection closed", nil)
	}
	select {
	case <-c.done:
		return utils.NewTransportError("connection closed", nil)
	case c.Send <- payload:
		return nil
	default:
		return utils.NewTransportError("send buffer full", nil)
	}
}

// ReadPump feeds inbound frames to handle, one at a time and in receipt order.
// It returns when the transport fails or closes.
func (c *Client) ReadPump(ctx context.Context, handle func(context.Context, []byte)) {
	defer func() {
		c.Conn.Close()
		c.logger.Debug("read pump stopped", "user", c.UserID())
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", "user", c.UserID(), "error", err)
			}
			return
		}
		handle(ctx, message)
	}
}

// WritePump pumps queued frames to the websocket connection, one frame per envelope.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.logger.Debug("write pump stopped", "user", c.UserID())
	}()
	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error", "user", c.UserID(), "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("websocket ping error", "user", c.UserID(), "error", err)
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

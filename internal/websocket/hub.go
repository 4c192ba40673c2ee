package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"sao-connect/internal/utils"

	"github.com/samber/lo"
)

// Hub is the connection registry: it maps authenticated users to their live
// connections and fans envelopes out to them.
type Hub struct {
	// Authenticated clients. Maps user ID to a set of active client connections.
	clients map[int64]map[*Client]struct{}

	// Accepted connections that have not authenticated yet.
	pending map[*Client]struct{}

	// Set by Shutdown; later registrations are refused.
	closed bool

	// Mutex to protect concurrent access to the clients map. Never held
	// across a store call.
	mu sync.RWMutex

	logger  *slog.Logger
	metrics *utils.MetricsCollector
}

func NewHub(logger *slog.Logger, metrics *utils.MetricsCollector) *Hub {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		pending: make(map[*Client]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Accept tracks a fresh connection so Shutdown can reach it before it authenticates.
func (h *Hub) Accept(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return utils.NewTransportError("hub is shut down", nil)
	}
	h.pending[client] = struct{}{}
	return nil
}

// Register adds an authenticated client under its user ID. A user may hold
// any number of connections.
func (h *Hub) Register(client *Client) error {
	if !client.IsAuthenticated() {
		return utils.NewNotAuthenticatedError("only authenticated connections can be registered")
	}
	userID := client.UserID()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return utils.NewTransportError("hub is shut down", nil)
	}
	delete(h.pending, client)
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
	userConns := len(h.clients[userID])
	total := h.countLocked()
	h.mu.Unlock()

	h.setConnections(total)
	h.logger.Info("websocket client registered", "conn", client.ID, "user", userID, "role", client.Role(), "user_connections", userConns)
	return nil
}

// Unregister removes the client. Unknown or never-authenticated clients are a no-op.
func (h *Hub) Unregister(client *Client) {
	userID := client.UserID()

	h.mu.Lock()
	delete(h.pending, client)
	userClients, ok := h.clients[userID]
	if ok {
		_, ok = userClients[client]
	}
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(userClients, client)
	remaining := len(userClients)
	if remaining == 0 {
		delete(h.clients, userID)
	}
	total := h.countLocked()
	h.mu.Unlock()

	h.setConnections(total)
	h.logger.Info("websocket client unregistered", "conn", client.ID, "user", userID, "remaining", remaining)
}

// BroadcastTo queues envelope on every open registered client matching
// predicate and returns how many clients accepted it. Closed clients are
// skipped; a failed enqueue is logged and does not stop the loop.
func (h *Hub) BroadcastTo(predicate func(*Client) bool, envelope OutboundEnvelope) int {
	payload, err := json.Marshal(envelope)
	if err != nil {
		h.logger.Error("failed to encode outbound envelope", "type", envelope.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, userClients := range h.clients {
		for client := range userClients {
			if predicate(client) {
				targets = append(targets, client)
			}
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range targets {
		if !client.IsOpen() {
			continue
		}
		if err := client.Enqueue(payload); err != nil {
			h.logger.Warn("dropping outbound envelope", "conn", client.ID, "user", client.UserID(), "type", envelope.Type, "error", err)
			if h.metrics != nil {
				h.metrics.IncrementDeliveryFailures()
			}
			continue
		}
		sent++
	}
	if h.metrics != nil && sent > 0 {
		h.metrics.AddDeliveries(sent)
	}
	return sent
}

// ConnectionsFor lists the registered clients of one user.
func (h *Hub) ConnectionsFor(userID int64) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		result = append(result, client)
	}
	return result
}

// Count returns the number of registered (authenticated) connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	total := 0
	for _, userClients := range h.clients {
		total += len(userClients)
	}
	return total
}

// Shutdown closes every tracked connection and empties the registry.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	all := make([]*Client, 0, len(h.pending))
	for client := range h.pending {
		all = append(all, client)
	}
	for _, userClients := range h.clients {
		for client := range userClients {
			all = append(all, client)
		}
	}
	h.clients = make(map[int64]map[*Client]struct{})
	h.pending = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, client := range all {
		client.Close()
	}
	h.setConnections(0)
	h.logger.Info("websocket hub shut down", "closed_connections", len(all))
}

func (h *Hub) setConnections(n int) {
	if h.metrics != nil {
		h.metrics.SetConnections(n)
	}
}

// ToUsers matches clients authenticated as any of ids.
func ToUsers(ids ...int64) func(*Client) bool {
	return func(c *Client) bool {
		return lo.Contains(ids, c.UserID())
	}
}

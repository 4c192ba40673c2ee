package websocket

import (
	"context"
	"log/slog"

	"sao-connect/internal/database"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"
)

// Drop reasons, used as log attributes and metric labels.
const (
	dropMalformed        = "malformed"
	dropNotAuthenticated = "not_authenticated"
	dropAlreadyAuthed    = "already_authenticated"
	dropIdentityMismatch = "identity_mismatch"
	dropSenderMismatch   = "sender_mismatch"
	dropUnknownType      = "unknown_type"
	dropValidation       = "validation"
	dropPersistence      = "persistence"
	dropRegistry         = "registry"
)

// Delivery runs the per-connection protocol: authenticate, then persist and
// fan out messages and relay typing indicators.
type Delivery struct {
	hub     *Hub
	store   database.MessageStore
	logger  *slog.Logger
	metrics *utils.MetricsCollector
}

func NewDelivery(hub *Hub, store database.MessageStore, logger *slog.Logger, metrics *utils.MetricsCollector) *Delivery {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Delivery{
		hub:     hub,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Hub returns the registry this engine fans out through.
func (d *Delivery) Hub() *Hub {
	return d.hub
}

// Serve runs a freshly upgraded client until its transport closes.
func (d *Delivery) Serve(ctx context.Context, client *Client) {
	if err := d.hub.Accept(client); err != nil {
		d.logger.Warn("refusing websocket connection", "conn", client.ID, "error", err)
		client.Close()
		client.Conn.Close()
		return
	}
	d.logger.Debug("websocket connection established", "conn", client.ID)

	go client.WritePump()
	client.ReadPump(ctx, func(ctx context.Context, data []byte) {
		d.HandleEnvelope(ctx, client, data)
	})
	d.Disconnect(client)
}

// HandleEnvelope processes one inbound frame to completion. Nothing here
// closes the connection; every rejected frame is logged and dropped.
func (d *Delivery) HandleEnvelope(ctx context.Context, client *Client, data []byte) {
	if !client.IsOpen() {
		return
	}

	env, err := DecodeEnvelope(data)
	if err != nil {
		d.drop(client, "", dropMalformed, err)
		return
	}
	if d.metrics != nil {
		d.metrics.IncrementEnvelopes(envelopeLabel(env))
	}

	if auth, ok := env.(*AuthEnvelope); ok {
		d.handleAuth(client, auth)
		return
	}
	if unknown, ok := env.(*UnknownEnvelope); ok {
		d.drop(client, unknown.Name, dropUnknownType, nil)
		return
	}
	if !client.IsAuthenticated() {
		d.drop(client, env.Type(), dropNotAuthenticated, utils.NewNotAuthenticatedError("envelope before auth"))
		return
	}

	switch e := env.(type) {
	case *MessageEnvelope:
		d.handleMessage(ctx, client, e)
	case *TypingEnvelope:
		d.handleTyping(client, e)
	}
}

func (d *Delivery) handleAuth(client *Client, env *AuthEnvelope) {
	if client.State() != StateUnauthenticated {
		d.drop(client, TypeAuth, dropAlreadyAuthed, nil)
		return
	}

	userID, role := env.UserID, env.UserRole
	if session := client.Session(); session != nil {
		if session.UserID != env.UserID {
			d.drop(client, TypeAuth, dropIdentityMismatch, utils.NewNotAuthenticatedError("auth envelope does not match session"))
			return
		}
		role = session.Role
	}
	if role == "" {
		role = models.RoleStudent
	}

	if !client.authenticate(userID, role) {
		d.drop(client, TypeAuth, dropAlreadyAuthed, nil)
		return
	}
	if err := d.hub.Register(client); err != nil {
		d.drop(client, TypeAuth, dropRegistry, err)
	}
}

func (d *Delivery) handleMessage(ctx context.Context, client *Client, env *MessageEnvelope) {
	senderID := client.UserID()
	if env.SenderID != 0 && env.SenderID != senderID {
		d.drop(client, TypeMessage, dropSenderMismatch, nil)
		return
	}

	msg, err := d.store.CreateMessage(ctx, senderID, env.ReceiverID, env.Content, client.Role() == models.RoleAdmin)
	if err != nil {
		reason := dropPersistence
		if utils.IsValidationError(err) {
			reason = dropValidation
		}
		d.drop(client, TypeMessage, reason, err)
		return
	}

	d.Deliver(msg)
}

func (d *Delivery) handleTyping(client *Client, env *TypingEnvelope) {
	senderID := client.UserID()
	if env.SenderID != 0 && env.SenderID != senderID {
		d.drop(client, TypeTyping, dropSenderMismatch, nil)
		return
	}

	d.hub.BroadcastTo(ToUsers(*env.ReceiverID), OutboundEnvelope{
		Type: TypeTyping,
		Data: TypingNotice{SenderID: senderID, IsTyping: *env.IsTyping},
	})
}

// Deliver fans a stored message out to every live connection of its sender
// and receiver, and returns the number of connections reached.
func (d *Delivery) Deliver(msg *models.Message) int {
	targets := []int64{msg.SenderID}
	if msg.ReceiverID != nil && *msg.ReceiverID != msg.SenderID {
		targets = append(targets, *msg.ReceiverID)
	}
	sent := d.hub.BroadcastTo(ToUsers(targets...), OutboundEnvelope{Type: TypeMessage, Data: msg})
	d.logger.Debug("message delivered", "message", msg.ID, "sender", msg.SenderID, "connections", sent)
	return sent
}

// Disconnect moves the client to Closed and removes it from the registry.
// Safe to call more than once and for clients that never authenticated.
func (d *Delivery) Disconnect(client *Client) {
	if client.Close() {
		d.logger.Debug("websocket connection closed", "conn", client.ID, "user", client.UserID())
	}
	d.hub.Unregister(client)
}

func (d *Delivery) drop(client *Client, envType, reason string, err error) {
	attrs := []any{"conn", client.ID, "user", client.UserID(), "type", envType, "reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	if reason == dropPersistence {
		d.logger.Error("dropping envelope", attrs...)
	} else {
		d.logger.Warn("dropping envelope", attrs...)
	}
	if d.metrics != nil {
		d.metrics.IncrementDropped(reason)
	}
}

// envelopeLabel keeps the metric label set bounded.
func envelopeLabel(env Envelope) string {
	if _, ok := env.(*UnknownEnvelope); ok {
		return "unknown"
	}
	return env.Type()
}

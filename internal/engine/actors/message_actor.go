package actors

import (
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/samber/lo"
)

// Message types for MessageActor
type (
	CreateMessageMsg struct {
		SenderID    int64
		ReceiverID  *int64
		Content     string
		IsFromAdmin bool
	}

	// With a nil OtherUserID every message UserID sent or received is returned.
	GetMessagesBetweenMsg struct {
		UserID      int64
		OtherUserID *int64
	}

	MarkReadMsg struct {
		SenderID   int64
		ReceiverID int64
	}

	GetUnreadCountMsg struct {
		UserID int64
	}

	GetCountsMsg struct{}
)

// MessageActor owns the in-memory message log. The log is append-only and
// kept in id order, which is also creation order.
type MessageActor struct {
	messages []*models.Message
	nextID   int64
	clock    *utils.MonotonicClock
	metrics  *utils.MetricsCollector
}

func NewMessageActor(metrics *utils.MetricsCollector) *MessageActor {
	return &MessageActor{
		messages: make([]*models.Message, 0),
		nextID:   1,
		clock:    utils.NewMonotonicClock(time.Microsecond),
		metrics:  metrics,
	}
}

func (a *MessageActor) Receive(context actor.Context) {
	startTime := time.Now()

	switch msg := context.Message().(type) {
	case *CreateMessageMsg:
		a.handleCreateMessage(context, msg)
		a.observe("create_message", startTime)
	case *GetMessagesBetweenMsg:
		a.handleGetMessagesBetween(context, msg)
		a.observe("get_messages_between", startTime)
	case *MarkReadMsg:
		a.handleMarkRead(context, msg)
		a.observe("mark_read", startTime)
	case *GetUnreadCountMsg:
		count := lo.CountBy(a.messages, func(m *models.Message) bool {
			return !m.IsRead && m.AddressedTo(msg.UserID)
		})
		context.Respond(count)
	case *GetCountsMsg:
		context.Respond(len(a.messages))
	}
}

func (a *MessageActor) handleCreateMessage(context actor.Context, msg *CreateMessageMsg) {
	if err := utils.ValidateMessageContent(msg.Content); err != nil {
		context.Respond(err)
		return
	}

	newMessage := &models.Message{
		ID:          a.nextID,
		SenderID:    msg.SenderID,
		ReceiverID:  copyID(msg.ReceiverID),
		Content:     msg.Content,
		IsFromAdmin: msg.IsFromAdmin,
		IsRead:      false,
		CreatedAt:   a.clock.Next(),
	}
	a.nextID++
	a.messages = append(a.messages, newMessage)

	context.Respond(cloneMessage(newMessage))
}

func (a *MessageActor) handleGetMessagesBetween(context actor.Context, msg *GetMessagesBetweenMsg) {
	matches := lo.Filter(a.messages, func(m *models.Message, _ int) bool {
		if msg.OtherUserID == nil {
			return m.Involves(msg.UserID)
		}
		other := *msg.OtherUserID
		return (m.SenderID == msg.UserID && m.AddressedTo(other)) ||
			(m.SenderID == other && m.AddressedTo(msg.UserID))
	})
	// Callers get copies; the log keeps mutating read flags.
	context.Respond(lo.Map(matches, func(m *models.Message, _ int) *models.Message {
		return cloneMessage(m)
	}))
}

func (a *MessageActor) handleMarkRead(context actor.Context, msg *MarkReadMsg) {
	marked := 0
	for _, m := range a.messages {
		if !m.IsRead && m.SenderID == msg.SenderID && m.AddressedTo(msg.ReceiverID) {
			m.IsRead = true
			marked++
		}
	}
	context.Respond(marked)
}

func (a *MessageActor) observe(op string, startTime time.Time) {
	if a.metrics != nil {
		a.metrics.AddOperationLatency(op, time.Since(startTime))
	}
}

func cloneMessage(m *models.Message) *models.Message {
	c := *m
	c.ReceiverID = copyID(m.ReceiverID)
	return &c
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	return lo.ToPtr(*id)
}

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"sao-connect/internal/engine"
	"sao-connect/internal/middleware"
	"sao-connect/internal/mocks"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestDelivery(t *testing.T) (*Delivery, *engine.Engine) {
	t.Helper()
	store := engine.NewEngine(actor.NewActorSystem(), nil, time.Second)
	t.Cleanup(func() { store.Close(context.Background()) })
	return NewDelivery(NewHub(nil, nil), store, nil, utils.NewMetricsCollector()), store
}

func send(t *testing.T, d *Delivery, c *Client, envelope any) {
	t.Helper()
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)
	d.HandleEnvelope(context.Background(), c, payload)
}

func connect(t *testing.T, d *Delivery, userID int64, role string) *Client {
	t.Helper()
	c := newTestClient()
	require.NoError(t, d.Hub().Accept(c))
	send(t, d, c, map[string]any{"type": "auth", "userId": userID, "userRole": role})
	require.True(t, c.IsAuthenticated())
	return c
}

func decodeMessage(t *testing.T, f frame) models.Message {
	t.Helper()
	require.Equal(t, TypeMessage, f.Type)
	var msg models.Message
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	return msg
}

func TestStudentMessageReachesBothParties(t *testing.T) {
	d, store := newTestDelivery(t)
	admin := connect(t, d, 1, models.RoleAdmin)
	student := connect(t, d, 2, models.RoleStudent)

	received := time.Now().UTC().Truncate(time.Microsecond)
	send(t, d, student, map[string]any{"type": "message", "receiverId": 1, "content": "hi", "isFromAdmin": false})

	adminFrames := drain(t, admin)
	studentFrames := drain(t, student)
	require.Len(t, adminFrames, 1)
	require.Len(t, studentFrames, 1)

	toAdmin := decodeMessage(t, adminFrames[0])
	toStudent := decodeMessage(t, studentFrames[0])
	assert.Equal(t, toAdmin.ID, toStudent.ID)
	assert.False(t, toAdmin.IsRead)
	assert.False(t, toAdmin.IsFromAdmin)
	assert.Equal(t, int64(2), toAdmin.SenderID)
	assert.False(t, toAdmin.CreatedAt.Before(received))

	stored, err := store.GetMessagesBetween(context.Background(), 1, lo.ToPtr[int64](2))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, toAdmin.ID, stored[0].ID)
	assert.False(t, stored[0].IsRead)
}

func TestMessageFansOutToEveryConnection(t *testing.T) {
	d, _ := newTestDelivery(t)
	senderTab1 := connect(t, d, 2, models.RoleStudent)
	senderTab2 := connect(t, d, 2, models.RoleStudent)
	receiver := connect(t, d, 1, models.RoleAdmin)
	bystander := connect(t, d, 3, models.RoleStudent)

	send(t, d, receiver, map[string]any{"type": "message", "senderId": 1, "receiverId": 2, "content": "your form is approved"})

	for _, c := range []*Client{senderTab1, senderTab2, receiver} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		msg := decodeMessage(t, frames[0])
		assert.True(t, msg.IsFromAdmin, "isFromAdmin follows the sender role")
	}
	assert.Empty(t, drain(t, bystander))
}

func TestEmptyContentIsRejected(t *testing.T) {
	d, store := newTestDelivery(t)
	student := connect(t, d, 2, models.RoleStudent)
	admin := connect(t, d, 1, models.RoleAdmin)

	send(t, d, student, map[string]any{"type": "message", "receiverId": 1, "content": ""})
	send(t, d, student, map[string]any{"type": "message", "receiverId": 1, "content": "   "})

	assert.Empty(t, drain(t, student))
	assert.Empty(t, drain(t, admin))
	assert.True(t, student.IsAuthenticated())

	stored, err := store.GetMessagesBetween(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestEnvelopesBeforeAuthAreDropped(t *testing.T) {
	d, store := newTestDelivery(t)
	admin := connect(t, d, 1, models.RoleAdmin)
	anon := newTestClient()

	send(t, d, anon, map[string]any{"type": "message", "senderId": 5, "receiverId": 1, "content": "sneaky"})
	send(t, d, anon, map[string]any{"type": "typing", "senderId": 5, "receiverId": 1, "isTyping": true})

	assert.Equal(t, StateUnauthenticated, anon.State())
	assert.Empty(t, drain(t, admin))
	stored, err := store.GetMessagesBetween(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestMalformedAndUnknownEnvelopesKeepConnection(t *testing.T) {
	d, _ := newTestDelivery(t)
	c := connect(t, d, 2, models.RoleStudent)

	d.HandleEnvelope(context.Background(), c, []byte(`{{{`))
	d.HandleEnvelope(context.Background(), c, []byte(`{"type":"presence","online":true}`))
	d.HandleEnvelope(context.Background(), c, []byte(`{"type":"typing"}`))

	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, 1, d.Hub().Count())
}

func TestTypingGoesToReceiverOnly(t *testing.T) {
	d, _ := newTestDelivery(t)
	sender := connect(t, d, 2, models.RoleStudent)
	receiver := connect(t, d, 1, models.RoleAdmin)

	send(t, d, sender, map[string]any{"type": "typing", "senderId": 2, "receiverId": 1, "isTyping": true})

	assert.Empty(t, drain(t, sender))
	frames := drain(t, receiver)
	require.Len(t, frames, 1)
	assert.Equal(t, TypeTyping, frames[0].Type)
	assert.JSONEq(t, `{"senderId":2,"isTyping":true}`, string(frames[0].Data))
}

func TestTypingToOfflineReceiver(t *testing.T) {
	d, _ := newTestDelivery(t)
	sender := connect(t, d, 2, models.RoleStudent)

	assert.NotPanics(t, func() {
		send(t, d, sender, map[string]any{"type": "typing", "receiverId": 99, "isTyping": false})
	})
	assert.Empty(t, drain(t, sender))
}

func TestSenderMismatchIsDropped(t *testing.T) {
	d, store := newTestDelivery(t)
	student := connect(t, d, 2, models.RoleStudent)

	send(t, d, student, map[string]any{"type": "message", "senderId": 1, "receiverId": 3, "content": "impersonation"})

	assert.Empty(t, drain(t, student))
	stored, err := store.GetMessagesBetween(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestAuthMustMatchSession(t *testing.T) {
	d, _ := newTestDelivery(t)
	c := NewClient(nil, &middleware.Identity{UserID: 2, Role: models.RoleStudent}, 4, nil)

	send(t, d, c, map[string]any{"type": "auth", "userId": 1, "userRole": "admin"})
	assert.Equal(t, StateUnauthenticated, c.State())
	assert.Equal(t, 0, d.Hub().Count())

	// The claimed role is ignored in favour of the session role
	send(t, d, c, map[string]any{"type": "auth", "userId": 2, "userRole": "admin"})
	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, models.RoleStudent, c.Role())
}

func TestReauthIsIgnored(t *testing.T) {
	d, _ := newTestDelivery(t)
	c := connect(t, d, 2, models.RoleStudent)

	send(t, d, c, map[string]any{"type": "auth", "userId": 3, "userRole": "student"})
	assert.Equal(t, int64(2), c.UserID())
	assert.Len(t, d.Hub().ConnectionsFor(2), 1)
	assert.Empty(t, d.Hub().ConnectionsFor(3))
}

func TestDisconnectUnauthenticatedIsNoop(t *testing.T) {
	d, _ := newTestDelivery(t)
	other := connect(t, d, 1, models.RoleAdmin)
	c := newTestClient()
	require.NoError(t, d.Hub().Accept(c))

	d.Disconnect(c)
	d.Disconnect(c)

	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, 1, d.Hub().Count())

	// A closed connection processes nothing further
	send(t, d, c, map[string]any{"type": "auth", "userId": 5})
	assert.Equal(t, StateClosed, c.State())
	assert.Empty(t, d.Hub().ConnectionsFor(5))
	assert.Empty(t, drain(t, other))
}

func TestDisconnectStopsFanOut(t *testing.T) {
	d, _ := newTestDelivery(t)
	student := connect(t, d, 2, models.RoleStudent)
	admin := connect(t, d, 1, models.RoleAdmin)

	d.Disconnect(admin)
	send(t, d, student, map[string]any{"type": "message", "receiverId": 1, "content": "anyone there?"})

	assert.Len(t, drain(t, student), 1)
	assert.Empty(t, drain(t, admin))
}

func TestPersistenceFailureSkipsFanOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	store.EXPECT().
		CreateMessage(gomock.Any(), int64(2), gomock.Any(), "hi", false).
		Return(nil, utils.NewPersistenceError("failed to save message", errors.New("connection refused")))

	d := NewDelivery(NewHub(nil, nil), store, nil, nil)
	student := connect(t, d, 2, models.RoleStudent)
	admin := connect(t, d, 1, models.RoleAdmin)

	send(t, d, student, map[string]any{"type": "message", "receiverId": 1, "content": "hi"})

	assert.Empty(t, drain(t, student))
	assert.Empty(t, drain(t, admin))
	assert.True(t, student.IsAuthenticated())
}

func TestBroadcastMessageWithoutReceiverReachesSenderOnly(t *testing.T) {
	d, _ := newTestDelivery(t)
	student := connect(t, d, 2, models.RoleStudent)
	admin := connect(t, d, 1, models.RoleAdmin)

	send(t, d, student, map[string]any{"type": "message", "content": "question for the front desk"})

	frames := drain(t, student)
	require.Len(t, frames, 1)
	assert.Nil(t, decodeMessage(t, frames[0]).ReceiverID)
	assert.Empty(t, drain(t, admin))
}

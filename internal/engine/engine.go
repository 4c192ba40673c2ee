package engine

import (
	"context"
	"time"

	"sao-connect/internal/database"
	"sao-connect/internal/engine/actors"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

const defaultRequestTimeout = 5 * time.Second

// Engine is the in-memory storage backend. Each store is owned by one actor,
// so every operation is serialized without locks.
type Engine struct {
	system         *actor.ActorSystem
	context        *actor.RootContext
	messageActor   *actor.PID
	userActor      *actor.PID
	requestTimeout time.Duration
}

var _ database.Adapter = (*Engine)(nil)

func NewEngine(system *actor.ActorSystem, metrics *utils.MetricsCollector, requestTimeout time.Duration) *Engine {
	context := system.Root
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	// Spawn message actor
	messageProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewMessageActor(metrics)
	})
	messagePID := context.Spawn(messageProps)

	// Spawn user actor
	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor()
	})
	userPID := context.Spawn(userProps)

	return &Engine{
		system:         system,
		context:        context,
		messageActor:   messagePID,
		userActor:      userPID,
		requestTimeout: requestTimeout,
	}
}

// GetMessageActor returns the PID of the message actor
func (e *Engine) GetMessageActor() *actor.PID {
	return e.messageActor
}

// GetUserActor returns the PID of the user actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.userActor
}

// request sends msg and waits for the reply. An *utils.AppError reply is
// returned as the error.
func (e *Engine) request(ctx context.Context, pid *actor.PID, name string, msg interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.NewPersistenceError("request cancelled", err)
	}

	timeout := e.requestTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	result, err := e.context.RequestFuture(pid, msg, timeout).Result()
	if err != nil {
		return nil, utils.NewActorTimeoutError(name, err)
	}
	if appErr, ok := result.(*utils.AppError); ok {
		return nil, appErr
	}
	return result, nil
}

func (e *Engine) CreateMessage(ctx context.Context, senderID int64, receiverID *int64, content string, isFromAdmin bool) (*models.Message, error) {
	result, err := e.request(ctx, e.messageActor, "message", &actors.CreateMessageMsg{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		IsFromAdmin: isFromAdmin,
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Message), nil
}

func (e *Engine) GetMessagesBetween(ctx context.Context, userID int64, otherUserID *int64) ([]*models.Message, error) {
	result, err := e.request(ctx, e.messageActor, "message", &actors.GetMessagesBetweenMsg{
		UserID:      userID,
		OtherUserID: otherUserID,
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.Message), nil
}

func (e *Engine) MarkRead(ctx context.Context, senderID, receiverID int64) error {
	_, err := e.request(ctx, e.messageActor, "message", &actors.MarkReadMsg{
		SenderID:   senderID,
		ReceiverID: receiverID,
	})
	return err
}

func (e *Engine) UnreadCountFor(ctx context.Context, userID int64) (int, error) {
	result, err := e.request(ctx, e.messageActor, "message", &actors.GetUnreadCountMsg{UserID: userID})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (e *Engine) GetUser(ctx context.Context, id int64) (*models.User, error) {
	result, err := e.request(ctx, e.userActor, "user", &actors.GetUserProfileMsg{UserID: id})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

func (e *Engine) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	result, err := e.request(ctx, e.userActor, "user", &actors.GetUserByEmailMsg{Email: email})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// CreateUser validates and hashes outside the actor so bcrypt does not block
// other directory lookups.
func (e *Engine) CreateUser(ctx context.Context, newUser models.NewUser) (*models.User, error) {
	if err := utils.ValidateStruct(newUser); err != nil {
		return nil, err
	}
	hash, err := utils.HashPassword(newUser.Password)
	if err != nil {
		return nil, err
	}

	user := newUser.Build(hash, time.Now().UTC())
	result, err := e.request(ctx, e.userActor, "user", &actors.RegisterUserMsg{User: user})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// Counts reports how many messages and users are held in memory.
func (e *Engine) Counts(ctx context.Context) (messages int, users int, err error) {
	result, err := e.request(ctx, e.messageActor, "message", &actors.GetCountsMsg{})
	if err != nil {
		return 0, 0, err
	}
	messages = result.(int)

	result, err = e.request(ctx, e.userActor, "user", &actors.GetCountsMsg{})
	if err != nil {
		return 0, 0, err
	}
	return messages, result.(int), nil
}

func (e *Engine) InitializeTables(ctx context.Context) error {
	return nil
}

// Close stops both actors.
func (e *Engine) Close(ctx context.Context) error {
	e.context.Stop(e.messageActor)
	e.context.Stop(e.userActor)
	return nil
}

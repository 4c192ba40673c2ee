package actors

import (
	"strconv"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Message types for UserActor
type (
	// User arrives validated with its password already hashed.
	RegisterUserMsg struct {
		User *models.User
	}

	GetUserProfileMsg struct {
		UserID int64
	}

	GetUserByEmailMsg struct {
		Email string
	}
)

// UserActor keeps the in-memory user directory
type UserActor struct {
	users       map[int64]*models.User
	emailToID   map[string]int64
	studentToID map[string]int64
	nextID      int64
}

func NewUserActor() *UserActor {
	return &UserActor{
		users:       make(map[int64]*models.User),
		emailToID:   make(map[string]int64),
		studentToID: make(map[string]int64),
		nextID:      1,
	}
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *RegisterUserMsg:
		a.handleRegisterUser(context, msg)

	case *GetUserProfileMsg:
		if user, exists := a.users[msg.UserID]; exists {
			context.Respond(cloneUser(user))
			return
		}
		context.Respond(utils.NewUserNotFoundError(strconv.FormatInt(msg.UserID, 10)))

	case *GetUserByEmailMsg:
		if id, exists := a.emailToID[models.NormalizeEmail(msg.Email)]; exists {
			context.Respond(cloneUser(a.users[id]))
			return
		}
		context.Respond(utils.NewUserNotFoundError(msg.Email))

	case *GetCountsMsg:
		context.Respond(len(a.users))
	}
}

func (a *UserActor) handleRegisterUser(context actor.Context, msg *RegisterUserMsg) {
	email := models.NormalizeEmail(msg.User.Email)
	if _, exists := a.emailToID[email]; exists {
		context.Respond(utils.NewAppError(utils.ErrDuplicate, "user already exists", nil))
		return
	}
	if sid := msg.User.StudentID; sid != nil {
		if _, exists := a.studentToID[*sid]; exists {
			context.Respond(utils.NewAppError(utils.ErrDuplicate, "student id already registered", nil))
			return
		}
	}

	user := cloneUser(msg.User)
	user.ID = a.nextID
	a.nextID++

	a.users[user.ID] = user
	a.emailToID[email] = user.ID
	if user.StudentID != nil {
		a.studentToID[*user.StudentID] = user.ID
	}

	context.Respond(cloneUser(user))
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.StudentID != nil {
		sid := *u.StudentID
		c.StudentID = &sid
	}
	return &c
}

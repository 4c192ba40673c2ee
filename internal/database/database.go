//go:generate go run go.uber.org/mock/mockgen -source=database.go -destination=../mocks/mock_database.go -package=mocks
package database

import (
	"context"

	"sao-connect/internal/models"
)

// MessageStore is the durable, ordered log of chat messages.
//
// Ids are assigned in insertion order and CreatedAt never decreases with the
// id. Sequences are returned ordered by CreatedAt ascending, ties broken by id.
type MessageStore interface {
	// CreateMessage assigns id and creation time. Empty content fails with a
	// VALIDATION_ERROR and nothing is stored.
	CreateMessage(ctx context.Context, senderID int64, receiverID *int64, content string, isFromAdmin bool) (*models.Message, error)

	// GetMessagesBetween returns the messages exchanged by the unordered pair
	// {userID, otherUserID}. With a nil otherUserID it returns every message
	// userID sent or received.
	GetMessagesBetween(ctx context.Context, userID int64, otherUserID *int64) ([]*models.Message, error)

	// MarkRead flags every unread message from senderID to receiverID as read.
	MarkRead(ctx context.Context, senderID, receiverID int64) error

	// UnreadCountFor counts unread messages addressed to userID.
	UnreadCountFor(ctx context.Context, userID int64) (int, error)
}

// UserDirectory resolves portal accounts.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user models.NewUser) (*models.User, error)
}

// Adapter is a complete storage backend.
type Adapter interface {
	MessageStore
	UserDirectory

	InitializeTables(ctx context.Context) error
	Close(ctx context.Context) error
}

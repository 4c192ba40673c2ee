package database

import (
	"context"
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageDocument represents the MongoDB document structure for chat messages
type MessageDocument struct {
	ID          int64     `bson:"_id"`
	SenderID    int64     `bson:"senderId"`
	ReceiverID  *int64    `bson:"receiverId"`
	Content     string    `bson:"content"`
	IsFromAdmin bool      `bson:"isFromAdmin"`
	IsRead      bool      `bson:"isRead"`
	CreatedAt   time.Time `bson:"createdAt"`
}

func (doc *MessageDocument) toModel() *models.Message {
	return &models.Message{
		ID:          doc.ID,
		SenderID:    doc.SenderID,
		ReceiverID:  doc.ReceiverID,
		Content:     doc.Content,
		IsFromAdmin: doc.IsFromAdmin,
		IsRead:      doc.IsRead,
		CreatedAt:   doc.CreatedAt.UTC(),
	}
}

// CreateMessage saves a new message to MongoDB
func (m *MongoDB) CreateMessage(ctx context.Context, senderID int64, receiverID *int64, content string, isFromAdmin bool) (*models.Message, error) {
	if err := utils.ValidateMessageContent(content); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.nextID(ctx, "messages")
	if err != nil {
		return nil, utils.NewPersistenceError("failed to allocate message id", err)
	}

	doc := MessageDocument{
		ID:          id,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		IsFromAdmin: isFromAdmin,
		IsRead:      false,
		CreatedAt:   m.clock.Next(),
	}
	if _, err := m.Messages.InsertOne(ctx, doc); err != nil {
		return nil, utils.NewPersistenceError("failed to save message", err)
	}
	return doc.toModel(), nil
}

// GetMessagesBetween retrieves a pair's conversation, or all of a user's messages
func (m *MongoDB) GetMessagesBetween(ctx context.Context, userID int64, otherUserID *int64) ([]*models.Message, error) {
	var filter bson.M
	if otherUserID != nil {
		filter = bson.M{"$or": []bson.M{
			{"senderId": userID, "receiverId": *otherUserID},
			{"senderId": *otherUserID, "receiverId": userID},
		}}
	} else {
		filter = bson.M{"$or": []bson.M{
			{"senderId": userID},
			{"receiverId": userID},
		}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.Messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewPersistenceError("failed to get messages", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*models.Message, 0)
	for cursor.Next(ctx) {
		var doc MessageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, utils.NewPersistenceError("failed to decode message", err)
		}
		messages = append(messages, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, utils.NewPersistenceError("failed to iterate messages", err)
	}
	return messages, nil
}

// MarkRead updates isRead on every unread message of the directed pair
func (m *MongoDB) MarkRead(ctx context.Context, senderID, receiverID int64) error {
	filter := bson.M{"senderId": senderID, "receiverId": receiverID, "isRead": false}
	update := bson.M{"$set": bson.M{"isRead": true}}

	if _, err := m.Messages.UpdateMany(ctx, filter, update); err != nil {
		return utils.NewPersistenceError("failed to update message status", err)
	}
	return nil
}

func (m *MongoDB) UnreadCountFor(ctx context.Context, userID int64) (int, error) {
	count, err := m.Messages.CountDocuments(ctx, bson.M{"receiverId": userID, "isRead": false})
	if err != nil {
		return 0, utils.NewPersistenceError("failed to count unread messages", err)
	}
	return int(count), nil
}

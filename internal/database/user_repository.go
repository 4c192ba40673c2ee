package database

import (
	"context"
	"errors"
	"strconv"
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserDocument represents the MongoDB schema for a user
type UserDocument struct {
	ID           int64     `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	FirstName    string    `bson:"firstName"`
	LastName     string    `bson:"lastName"`
	StudentID    *string   `bson:"studentId,omitempty"`
	Role         string    `bson:"role"`
	IsActive     bool      `bson:"isActive"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (doc *UserDocument) toModel() *models.User {
	return &models.User{
		ID:           doc.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		FirstName:    doc.FirstName,
		LastName:     doc.LastName,
		StudentID:    doc.StudentID,
		Role:         doc.Role,
		IsActive:     doc.IsActive,
		CreatedAt:    doc.CreatedAt.UTC(),
	}
}

// GetUser retrieves a user from MongoDB by their ID
func (m *MongoDB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return m.findUser(ctx, bson.M{"_id": id}, strconv.FormatInt(id, 10))
}

// GetUserByEmail retrieves a user from MongoDB by their email address
func (m *MongoDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"email": models.NormalizeEmail(email)}, email)
}

func (m *MongoDB) findUser(ctx context.Context, filter bson.M, key string) (*models.User, error) {
	var doc UserDocument
	err := m.Users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewUserNotFoundError(key)
	}
	if err != nil {
		return nil, utils.NewPersistenceError("failed to load user", err)
	}
	return doc.toModel(), nil
}

// CreateUser stores a new account with a freshly allocated id
func (m *MongoDB) CreateUser(ctx context.Context, newUser models.NewUser) (*models.User, error) {
	if err := utils.ValidateStruct(newUser); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(newUser.Password)
	if err != nil {
		return nil, err
	}

	id, err := m.nextID(ctx, "users")
	if err != nil {
		return nil, utils.NewPersistenceError("failed to allocate user id", err)
	}

	user := newUser.Build(hash, time.Now().UTC().Truncate(time.Millisecond))
	user.ID = id

	doc := UserDocument{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		StudentID:    user.StudentID,
		Role:         user.Role,
		IsActive:     user.IsActive,
		CreatedAt:    user.CreatedAt,
	}
	if _, err := m.Users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, utils.NewAppError(utils.ErrDuplicate, "user already exists", err)
		}
		return nil, utils.NewPersistenceError("failed to save user", err)
	}
	return user, nil
}

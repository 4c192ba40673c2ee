package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sao-connect/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB stores messages and users in MongoDB. Integer ids come from a
// counters collection.
type MongoDB struct {
	Client   *mongo.Client
	Users    *mongo.Collection
	Messages *mongo.Collection
	Counters *mongo.Collection

	logger *slog.Logger
	mu     sync.Mutex
	clock  *utils.MonotonicClock
}

var _ Adapter = (*MongoDB)(nil)

func NewMongoDB(uri, dbName string, logger *slog.Logger) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("connected to MongoDB", "database", dbName)

	db := client.Database(dbName)
	return &MongoDB{
		Client:   client,
		Users:    db.Collection("users"),
		Messages: db.Collection("messages"),
		Counters: db.Collection("counters"),
		logger:   logger,
		// BSON dates carry milliseconds
		clock: utils.NewMonotonicClock(time.Millisecond),
	}, nil
}

// InitializeTables creates the indexes the queries rely on.
func (m *MongoDB) InitializeTables(ctx context.Context) error {
	_, err := m.Messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "receiverId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "isRead", Value: 1}}},
	})
	if err != nil {
		return utils.NewPersistenceError("failed to create message indexes", err)
	}

	_, err = m.Users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "studentId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return utils.NewPersistenceError("failed to create user indexes", err)
	}

	var latest MessageDocument
	findOpts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := m.Messages.FindOne(ctx, bson.M{}, findOpts).Decode(&latest); err == nil {
		m.clock.Observe(latest.CreatedAt)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// nextID atomically increments the named sequence.
func (m *MongoDB) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.Counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

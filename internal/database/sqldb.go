package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SQLDB stores messages and users in PostgreSQL or SQLite through sqlx.
type SQLDB struct {
	DB     *sqlx.DB
	driver string
	logger *slog.Logger

	// Serializes inserts so ids and creation times advance together.
	mu    sync.Mutex
	clock *utils.MonotonicClock
}

var _ Adapter = (*SQLDB)(nil)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, logger *slog.Logger) (*SQLDB, error) {
	db, err := sqlx.Connect(DriverPostgres, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("connected to PostgreSQL")
	return newSQLDB(db, DriverPostgres, logger), nil
}

// NewSQLiteDB opens (creating if needed) an SQLite database file.
func NewSQLiteDB(path string, logger *slog.Logger) (*SQLDB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	db, err := sqlx.Connect(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger.Info("opened SQLite database", "path", path)
	return newSQLDB(db, DriverSQLite, logger), nil
}

func newSQLDB(db *sqlx.DB, driver string, logger *slog.Logger) *SQLDB {
	return &SQLDB{
		DB:     db,
		driver: driver,
		logger: logger,
		clock:  utils.NewMonotonicClock(time.Microsecond),
	}
}

// Close closes the database connection
func (p *SQLDB) Close(ctx context.Context) error {
	p.logger.Info("closing SQL connection", "driver", p.driver)
	return p.DB.Close()
}

// InitializeTables creates all necessary tables if they don't exist
func (p *SQLDB) InitializeTables(ctx context.Context) error {
	statements := postgresSchema
	if p.driver == DriverSQLite {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
			return utils.NewPersistenceError("failed to initialize schema", err)
		}
	}

	// Resume the creation-time floor from existing data.
	var latest time.Time
	err := p.DB.GetContext(ctx, &latest, `SELECT created_at FROM messages ORDER BY id DESC LIMIT 1`)
	if err == nil {
		p.clock.Observe(latest)
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		password_hash VARCHAR(100) NOT NULL,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		student_id VARCHAR(50) UNIQUE,
		role VARCHAR(20) NOT NULL DEFAULT 'student',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		sender_id INTEGER NOT NULL,
		receiver_id INTEGER,
		content TEXT NOT NULL,
		is_from_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unread ON messages (receiver_id) WHERE is_read = FALSE`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		student_id TEXT UNIQUE,
		role TEXT NOT NULL DEFAULT 'student',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id INTEGER NOT NULL,
		receiver_id INTEGER,
		content TEXT NOT NULL,
		is_from_admin BOOLEAN NOT NULL DEFAULT 0,
		is_read BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (sender_id, receiver_id, created_at)`,
}

// --- Message Methods ---

const messageColumns = `id, sender_id, receiver_id, content, is_from_admin, is_read, created_at`

// CreateMessage inserts a new message and returns the stored record.
func (p *SQLDB) CreateMessage(ctx context.Context, senderID int64, receiverID *int64, content string, isFromAdmin bool) (*models.Message, error) {
	if err := utils.ValidateMessageContent(content); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := &models.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		IsFromAdmin: isFromAdmin,
		IsRead:      false,
		CreatedAt:   p.clock.Next(),
	}

	query := p.DB.Rebind(`
		INSERT INTO messages (sender_id, receiver_id, content, is_from_admin, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := p.DB.QueryRowxContext(ctx, query,
		msg.SenderID, msg.ReceiverID, msg.Content, msg.IsFromAdmin, msg.IsRead, msg.CreatedAt,
	).Scan(&msg.ID)
	if err != nil {
		return nil, utils.NewPersistenceError("failed to save message", err)
	}
	return msg, nil
}

// GetMessagesBetween fetches a pair's conversation, or everything a user sent or received.
func (p *SQLDB) GetMessagesBetween(ctx context.Context, userID int64, otherUserID *int64) ([]*models.Message, error) {
	var (
		query string
		args  []any
	)
	if otherUserID != nil {
		query = `SELECT ` + messageColumns + ` FROM messages
			WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
			ORDER BY created_at ASC, id ASC`
		args = []any{userID, *otherUserID, *otherUserID, userID}
	} else {
		query = `SELECT ` + messageColumns + ` FROM messages
			WHERE sender_id = ? OR receiver_id = ?
			ORDER BY created_at ASC, id ASC`
		args = []any{userID, userID}
	}

	messages := make([]*models.Message, 0)
	if err := p.DB.SelectContext(ctx, &messages, p.DB.Rebind(query), args...); err != nil {
		return nil, utils.NewPersistenceError("failed to query messages", err)
	}
	for _, msg := range messages {
		msg.CreatedAt = msg.CreatedAt.UTC()
	}
	return messages, nil
}

// MarkRead flips is_read on the unread messages of one directed pair.
func (p *SQLDB) MarkRead(ctx context.Context, senderID, receiverID int64) error {
	query := p.DB.Rebind(`UPDATE messages SET is_read = ? WHERE sender_id = ? AND receiver_id = ? AND is_read = ?`)
	result, err := p.DB.ExecContext(ctx, query, true, senderID, receiverID, false)
	if err != nil {
		return utils.NewPersistenceError("failed to update message read status", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		p.logger.Debug("messages marked read", "sender", senderID, "receiver", receiverID, "count", rows)
	}
	return nil
}

func (p *SQLDB) UnreadCountFor(ctx context.Context, userID int64) (int, error) {
	var count int
	query := p.DB.Rebind(`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = ?`)
	if err := p.DB.GetContext(ctx, &count, query, userID, false); err != nil {
		return 0, utils.NewPersistenceError("failed to count unread messages", err)
	}
	return count, nil
}

// --- User Methods ---

const userColumns = `id, email, password_hash, first_name, last_name, student_id, role, is_active, created_at`

// GetUser fetches a user by their ID.
func (p *SQLDB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return p.getUserWhere(ctx, "id = ?", id)
}

// GetUserByEmail fetches a user by their email address.
func (p *SQLDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return p.getUserWhere(ctx, "email = ?", models.NormalizeEmail(email))
}

func (p *SQLDB) getUserWhere(ctx context.Context, where string, arg any) (*models.User, error) {
	var user models.User
	query := p.DB.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := p.DB.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.NewUserNotFoundError(fmt.Sprint(arg))
		}
		return nil, utils.NewPersistenceError("failed to query user", err)
	}
	return &user, nil
}

// CreateUser validates, hashes the password and stores a new account.
func (p *SQLDB) CreateUser(ctx context.Context, newUser models.NewUser) (*models.User, error) {
	if err := utils.ValidateStruct(newUser); err != nil {
		return nil, err
	}

	var exists int
	query := p.DB.Rebind(`SELECT COUNT(*) FROM users WHERE email = ? OR (student_id IS NOT NULL AND student_id = ?)`)
	if err := p.DB.GetContext(ctx, &exists, query, models.NormalizeEmail(newUser.Email), newUser.StudentID); err != nil {
		return nil, utils.NewPersistenceError("failed to check existing users", err)
	}
	if exists > 0 {
		return nil, utils.NewAppError(utils.ErrDuplicate, "user already exists", nil)
	}

	hash, err := utils.HashPassword(newUser.Password)
	if err != nil {
		return nil, err
	}
	user := newUser.Build(hash, time.Now().UTC().Truncate(time.Microsecond))

	insert := p.DB.Rebind(`
		INSERT INTO users (email, password_hash, first_name, last_name, student_id, role, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = p.DB.QueryRowxContext(ctx, insert,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.StudentID, user.Role, user.IsActive, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		return nil, utils.NewPersistenceError("failed to save user", err)
	}
	return user, nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"sao-connect/internal/config"
	"sao-connect/internal/database"
	"sao-connect/internal/engine"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// openStore selects the storage backend named by DB_TYPE.
func openStore(ctx context.Context, cfg *config.Config, metrics *utils.MetricsCollector, logger *slog.Logger) (database.Adapter, error) {
	storeLogger := logger.With("component", "store")

	switch cfg.Database.Type {
	case "memory":
		if metrics == nil {
			metrics = utils.NewMetricsCollector()
		}
		storeLogger.Warn("using in-memory store; data is lost on restart")
		return engine.NewEngine(actor.NewActorSystem(), metrics, cfg.Server.RequestTimeout), nil
	case "postgres":
		return database.NewPostgresDB(cfg.Database.URI, storeLogger)
	case "sqlite":
		return database.NewSQLiteDB(cfg.Database.SQLitePath, storeLogger)
	case "mongo":
		return database.NewMongoDB(cfg.Database.MongoURI, cfg.Database.MongoDatabase, storeLogger)
	}
	return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.Database.Type)
}

// seedAdmin creates the bootstrap staff account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and no such user exists.
func seedAdmin(ctx context.Context, cfg *config.Config, store database.UserDirectory) error {
	if cfg.Auth.AdminEmail == "" || cfg.Auth.AdminPassword == "" {
		return nil
	}

	if _, err := store.GetUserByEmail(ctx, cfg.Auth.AdminEmail); err == nil {
		return nil
	} else if !utils.IsNotFound(err) {
		return fmt.Errorf("look up admin account: %w", err)
	}

	admin, err := store.CreateUser(ctx, models.NewUser{
		Email:     cfg.Auth.AdminEmail,
		Password:  cfg.Auth.AdminPassword,
		FirstName: "Student Affairs",
		LastName:  "Office",
		Role:      models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	logger.Info("seeded admin account", "user", admin.ID, "email", admin.Email)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sao-connect/internal/config"
	"sao-connect/internal/handlers"
	"sao-connect/internal/middleware"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	logger  *slog.Logger
	noColor bool
)

func main() {
	root := &cobra.Command{
		Use:     "portal",
		Short:   "Student services portal messaging server",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = utils.NewLogger(os.Getenv("LOG_LEVEL"), noColor)
			return nil
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured log output")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger = utils.NewLogger(cfg.LogLevel, noColor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := utils.NewMetricsCollector()
	store, err := openStore(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	if err := store.InitializeTables(ctx); err != nil {
		return err
	}
	if err := seedAdmin(ctx, cfg, store); err != nil {
		return err
	}

	auth := middleware.NewSessionAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger.With("component", "auth"))
	server := handlers.NewServer(cfg, store, auth, metrics, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Addr(), "backend", cfg.Database.Type, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Hijacked socket connections are not covered by http.Server.Shutdown
	server.Hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes for the configured backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			if err := store.InitializeTables(ctx); err != nil {
				return err
			}
			logger.Info("schema ready", "backend", cfg.Database.Type)
			return nil
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage directory users",
	}

	var newUser models.NewUser
	var studentID string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if studentID != "" {
				newUser.StudentID = &studentID
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer store.Close(ctx)
			if err := store.InitializeTables(ctx); err != nil {
				return err
			}

			user, err := store.CreateUser(ctx, newUser)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s, %s)\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	add.Flags().StringVar(&newUser.Email, "email", "", "login email")
	add.Flags().StringVar(&newUser.Password, "password", "", "initial password")
	add.Flags().StringVar(&newUser.FirstName, "first-name", "", "first name")
	add.Flags().StringVar(&newUser.LastName, "last-name", "", "last name")
	add.Flags().StringVar(&newUser.Role, "role", models.RoleStudent, "student or admin")
	add.Flags().StringVar(&studentID, "student-id", "", "student number")
	add.MarkFlagRequired("email")
	add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}

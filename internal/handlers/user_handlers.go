package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"sao-connect/internal/api"
	"sao-connect/internal/middleware"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"
)

// HandleLogin verifies credentials, issues a session token and sets the
// session cookie. "admin" is accepted as an alias for the configured admin email.
func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		email := strings.TrimSpace(req.Email)
		if email == adminAlias && s.Config.Auth.AdminEmail != "" {
			email = s.Config.Auth.AdminEmail
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		user, err := s.Store.GetUserByEmail(ctx, email)
		if err != nil {
			if utils.IsNotFound(err) {
				api.WriteJSON(w, http.StatusUnauthorized, api.LoginResponse{Error: "Invalid credentials"})
				return
			}
			s.Logger.Error("login lookup failed", "error", err)
			api.WriteError(w, http.StatusInternalServerError, "Login failed")
			return
		}
		if err := utils.CheckPassword(user.PasswordHash, req.Password); err != nil {
			api.WriteJSON(w, http.StatusUnauthorized, api.LoginResponse{Error: "Invalid credentials"})
			return
		}
		if !user.IsActive {
			api.WriteJSON(w, http.StatusForbidden, api.LoginResponse{Error: "Account disabled"})
			return
		}

		token, err := s.Auth.GenerateToken(user)
		if err != nil {
			s.Logger.Error("failed to sign session token", "user", user.ID, "error", err)
			api.WriteError(w, http.StatusInternalServerError, "Login failed")
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    token,
			Path:     "/",
			Expires:  time.Now().Add(s.Config.Auth.TokenTTL),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		s.Logger.Info("user logged in", "user", user.ID, "role", user.Role)
		api.WriteJSON(w, http.StatusOK, api.LoginResponse{Success: true, Token: token, User: user})
	}
}

// HandleUserRegistration creates a student account. Staff accounts come from
// the CLI or the admin seed.
func (s *Server) HandleUserRegistration() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		var req models.NewUser
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.WriteError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		req.Role = models.RoleStudent

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		user, err := s.Store.CreateUser(ctx, req)
		if err != nil {
			s.writeStoreError(w, "Registration failed", err)
			return
		}

		s.Logger.Info("user registered", "user", user.ID)
		api.WriteJSON(w, http.StatusCreated, user)
	}
}

// HandleLogout clears the session cookie.
func (s *Server) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		api.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Logged out successfully"})
	}
}

// HandleCurrentUser returns the caller's directory record.
func (s *Server) HandleCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		identity, _ := middleware.IdentityFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		user, err := s.Store.GetUser(ctx, identity.UserID)
		if err != nil {
			if utils.IsNotFound(err) {
				api.WriteError(w, http.StatusUnauthorized, "User not found")
				return
			}
			s.writeStoreError(w, "Failed to get user", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, user)
	}
}

// writeStoreError maps an AppError to its status. Client errors echo the
// error message; server errors are logged and answered with fallback.
func (s *Server) writeStoreError(w http.ResponseWriter, fallback string, err error) {
	status := utils.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(fallback, "error", err)
		api.WriteError(w, status, fallback)
		return
	}
	api.WriteError(w, status, err.Error())
}

package handlers

import (
	"net/http"

	"sao-connect/internal/middleware"
	"sao-connect/internal/websocket"
)

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.cors.OriginAllowed(origin)
}

// HandleWebSocket verifies the session token, upgrades the connection and
// serves it until it closes. The verified identity is bound to the client;
// the auth envelope must later name the same user.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var session *middleware.Identity

		if tokenString := middleware.TokenFromRequest(r, true); tokenString != "" {
			identity, err := s.Auth.Authenticate(tokenString)
			if err != nil {
				s.Logger.Warn("websocket connection refused: invalid token", "remote", r.RemoteAddr, "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			session = &identity
		} else if s.Config.Server.RequireHandshakeAuth {
			s.Logger.Warn("websocket connection refused: missing token", "remote", r.RemoteAddr)
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			s.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := websocket.NewClient(conn, session, s.Config.Server.SendBufferSize, s.Logger.With("component", "client"))
		if session != nil {
			s.Logger.Info("websocket connection upgraded", "conn", client.ID, "session_user", session.UserID)
		} else {
			s.Logger.Info("websocket connection upgraded without session", "conn", client.ID)
		}

		s.Delivery.Serve(r.Context(), client)
	}
}

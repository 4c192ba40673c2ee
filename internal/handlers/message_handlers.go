package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"sao-connect/internal/api"
	"sao-connect/internal/middleware"
)

// HandleMessages handles sending and retrieving messages for the caller
func (s *Server) HandleMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := middleware.IdentityFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		switch r.Method {
		case http.MethodGet:
			// ?with=<id> narrows to one conversation
			var otherUserID *int64
			if with := r.URL.Query().Get("with"); with != "" {
				id, err := strconv.ParseInt(with, 10, 64)
				if err != nil || id <= 0 {
					api.WriteError(w, http.StatusBadRequest, "Invalid user ID")
					return
				}
				otherUserID = &id
			}

			messages, err := s.Store.GetMessagesBetween(ctx, identity.UserID, otherUserID)
			if err != nil {
				s.writeStoreError(w, "Failed to get messages", err)
				return
			}
			api.WriteJSON(w, http.StatusOK, messages)

		case http.MethodPost:
			var req api.SendMessageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				api.WriteError(w, http.StatusBadRequest, "Invalid request body")
				return
			}

			msg, err := s.Store.CreateMessage(ctx, identity.UserID, req.ReceiverID, req.Content, identity.IsAdmin())
			if err != nil {
				s.writeStoreError(w, "Failed to create message", err)
				return
			}

			// Live connections see REST sends the same way as socket sends
			s.Delivery.Deliver(msg)
			api.WriteJSON(w, http.StatusCreated, msg)

		default:
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// HandleMarkRead marks every message from senderId to the caller as read
func (s *Server) HandleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		identity, _ := middleware.IdentityFromContext(r.Context())

		var req api.MarkReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderID <= 0 {
			api.WriteError(w, http.StatusBadRequest, "senderId is required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		if err := s.Store.MarkRead(ctx, req.SenderID, identity.UserID); err != nil {
			s.writeStoreError(w, "Failed to mark messages as read", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, api.MessageResponse{Message: "Messages marked as read"})
	}
}

// HandleUnreadCount reports how many messages to the caller are unread
func (s *Server) HandleUnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		identity, _ := middleware.IdentityFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		count, err := s.Store.UnreadCountFor(ctx, identity.UserID)
		if err != nil {
			s.writeStoreError(w, "Failed to count unread messages", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, api.UnreadCountResponse{Count: count})
	}
}

// HandleConversations lists the caller's conversations, most recent first
func (s *Server) HandleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			api.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		identity, _ := middleware.IdentityFromContext(r.Context())

		ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
		defer cancel()

		conversations, err := s.Conversations.List(ctx, identity.UserID)
		if err != nil {
			s.writeStoreError(w, "Failed to get conversations", err)
			return
		}
		api.WriteJSON(w, http.StatusOK, conversations)
	}
}


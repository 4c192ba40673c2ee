// Package api holds the JSON shapes of the REST surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// SendMessageRequest is the body of POST /api/messages. The sender is the caller.
type SendMessageRequest struct {
	ReceiverID *int64 `json:"receiverId"`
	Content    string `json:"content"`
}

// MarkReadRequest is the body of PUT /api/messages/mark-read.
type MarkReadRequest struct {
	SenderID int64 `json:"senderId"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Backend     string    `json:"backend"`
	Connections int       `json:"connections"`
	Messages    *int      `json:"messages,omitempty"`
	Users       *int      `json:"users,omitempty"`
	Uptime      string    `json:"uptime"`
	ServerTime  time.Time `json:"server_time"`
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// WriteError writes {"message": ...} with the given status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, MessageResponse{Message: message})
}

package api

import "sao-connect/internal/models"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token,omitempty"`
	Error   string       `json:"error,omitempty"`
	User    *models.User `json:"user,omitempty"`
}

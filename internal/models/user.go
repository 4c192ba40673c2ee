package models

import (
	"strings"
	"time"
)

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	StudentID    *string   `json:"studentId,omitempty" db:"student_id"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// IsAdmin reports whether the user belongs to the staff pool.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewUser carries the fields needed to create a directory entry.
// Password is plain text and is hashed by the directory.
type NewUser struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6,max=72"`
	FirstName string  `json:"firstName" validate:"required"`
	LastName  string  `json:"lastName" validate:"required"`
	StudentID *string `json:"studentId,omitempty"`
	Role      string  `json:"role" validate:"omitempty,oneof=student admin"`
}

// Build turns a creation request into a user record. The caller supplies the
// password hash and creation time.
func (n NewUser) Build(passwordHash string, createdAt time.Time) *User {
	role := n.Role
	if role == "" {
		role = RoleStudent
	}
	return &User{
		Email:        NormalizeEmail(n.Email),
		PasswordHash: passwordHash,
		FirstName:    n.FirstName,
		LastName:     n.LastName,
		StudentID:    n.StudentID,
		Role:         role,
		IsActive:     true,
		CreatedAt:    createdAt,
	}
}

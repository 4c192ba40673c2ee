package websocket

import (
	"encoding/json"

	"sao-connect/internal/utils"
)

// Envelope types on the wire.
const (
	TypeAuth    = "auth"
	TypeMessage = "message"
	TypeTyping  = "typing"
)

// Envelope is one decoded inbound frame. The concrete type is one of
// *AuthEnvelope, *MessageEnvelope, *TypingEnvelope or *UnknownEnvelope.
type Envelope interface {
	Type() string
}

// AuthEnvelope binds an identity to the connection.
type AuthEnvelope struct {
	UserID   int64  `json:"userId" validate:"required"`
	UserRole string `json:"userRole"`
}

func (*AuthEnvelope) Type() string { return TypeAuth }

// MessageEnvelope asks the server to persist and fan out a chat message.
// A zero SenderID means "the authenticated user".
type MessageEnvelope struct {
	SenderID    int64  `json:"senderId"`
	ReceiverID  *int64 `json:"receiverId"`
	Content     string `json:"content" validate:"required"`
	IsFromAdmin bool   `json:"isFromAdmin"`
}

func (*MessageEnvelope) Type() string { return TypeMessage }

// TypingEnvelope is a transient typing indicator for one receiver.
type TypingEnvelope struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID *int64 `json:"receiverId" validate:"required"`
	IsTyping   *bool  `json:"isTyping" validate:"required"`
}

func (*TypingEnvelope) Type() string { return TypeTyping }

// UnknownEnvelope carries a well-formed frame whose type is not understood.
type UnknownEnvelope struct {
	Name string
}

func (e *UnknownEnvelope) Type() string { return e.Name }

// DecodeEnvelope parses one inbound frame. Malformed JSON and envelopes
// missing required fields are reported as VALIDATION_ERROR.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, utils.NewAppError(utils.ErrValidation, "malformed envelope", err)
	}

	var env Envelope
	switch head.Type {
	case TypeAuth:
		env = &AuthEnvelope{}
	case TypeMessage:
		env = &MessageEnvelope{}
	case TypeTyping:
		env = &TypingEnvelope{}
	default:
		return &UnknownEnvelope{Name: head.Type}, nil
	}

	if err := json.Unmarshal(data, env); err != nil {
		return nil, utils.NewAppError(utils.ErrValidation, "malformed "+head.Type+" envelope", err)
	}
	if err := utils.ValidateStruct(env); err != nil {
		return nil, err
	}
	return env, nil
}

// OutboundEnvelope is the server to client frame.
type OutboundEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// TypingNotice is the payload of an outbound typing envelope.
type TypingNotice struct {
	SenderID int64 `json:"senderId"`
	IsTyping bool  `json:"isTyping"`
}

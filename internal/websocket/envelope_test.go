package websocket

import (
	"encoding/json"
	"testing"

	"sao-connect/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"auth","userId":7,"userRole":"admin"}`))
	require.NoError(t, err)
	auth, ok := env.(*AuthEnvelope)
	require.True(t, ok)
	assert.Equal(t, int64(7), auth.UserID)
	assert.Equal(t, "admin", auth.UserRole)

	env, err = DecodeEnvelope([]byte(`{"type":"message","senderId":2,"receiverId":1,"content":"hi","isFromAdmin":false}`))
	require.NoError(t, err)
	msg, ok := env.(*MessageEnvelope)
	require.True(t, ok)
	assert.Equal(t, int64(2), msg.SenderID)
	require.NotNil(t, msg.ReceiverID)
	assert.Equal(t, int64(1), *msg.ReceiverID)
	assert.Equal(t, "hi", msg.Content)

	env, err = DecodeEnvelope([]byte(`{"type":"message","content":"to staff"}`))
	require.NoError(t, err)
	assert.Nil(t, env.(*MessageEnvelope).ReceiverID)

	env, err = DecodeEnvelope([]byte(`{"type":"typing","senderId":2,"receiverId":1,"isTyping":false}`))
	require.NoError(t, err)
	typing, ok := env.(*TypingEnvelope)
	require.True(t, ok)
	assert.False(t, *typing.IsTyping)
}

func TestDecodeEnvelopeUnknown(t *testing.T) {
	for _, frame := range []string{`{"type":"presence"}`, `{}`, `{"type":null}`} {
		env, err := DecodeEnvelope([]byte(frame))
		require.NoError(t, err, frame)
		_, ok := env.(*UnknownEnvelope)
		assert.True(t, ok, frame)
	}
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	frames := []string{
		`not json`,
		`[1,2,3]`,
		`{"type":"auth"}`,
		`{"type":"auth","userId":"seven"}`,
		`{"type":"message","receiverId":1}`,
		`{"type":"message","receiverId":1,"content":""}`,
		`{"type":"typing","receiverId":1}`,
		`{"type":"typing","isTyping":true}`,
	}
	for _, frame := range frames {
		_, err := DecodeEnvelope([]byte(frame))
		assert.True(t, utils.IsValidationError(err), frame)
	}
}

func TestOutboundEnvelopeShape(t *testing.T) {
	payload, err := json.Marshal(OutboundEnvelope{
		Type: TypeTyping,
		Data: TypingNotice{SenderID: 3, IsTyping: true},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","data":{"senderId":3,"isTyping":true}}`, string(payload))
}

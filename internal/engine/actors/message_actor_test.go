package actors

import (
	"testing"
	"time"

	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spawnMessageActor(t *testing.T) (*actor.RootContext, *actor.PID) {
	t.Helper()
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMessageActor(utils.NewMetricsCollector())
	})
	return system.Root, system.Root.Spawn(props)
}

func TestMessageActorReturnsCopies(t *testing.T) {
	root, pid := spawnMessageActor(t)

	result, err := root.RequestFuture(pid, &CreateMessageMsg{
		SenderID:   1,
		ReceiverID: lo.ToPtr[int64](2),
		Content:    "hello",
	}, 5*time.Second).Result()
	require.NoError(t, err)
	created := result.(*models.Message)
	assert.Equal(t, int64(1), created.ID)

	// Mutating the reply must not leak into the log
	created.Content = "tampered"
	*created.ReceiverID = 99

	result, err = root.RequestFuture(pid, &GetMessagesBetweenMsg{
		UserID:      2,
		OtherUserID: lo.ToPtr[int64](1),
	}, 5*time.Second).Result()
	require.NoError(t, err)
	messages := result.([]*models.Message)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, int64(2), *messages[0].ReceiverID)
}

func TestMessageActorMarkReadCount(t *testing.T) {
	root, pid := spawnMessageActor(t)

	for _, content := range []string{"a", "b"} {
		_, err := root.RequestFuture(pid, &CreateMessageMsg{
			SenderID:   1,
			ReceiverID: lo.ToPtr[int64](2),
			Content:    content,
		}, 5*time.Second).Result()
		require.NoError(t, err)
	}

	result, err := root.RequestFuture(pid, &MarkReadMsg{SenderID: 1, ReceiverID: 2}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 2, result.(int))

	result, err = root.RequestFuture(pid, &MarkReadMsg{SenderID: 1, ReceiverID: 2}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 0, result.(int))

	result, err = root.RequestFuture(pid, &GetCountsMsg{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.Equal(t, 2, result.(int))
}

func TestMessageActorRejectsBlankContent(t *testing.T) {
	root, pid := spawnMessageActor(t)

	result, err := root.RequestFuture(pid, &CreateMessageMsg{SenderID: 1, Content: "  "}, 5*time.Second).Result()
	require.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrValidation, appErr.Code)
}

// Package storetest holds behaviour checks shared by every storage backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"sao-connect/internal/database"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, initialized backend for one subtest.
type Factory func(t *testing.T) database.Adapter

// RunMessageStoreSuite checks the ordering and read-state rules of a MessageStore.
func RunMessageStoreSuite(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateAssignsIncreasingIDs", func(t *testing.T) {
		store := newStore(t)
		first, err := store.CreateMessage(ctx, 1, lo.ToPtr[int64](2), "hi", false)
		require.NoError(t, err)
		second, err := store.CreateMessage(ctx, 2, lo.ToPtr[int64](1), "hello", false)
		require.NoError(t, err)

		assert.Greater(t, second.ID, first.ID)
		assert.False(t, second.CreatedAt.Before(first.CreatedAt))
		assert.False(t, first.IsRead)
		assert.Equal(t, int64(1), first.SenderID)
		assert.Equal(t, int64(2), *first.ReceiverID)
	})

	t.Run("RejectsEmptyContent", func(t *testing.T) {
		store := newStore(t)
		for _, content := range []string{"", "   ", "\n\t"} {
			_, err := store.CreateMessage(ctx, 1, lo.ToPtr[int64](2), content, false)
			assert.True(t, utils.IsValidationError(err), "content %q", content)
		}

		messages, err := store.GetMessagesBetween(ctx, 1, nil)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("ConversationIsSymmetricAndOrdered", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, 1, lo.ToPtr[int64](2), "one")
		mustCreate(t, store, 2, lo.ToPtr[int64](1), "two")
		mustCreate(t, store, 1, lo.ToPtr[int64](3), "elsewhere")
		mustCreate(t, store, 1, lo.ToPtr[int64](2), "three")

		forward, err := store.GetMessagesBetween(ctx, 1, lo.ToPtr[int64](2))
		require.NoError(t, err)
		backward, err := store.GetMessagesBetween(ctx, 2, lo.ToPtr[int64](1))
		require.NoError(t, err)

		assert.Equal(t, []string{"one", "two", "three"}, contents(forward))
		assert.Equal(t, ids(forward), ids(backward))
		assertOrdered(t, forward)
	})

	t.Run("AllMessagesForUser", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, 1, lo.ToPtr[int64](2), "a")
		mustCreate(t, store, 3, lo.ToPtr[int64](1), "b")
		mustCreate(t, store, 2, lo.ToPtr[int64](3), "not mine")
		mustCreate(t, store, 1, nil, "broadcast")

		messages, err := store.GetMessagesBetween(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "broadcast"}, contents(messages))
		for _, msg := range messages {
			assert.True(t, msg.Involves(1))
		}
	})

	t.Run("UnknownPairIsEmpty", func(t *testing.T) {
		store := newStore(t)
		messages, err := store.GetMessagesBetween(ctx, 41, lo.ToPtr[int64](42))
		require.NoError(t, err)
		assert.NotNil(t, messages)
		assert.Empty(t, messages)
	})

	t.Run("MarkReadIsDirectional", func(t *testing.T) {
		store := newStore(t)
		mustCreate(t, store, 1, lo.ToPtr[int64](2), "to two")
		mustCreate(t, store, 1, lo.ToPtr[int64](2), "to two again")
		mustCreate(t, store, 2, lo.ToPtr[int64](1), "to one")
		mustCreate(t, store, 3, lo.ToPtr[int64](2), "from three")

		count, err := store.UnreadCountFor(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		require.NoError(t, store.MarkRead(ctx, 1, 2))

		count, err = store.UnreadCountFor(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = store.UnreadCountFor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// Idempotent
		require.NoError(t, store.MarkRead(ctx, 1, 2))
		count, err = store.UnreadCountFor(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		messages, err := store.GetMessagesBetween(ctx, 1, lo.ToPtr[int64](2))
		require.NoError(t, err)
		for _, msg := range messages {
			assert.Equal(t, msg.SenderID == 1, msg.IsRead, "message %d", msg.ID)
		}
	})

	t.Run("MarkReadWithNothingUnread", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.MarkRead(ctx, 7, 8))
	})

	t.Run("AdminFlagIsStored", func(t *testing.T) {
		store := newStore(t)
		msg := mustCreateAdmin(t, store, 9, lo.ToPtr[int64](1), "office hours moved")
		assert.True(t, msg.IsFromAdmin)

		messages, err := store.GetMessagesBetween(ctx, 1, lo.ToPtr[int64](9))
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.True(t, messages[0].IsFromAdmin)
	})

	t.Run("ConcurrentCreatesStayOrdered", func(t *testing.T) {
		store := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sender, receiver := int64(1), int64(2)
				if i%2 == 1 {
					sender, receiver = receiver, sender
				}
				_, err := store.CreateMessage(ctx, sender, &receiver, fmt.Sprintf("msg %d", i), false)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		messages, err := store.GetMessagesBetween(ctx, 1, lo.ToPtr[int64](2))
		require.NoError(t, err)
		assert.Len(t, messages, 20)
		assertOrdered(t, messages)
		assert.Equal(t, 20, len(lo.Uniq(ids(messages))))
	})
}

// RunUserDirectorySuite checks account creation and lookup.
func RunUserDirectorySuite(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateAndLookup", func(t *testing.T) {
		store := newStore(t)
		created, err := store.CreateUser(ctx, models.NewUser{
			Email:     "ana@example.edu",
			Password:  "secret123",
			FirstName: "Ana",
			LastName:  "Lopez",
			StudentID: lo.ToPtr("S-100"),
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, models.RoleStudent, created.Role)
		assert.True(t, created.IsActive)
		assert.NoError(t, utils.CheckPassword(created.PasswordHash, "secret123"))

		byID, err := store.GetUser(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@example.edu", byID.Email)
		require.NotNil(t, byID.StudentID)
		assert.Equal(t, "S-100", *byID.StudentID)

		byEmail, err := store.GetUserByEmail(ctx, "ana@example.edu")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("AdminRole", func(t *testing.T) {
		store := newStore(t)
		admin, err := store.CreateUser(ctx, models.NewUser{
			Email:     "staff@example.edu",
			Password:  "secret123",
			FirstName: "Front",
			LastName:  "Desk",
			Role:      models.RoleAdmin,
		})
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin())
		assert.Nil(t, admin.StudentID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		store := newStore(t)
		user := models.NewUser{Email: "dup@example.edu", Password: "secret123", FirstName: "D", LastName: "U"}
		_, err := store.CreateUser(ctx, user)
		require.NoError(t, err)
		_, err = store.CreateUser(ctx, user)
		assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate))
	})

	t.Run("InvalidInput", func(t *testing.T) {
		store := newStore(t)
		_, err := store.CreateUser(ctx, models.NewUser{Email: "not-an-email", Password: "x"})
		assert.True(t, utils.IsValidationError(err))
	})

	t.Run("UnknownUser", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetUser(ctx, 999)
		assert.True(t, utils.IsNotFound(err))
		_, err = store.GetUserByEmail(ctx, "nobody@example.edu")
		assert.True(t, utils.IsNotFound(err))
	})
}

func mustCreate(t *testing.T, store database.MessageStore, sender int64, receiver *int64, content string) *models.Message {
	t.Helper()
	msg, err := store.CreateMessage(context.Background(), sender, receiver, content, false)
	require.NoError(t, err)
	return msg
}

func mustCreateAdmin(t *testing.T, store database.MessageStore, sender int64, receiver *int64, content string) *models.Message {
	t.Helper()
	msg, err := store.CreateMessage(context.Background(), sender, receiver, content, true)
	require.NoError(t, err)
	return msg
}

func assertOrdered(t *testing.T, messages []*models.Message) {
	t.Helper()
	for i := 1; i < len(messages); i++ {
		prev, cur := messages[i-1], messages[i]
		assert.False(t, cur.CreatedAt.Before(prev.CreatedAt), "message %d precedes %d", cur.ID, prev.ID)
		assert.Greater(t, cur.ID, prev.ID)
	}
}

func contents(messages []*models.Message) []string {
	return lo.Map(messages, func(m *models.Message, _ int) string { return m.Content })
}

func ids(messages []*models.Message) []int64 {
	return lo.Map(messages, func(m *models.Message, _ int) int64 { return m.ID })
}

// Package conversation derives inbox summaries from the message store.
package conversation

import (
	"context"
	"log/slog"
	"sort"

	"sao-connect/internal/database"
	"sao-connect/internal/models"
	"sao-connect/internal/utils"
)

// Aggregator builds per-owner conversation lists. Nothing it produces is stored.
type Aggregator struct {
	messages  database.MessageStore
	directory database.UserDirectory
	logger    *slog.Logger
}

func NewAggregator(messages database.MessageStore, directory database.UserDirectory, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Aggregator{messages: messages, directory: directory, logger: logger}
}

// List returns one Conversation per counterpart of owner, most recently
// active first. LastMessage is the newest message exchanged with that
// counterpart and UnreadCount counts their unread messages to owner.
// Messages without a counterpart are ignored, as are counterparts the
// directory no longer knows.
func (a *Aggregator) List(ctx context.Context, owner int64) ([]*models.Conversation, error) {
	messages, err := a.messages.GetMessagesBetween(ctx, owner, nil)
	if err != nil {
		return nil, err
	}

	// Newest first; first encounter per counterpart picks the last message.
	sorted := make([]*models.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})

	conversations := make([]*models.Conversation, 0)
	byCounterpart := make(map[int64]*models.Conversation)
	skipped := make(map[int64]bool)

	for _, msg := range sorted {
		other := msg.OtherParty(owner)
		if other == nil || *other == owner {
			continue
		}
		otherID := *other
		if skipped[otherID] {
			continue
		}

		conv, seen := byCounterpart[otherID]
		if !seen {
			user, err := a.directory.GetUser(ctx, otherID)
			if err != nil {
				if utils.IsNotFound(err) {
					a.logger.Warn("skipping conversation with unknown user", "owner", owner, "user", otherID)
					skipped[otherID] = true
					continue
				}
				return nil, err
			}
			conv = &models.Conversation{OtherUser: user, LastMessage: msg}
			byCounterpart[otherID] = conv
			conversations = append(conversations, conv)
		}

		if msg.AddressedTo(owner) && !msg.IsRead {
			conv.UnreadCount++
		}
	}

	return conversations, nil
}

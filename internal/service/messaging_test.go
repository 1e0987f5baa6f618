package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"creditline-backend/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingService_SendPaidReply(t *testing.T) {
	ctx := context.Background()

	t.Run("Fixed price drains exactly 1.99", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "1.99", 0)
		conv := f.conversation(t, c.ID, "op-1")

		sent, err := f.messaging.SendPaidReply(ctx, "op-1", conv.ID, "hello there", decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageKindPaidReply, sent.Message.Kind)
		assert.Equal(t, "1.99", sent.Message.Price.StringFixed(2))
		assert.Equal(t, sent.Activity.ID, sent.Message.ActivityID)
		assert.Equal(t, domain.ActivityTypePaidOperatorMessage, sent.Activity.Type)
		assert.Equal(t, "1.29", sent.Activity.OperatorEarnings.StringFixed(2))
		assert.Equal(t, "example.com", sent.Activity.SiteDomain)

		assert.Equal(t, "0.00", f.balance(t, c.ID).Credits.StringFixed(2))
		bal, _ := f.store.CustomerRepository.GetOperatorBalance(ctx, "op-1")
		assert.Equal(t, "1.29", bal.TotalEarnings.StringFixed(2))

		msgs, err := f.messaging.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello there", msgs[0].Content)
	})

	t.Run("Explicit price", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "10", 0)
		conv := f.conversation(t, c.ID, "op-1")

		sent, err := f.messaging.SendPaidReply(ctx, "op-1", conv.ID, "photo set", decimal.RequireFromString("4.00"))
		require.NoError(t, err)
		assert.Equal(t, "4.00", sent.Activity.Amount.StringFixed(2))
		assert.Equal(t, "2.60", sent.Activity.OperatorEarnings.StringFixed(2))
	})

	t.Run("Concurrent sends against one message of credit", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "1.99", 0)
		conv := f.conversation(t, c.ID, "op-1")

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = f.messaging.SendPaidReply(ctx, "op-1", conv.ID, "hi", decimal.Zero)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.True(t, f.balance(t, c.ID).Credits.IsZero())

		msgs, _ := f.messaging.ListMessages(ctx, conv.ID)
		assert.Len(t, msgs, 1, "a rejected send leaves no message behind")
	})

	t.Run("Operator must own the conversation", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "10", 0)
		conv := f.conversation(t, c.ID, "op-1")

		_, err := f.messaging.SendPaidReply(ctx, "op-2", conv.ID, "hi", decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, "10.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Unknown conversation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.messaging.SendPaidReply(ctx, "op-1", "missing", "hi", decimal.Zero)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})
}

func TestMessagingService_SendFreeReply(t *testing.T) {
	ctx := context.Background()

	t.Run("Uses a free message credit", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "3.00", 2)
		conv := f.conversation(t, c.ID, "op-1")

		sent, err := f.messaging.SendFreeReply(ctx, "op-1", conv.ID, "welcome!")
		require.NoError(t, err)
		assert.False(t, sent.Activity.Billed)
		assert.Equal(t, domain.ActivityTypeMessage, sent.Activity.Type)
		assert.True(t, sent.Message.Price.IsZero())

		after := f.balance(t, c.ID)
		assert.Equal(t, int32(1), after.FreeChatMessages)
		assert.Equal(t, "3.00", after.Credits.StringFixed(2))
	})

	t.Run("Rejected without a free credit", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "3.00", 0)
		conv := f.conversation(t, c.ID, "op-1")

		_, err := f.messaging.SendFreeReply(ctx, "op-1", conv.ID, "welcome!")
		assert.ErrorIs(t, err, domain.ErrNoFreeMessages)
		assert.Equal(t, "3.00", f.balance(t, c.ID).Credits.StringFixed(2), "never falls back to charging")

		msgs, _ := f.messaging.ListMessages(ctx, conv.ID)
		assert.Empty(t, msgs)
	})

	t.Run("Two immediate sends with one free credit", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "50.00", 1)
		conv := f.conversation(t, c.ID, "op-1")

		var wg sync.WaitGroup
		results := make([]*domain.SentMessage, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = f.messaging.SendFreeReply(ctx, "op-1", conv.ID, "hey")
			}(i)
		}
		wg.Wait()

		free, denied := 0, 0
		for i := range errs {
			switch {
			case errs[i] == nil:
				assert.False(t, results[i].Activity.Billed)
				free++
			case errors.Is(errs[i], domain.ErrNoFreeMessages):
				denied++
			default:
				t.Fatalf("unexpected error: %v", errs[i])
			}
		}
		assert.Equal(t, 1, free)
		assert.Equal(t, 1, denied)

		after := f.balance(t, c.ID)
		assert.Equal(t, int32(0), after.FreeChatMessages)
		assert.Equal(t, "50.00", after.Credits.StringFixed(2))
	})

	t.Run("Empty content", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.messaging.SendFreeReply(ctx, "op-1", "conv", "  ")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestMessagingService_SendMarketing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.customer(t, "0", 0)
	conv := f.conversation(t, c.ID, "op-1")

	sent, err := f.messaging.SendMarketing(ctx, "op-1", conv.ID, "New photos this weekend")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageKindMarketing, sent.Message.Kind)
	assert.Equal(t, domain.ActivityTypeMarketing, sent.Activity.Type)
	assert.False(t, sent.Activity.Billed)
	assert.True(t, sent.Activity.Amount.IsZero())
	assert.True(t, sent.Activity.OperatorEarnings.IsZero())

	bal, _ := f.store.CustomerRepository.GetOperatorBalance(ctx, "op-1")
	assert.True(t, bal.TotalEarnings.IsZero())
}

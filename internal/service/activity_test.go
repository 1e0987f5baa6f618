package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"creditline-backend/internal/domain"
	"creditline-backend/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_RecordActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("Billed activity debits customer and credits operator", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "20.00", 0)

		act, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{
			CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeVideo, SiteDomain: "example.com", Amount: decimal.RequireFromString("3.33"),
		})
		require.NoError(t, err)
		assert.True(t, act.Billed)
		assert.Equal(t, "3.33", act.Amount.StringFixed(2))
		assert.Equal(t, "2.50", act.OperatorEarnings.StringFixed(2), "round(3.33 x 0.75, 2)")
		assert.Equal(t, fixedNow, act.OccurredAt)

		assert.Equal(t, "16.67", f.balance(t, c.ID).Credits.StringFixed(2))
		bal, err := f.store.CustomerRepository.GetOperatorBalance(ctx, "op-1")
		require.NoError(t, err)
		assert.Equal(t, "2.50", bal.TotalEarnings.StringFixed(2))

		stored, err := f.activity.GetActivity(ctx, act.ID)
		require.NoError(t, err)
		assert.Equal(t, act.OperatorEarnings.String(), stored.OperatorEarnings.String())
	})

	t.Run("Earnings follow the injected rate table", func(t *testing.T) {
		f := newFixture(t)
		f.activity.rates = utils.DefaultRateTable().WithCommission(domain.ActivityTypeCall, decimal.RequireFromString("0.50"))
		c := f.customer(t, "10", 0)

		act, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeCall, Amount: decimal.RequireFromString("4.45")})
		require.NoError(t, err)
		assert.Equal(t, "2.23", act.OperatorEarnings.StringFixed(2))
	})

	t.Run("Insufficient credits writes nothing", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "1.00", 0)

		_, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeCall, Amount: decimal.RequireFromString("1.01")})
		assert.ErrorIs(t, err, domain.ErrInsufficientCredits)
		assert.Equal(t, "1.00", f.balance(t, c.ID).Credits.StringFixed(2))

		bal, _ := f.store.CustomerRepository.GetOperatorBalance(ctx, "op-1")
		assert.True(t, bal.TotalEarnings.IsZero())
	})

	t.Run("Free message credit is consumed first", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "5.00", 1)

		act, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeMessage, Amount: decimal.NewFromInt(2)})
		require.NoError(t, err)
		assert.False(t, act.Billed)
		assert.True(t, act.Amount.IsZero())
		assert.True(t, act.OperatorEarnings.IsZero())

		after := f.balance(t, c.ID)
		assert.Equal(t, int32(0), after.FreeChatMessages)
		assert.Equal(t, "5.00", after.Credits.StringFixed(2))

		act, err = f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeMessage, Amount: decimal.NewFromInt(2)})
		require.NoError(t, err)
		assert.True(t, act.Billed, "once free credits run out a message is charged")
		assert.Equal(t, "3.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Marketing is logged for free", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "0", 0)

		act, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeMarketing, Amount: decimal.NewFromInt(9)})
		require.NoError(t, err)
		assert.False(t, act.Billed)
		assert.True(t, act.Amount.IsZero())
		assert.True(t, act.OperatorEarnings.IsZero())
	})

	t.Run("Fixed price applies when amount is omitted", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "5", 0)

		act, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypePaidOperatorMessage})
		require.NoError(t, err)
		assert.Equal(t, "1.99", act.Amount.StringFixed(2))
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t)
		c := f.customer(t, "5", 0)

		cases := []domain.ActivityRequest{
			{OperatorID: "op-1", Type: domain.ActivityTypeCall, Amount: decimal.NewFromInt(1)},
			{CustomerID: c.ID, Type: domain.ActivityTypeCall, Amount: decimal.NewFromInt(1)},
			{CustomerID: c.ID, OperatorID: "op-1", Type: "telepathy", Amount: decimal.NewFromInt(1)},
			{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeCall, Amount: decimal.NewFromInt(-1)},
			{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeCall},
		}
		for _, req := range cases {
			_, err := f.activity.RecordActivity(ctx, req)
			assert.ErrorIs(t, err, domain.ErrValidation, "%+v", req)
		}
		assert.Equal(t, "5.00", f.balance(t, c.ID).Credits.StringFixed(2))
	})

	t.Run("Unknown customer", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: "ghost", OperatorID: "op-1", Type: domain.ActivityTypeCall, Amount: decimal.NewFromInt(1)})
		assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	})
}

func TestActivityService_ConcurrentSpend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	c := f.customer(t, "10.00", 0)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.activity.RecordActivity(ctx, domain.ActivityRequest{CustomerID: c.ID, OperatorID: "op-1", Type: domain.ActivityTypeCam, Amount: decimal.RequireFromString("2.50")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, insufficient := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 4, ok)
	assert.Equal(t, 4, insufficient)
	assert.True(t, f.balance(t, c.ID).Credits.IsZero())

	bal, _ := f.store.CustomerRepository.GetOperatorBalance(ctx, "op-1")
	assert.Equal(t, "8.00", bal.TotalEarnings.StringFixed(2))
}

func TestActivityService_RecordProfileView(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	view, err := f.activity.RecordProfileView(ctx, "cust-1", "op-1")
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, fixedNow, view.ViewedAt)

	_, err = f.activity.RecordProfileView(ctx, "", "op-1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

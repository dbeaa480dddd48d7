//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	"github.com/dmehra2102/burger-builder/internal/builder/domain"
	"github.com/dmehra2102/burger-builder/test/integration"
)

func placeOrder(t *testing.T, id string) domain.Order {
	t.Helper()
	b := domain.NewBuilder(domain.DefaultMenu())
	_, _ = b.AddIngredient(domain.Meat)
	_, _ = b.AddIngredient(domain.Meat)
	_, _ = b.AddIngredient(domain.Salad)
	b.OpenPurchase()
	_, ev := b.ConfirmPurchase()
	require.NotNil(t, ev)
	return domain.NewOrder(id, "s-1", "Max", domain.DefaultMenu(), *ev)
}

func TestRepository_SaveWithOutboxAndRelay(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := integration.Postgres(t)
	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool), "migrations are repeatable")

	repo := NewRepository(log, pool)
	o := placeOrder(t, "o-1")
	payload, err := json.Marshal(domain.NewOrderPlaced(o))
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithOutbox(ctx, o, domain.EventOrderPlaced, payload, nil, "00-abc-def-01"))

	got, err := repo.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "7.10", got.TotalPrice.StringFixed(2))
	require.Len(t, got.Items, 2)
	assert.Equal(t, domain.Salad, got.Items[0].Ingredient)
	assert.Equal(t, domain.Meat, got.Items[1].Ingredient)
	assert.Equal(t, 2, got.Items[1].Quantity)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, application.ErrOrderNotFound)

	store := NewOutboxStore(log, pool, 2)
	events, err := store.LockBatch(ctx, "relay-a", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderPlaced, events[0].Type)
	assert.Equal(t, "00-abc-def-01", events[0].Traceparent)
	assert.JSONEq(t, string(payload), string(events[0].Payload))

	// Leased events are invisible to other relays.
	again, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, store.MarkFailed(ctx, events[0].ID, "broker down"))
	retry, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	assert.Equal(t, 1, retry[0].RetryCount)

	require.NoError(t, store.MarkFailed(ctx, retry[0].ID, "broker down"))
	parked, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, parked, "event parked after max retries")
}

func TestOutboxStore_ExpiredLeaseIsReclaimed(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := integration.Postgres(t)
	require.NoError(t, Migrate(ctx, pool))

	repo := NewRepository(log, pool)
	require.NoError(t, repo.SaveWithOutbox(ctx, placeOrder(t, "o-2"), domain.EventOrderPlaced, []byte(`{}`), map[string]string{"source": "test"}, ""))

	store := NewOutboxStore(log, pool, 5)
	first, err := store.LockBatch(ctx, "relay-a", 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "test", first[0].Headers["source"])

	time.Sleep(200 * time.Millisecond)
	second, err := store.LockBatch(ctx, "relay-b", 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, second, 1)

	require.NoError(t, store.MarkSent(ctx, []int64{second[0].ID}))
	assert.Error(t, store.MarkSent(ctx, []int64{-1}))
}

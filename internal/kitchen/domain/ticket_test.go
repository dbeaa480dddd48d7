package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	builder "github.com/dmehra2102/burger-builder/internal/builder/domain"
)

func placed(total string, items ...builder.OrderItem) builder.OrderPlaced {
	return builder.OrderPlaced{
		OrderID:    "o-1",
		SessionID:  "s-1",
		Customer:   "Max",
		TotalPrice: decimal.RequireFromString(total),
		Items:      items,
	}
}

func item(ing builder.Ingredient, n int, unit string) builder.OrderItem {
	return builder.OrderItem{Ingredient: ing, Quantity: n, UnitPrice: decimal.RequireFromString(unit)}
}

func TestNewTicket(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := placed("6.60", item(builder.Meat, 2, "1.30"))

	tk, err := NewTicket(ev, builder.DefaultMenu(), now)
	require.NoError(t, err)

	types := make([]string, 0, len(tk.Layers))
	for _, l := range tk.Layers {
		types = append(types, l.Type)
	}
	assert.Equal(t, []string{builder.BreadTop, "meat", "meat", builder.BreadBottom}, types)
	assert.Equal(t, StatusQueued, tk.Status)
	assert.Equal(t, "Burger for Max confirmed (6.60). It is being prepared.", tk.Notice)
	assert.Equal(t, now, tk.CreatedAt)
}

func TestNewTicket_Rejects(t *testing.T) {
	menu := builder.DefaultMenu()
	now := time.Now()

	_, err := NewTicket(placed("4.00"), menu, now)
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = NewTicket(placed("5.00", item("pickles", 1, "1.00")), menu, now)
	assert.ErrorIs(t, err, builder.ErrUnknownIngredient)

	_, err = NewTicket(placed("9.99", item(builder.Salad, 1, "0.50")), menu, now)
	assert.ErrorIs(t, err, ErrPriceMismatch)

	_, err = NewTicket(placed("6.10", item(builder.Meat, 2, "1.30"), item(builder.Salad, -1, "0.50")), menu, now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.True(t, Rejected(err))
}

func TestRejected_TransientErrors(t *testing.T) {
	assert.False(t, Rejected(errors.New("connection refused")))
	assert.True(t, Rejected(fmt.Errorf("order o-1: %w", builder.ErrUnknownIngredient)))
}

func TestNotice_WithoutCustomer(t *testing.T) {
	assert.Equal(t, "Burger confirmed (4.50). It is being prepared.", Notice("", decimal.RequireFromString("4.5")))
}

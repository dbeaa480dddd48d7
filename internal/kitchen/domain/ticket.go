package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	builder "github.com/dmehra2102/burger-builder/internal/builder/domain"
)

type Status string

const (
	StatusQueued Status = "queued"
)

var (
	ErrEmptyOrder      = errors.New("order has no ingredients")
	ErrPriceMismatch   = errors.New("order total does not match menu price")
	ErrInvalidQuantity = errors.New("order quantity is negative")
)

// Rejected reports whether err marks an order the kitchen will never accept,
// however often it is retried.
func Rejected(err error) bool {
	return errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrPriceMismatch) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, builder.ErrUnknownIngredient)
}

// Ticket is what the kitchen assembles: the burger top to bottom, plus who
// it is for.
type Ticket struct {
	OrderID    string              `json:"order_id"`
	SessionID  string              `json:"session_id"`
	Customer   string              `json:"customer,omitempty"`
	Layers     []builder.Layer     `json:"layers"`
	Items      []builder.OrderItem `json:"items"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	Status     Status              `json:"status"`
	Notice     string              `json:"notice"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// NewTicket checks a placed order against menu and lays out its burger.
func NewTicket(ev builder.OrderPlaced, menu *builder.Menu, now time.Time) (Ticket, error) {
	counts := make(builder.Counts, len(ev.Items))
	for _, it := range ev.Items {
		if !menu.Has(it.Ingredient) {
			return Ticket{}, fmt.Errorf("order %s: %w: %s", ev.OrderID, builder.ErrUnknownIngredient, it.Ingredient)
		}
		if it.Quantity < 0 {
			return Ticket{}, fmt.Errorf("order %s: %w: %s %d", ev.OrderID, ErrInvalidQuantity, it.Ingredient, it.Quantity)
		}
		counts[it.Ingredient] += it.Quantity
	}
	if counts.Total() == 0 {
		return Ticket{}, fmt.Errorf("order %s: %w", ev.OrderID, ErrEmptyOrder)
	}
	if want := menu.Price(counts); !want.Equal(ev.TotalPrice) {
		return Ticket{}, fmt.Errorf("order %s: %w: got %s, want %s", ev.OrderID, ErrPriceMismatch,
			builder.FormatPrice(ev.TotalPrice), builder.FormatPrice(want))
	}

	return Ticket{
		OrderID:    ev.OrderID,
		SessionID:  ev.SessionID,
		Customer:   ev.Customer,
		Layers:     builder.RenderBurger(menu, counts).Layers,
		Items:      ev.Items,
		TotalPrice: ev.TotalPrice,
		Status:     StatusQueued,
		Notice:     Notice(ev.Customer, ev.TotalPrice),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Notice is the confirmation shown once the kitchen accepted an order.
func Notice(customer string, total decimal.Decimal) string {
	if customer == "" {
		return fmt.Sprintf("Burger confirmed (%s). It is being prepared.", builder.FormatPrice(total))
	}
	return fmt.Sprintf("Burger for %s confirmed (%s). It is being prepared.", customer, builder.FormatPrice(total))
}

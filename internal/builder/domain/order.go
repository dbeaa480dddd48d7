package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const StatusPlaced OrderStatus = "placed"

// Order is a confirmed burger handed off for preparation.
type Order struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Customer   string          `json:"customer,omitempty"`
	Items      []OrderItem     `json:"items"`
	BasePrice  decimal.Decimal `json:"base_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type OrderItem struct {
	Ingredient Ingredient      `json:"ingredient"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// NewOrder freezes a confirmation into an order, one item per ingredient
// present, in menu order.
func NewOrder(id, sessionID, customer string, menu *Menu, ev PurchaseConfirmed) Order {
	items := make([]OrderItem, 0, len(menu.items))
	for _, item := range menu.items {
		if n := ev.Ingredients[item.Ingredient]; n > 0 {
			items = append(items, OrderItem{Ingredient: item.Ingredient, Quantity: n, UnitPrice: item.UnitPrice})
		}
	}
	now := time.Now().UTC()
	return Order{
		ID:         id,
		SessionID:  sessionID,
		Customer:   customer,
		Items:      items,
		BasePrice:  menu.BasePrice(),
		TotalPrice: ev.TotalPrice,
		Status:     StatusPlaced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Counts rebuilds the ingredient counts an order was placed with.
func (o Order) Counts() Counts {
	c := make(Counts, len(o.Items))
	for _, it := range o.Items {
		c[it.Ingredient] += it.Quantity
	}
	return c
}

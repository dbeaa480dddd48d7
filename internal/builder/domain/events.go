package domain

import "github.com/shopspring/decimal"

const EventOrderPlaced = "OrderPlaced"

type OrderPlaced struct {
	OrderID    string          `json:"order_id"`
	SessionID  string          `json:"session_id"`
	Customer   string          `json:"customer,omitempty"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []OrderItem     `json:"items"`
}

func NewOrderPlaced(o Order) OrderPlaced {
	return OrderPlaced{
		OrderID:    o.ID,
		SessionID:  o.SessionID,
		Customer:   o.Customer,
		TotalPrice: o.TotalPrice,
		Items:      o.Items,
	}
}

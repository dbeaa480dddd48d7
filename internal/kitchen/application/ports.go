package application

import (
	"context"
	"errors"

	"github.com/dmehra2102/burger-builder/internal/kitchen/domain"
)

var ErrTicketNotFound = errors.New("ticket not found")

type TicketRepository interface {
	// Upsert stores t keyed by order id; a redelivered order replaces its ticket.
	Upsert(ctx context.Context, t domain.Ticket) error
	Get(ctx context.Context, orderID string) (domain.Ticket, error)
}

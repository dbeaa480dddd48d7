package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	builder "github.com/dmehra2102/burger-builder/internal/builder/domain"
	"github.com/dmehra2102/burger-builder/internal/kitchen/domain"
)

type Service struct {
	log  *slog.Logger
	repo TicketRepository
	menu *builder.Menu
	now  func() time.Time
}

func NewService(log *slog.Logger, repo TicketRepository, menu *builder.Menu) *Service {
	if menu == nil {
		menu = builder.DefaultMenu()
	}
	return &Service{
		log:  log,
		repo: repo,
		menu: menu,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Accept turns a placed order into a queued ticket and surfaces its notice.
func (s *Service) Accept(ctx context.Context, ev builder.OrderPlaced) (domain.Ticket, error) {
	t, err := domain.NewTicket(ev, s.menu, s.now())
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := s.repo.Upsert(ctx, t); err != nil {
		return domain.Ticket{}, fmt.Errorf("store ticket %s: %w", t.OrderID, err)
	}
	s.log.Info("ticket queued", "order_id", t.OrderID, "session_id", t.SessionID, "notice", t.Notice)
	return t, nil
}

func (s *Service) Ticket(ctx context.Context, orderID string) (domain.Ticket, error) {
	return s.repo.Get(ctx, orderID)
}

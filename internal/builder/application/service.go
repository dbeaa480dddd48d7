package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

const (
	NoticeOrderPlaced  = "Your order is on its way to the kitchen."
	NoticeAcknowledged = "Order confirmed."
	NoticeNothingToDo  = "Nothing to confirm."
)

type ConfirmRequest struct {
	Customer       string
	IdempotencyKey string
	Headers        map[string]string
	Traceparent    string
}

type Confirmation struct {
	State  domain.OrderState
	Notice string
	Order  *domain.Order
}

type Service struct {
	log      *slog.Logger
	menu     *domain.Menu
	sessions SessionStore
	orders   OrderRepository
	guard    ConfirmationGuard
	hub      *Hub
	locks    sessionLocks
	newID    func() string
	now      func() time.Time
}

type Option func(*Service)

func WithMenu(m *domain.Menu) Option { return func(s *Service) { s.menu = m } }

// WithOrders turns confirmation into order placement through repo.
func WithOrders(repo OrderRepository) Option { return func(s *Service) { s.orders = repo } }

func WithConfirmationGuard(g ConfirmationGuard) Option { return func(s *Service) { s.guard = g } }

func NewService(log *slog.Logger, sessions SessionStore, opts ...Option) *Service {
	s := &Service{
		log:      log,
		menu:     domain.DefaultMenu(),
		sessions: sessions,
		hub:      NewHub(),
		newID:    func() string { return uuid.NewString() },
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Menu() *domain.Menu { return s.menu }

func (s *Service) NewSession(ctx context.Context) (string, domain.OrderState, error) {
	b := domain.NewBuilder(s.menu)
	st := b.State()
	sess := Session{
		ID:          s.newID(),
		Ingredients: st.Ingredients,
		Purchasing:  st.Purchasing,
		Version:     1,
		UpdatedAt:   s.now(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", domain.OrderState{}, fmt.Errorf("create session: %w", err)
	}
	s.log.Debug("session created", "session_id", sess.ID)
	return sess.ID, st, nil
}

func (s *Service) State(ctx context.Context, id string) (domain.OrderState, error) {
	b, _, err := s.load(ctx, id)
	if err != nil {
		return domain.OrderState{}, err
	}
	return b.State(), nil
}

func (s *Service) View(ctx context.Context, id string) (domain.View, error) {
	st, err := s.State(ctx, id)
	if err != nil {
		return domain.View{}, err
	}
	return domain.Render(s.menu, st), nil
}

func (s *Service) AddIngredient(ctx context.Context, id string, ing domain.Ingredient) (domain.OrderState, error) {
	return s.mutate(ctx, id, func(b *domain.Builder) error {
		_, err := b.AddIngredient(ing)
		return err
	})
}

func (s *Service) RemoveIngredient(ctx context.Context, id string, ing domain.Ingredient) (domain.OrderState, error) {
	return s.mutate(ctx, id, func(b *domain.Builder) error {
		_, err := b.RemoveIngredient(ing)
		return err
	})
}

func (s *Service) OpenPurchase(ctx context.Context, id string) (domain.OrderState, error) {
	return s.mutate(ctx, id, func(b *domain.Builder) error {
		b.OpenPurchase()
		return nil
	})
}

func (s *Service) CancelPurchase(ctx context.Context, id string) (domain.OrderState, error) {
	return s.mutate(ctx, id, func(b *domain.Builder) error {
		b.CancelPurchase()
		return nil
	})
}

// ConfirmPurchase closes the modal. When the order was confirmable and an
// order repository is configured, the closed session is saved first and the
// order with its OrderPlaced event is stored after it. A failed order write
// puts the open modal back.
func (s *Service) ConfirmPurchase(ctx context.Context, id string, req ConfirmRequest) (Confirmation, error) {
	var claim string
	if req.IdempotencyKey != "" && s.guard != nil {
		claim = "confirm:" + id + ":" + req.IdempotencyKey
		seen, err := s.guard.Seen(ctx, claim)
		if err != nil {
			return Confirmation{}, fmt.Errorf("idempotency check: %w", err)
		}
		if seen {
			return Confirmation{}, ErrDuplicateConfirmation
		}
	}

	var (
		placed *domain.Order
		order  domain.Order
		event  []byte
	)
	notice := NoticeNothingToDo
	st, err := s.mutateThen(ctx, id, func(b *domain.Builder) error {
		_, ev := b.ConfirmPurchase()
		if ev == nil {
			return nil
		}
		notice = NoticeAcknowledged
		if s.orders == nil {
			return nil
		}
		order = domain.NewOrder(s.newID(), id, req.Customer, s.menu, *ev)
		payload, err := json.Marshal(domain.NewOrderPlaced(order))
		if err != nil {
			return err
		}
		event = payload
		return nil
	}, func() error {
		if event == nil {
			return nil
		}
		if err := s.orders.SaveWithOutbox(ctx, order, domain.EventOrderPlaced, event, req.Headers, req.Traceparent); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		placed = &order
		notice = NoticeOrderPlaced
		return nil
	})
	if err != nil {
		if claim != "" {
			if rerr := s.guard.Release(ctx, claim); rerr != nil {
				s.log.Warn("idempotency release failed", "session_id", id, "err", rerr)
			}
		}
		return Confirmation{}, err
	}
	if placed != nil {
		s.log.Info("order placed", "session_id", id, "order_id", placed.ID, "total", placed.TotalPrice.StringFixed(2))
	}
	return Confirmation{State: st, Notice: notice, Order: placed}, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	mu := s.locks.get(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Close(id)
	return nil
}

// Subscribe returns the current state and a channel carrying every later
// change of the session. The channel is closed by cancel or when the
// session is deleted.
func (s *Service) Subscribe(ctx context.Context, id string) (domain.OrderState, <-chan domain.OrderState, func(), error) {
	mu := s.locks.get(id)
	mu.Lock()
	defer mu.Unlock()

	b, _, err := s.load(ctx, id)
	if err != nil {
		return domain.OrderState{}, nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(id)
	return b.State(), ch, cancel, nil
}

func (s *Service) Order(ctx context.Context, id string) (domain.Order, error) {
	if s.orders == nil {
		return domain.Order{}, ErrOrderNotFound
	}
	return s.orders.Get(ctx, id)
}

func (s *Service) load(ctx context.Context, id string) (*domain.Builder, Session, error) {
	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, Session{}, err
	}
	b, err := domain.RestoreBuilder(s.menu, sess.Ingredients, sess.Purchasing)
	if err != nil {
		return nil, Session{}, fmt.Errorf("restore session %s: %w", id, err)
	}
	return b, sess, nil
}

// mutate serializes intents per session: load, apply fn, save, then publish
// whatever states the builder emitted.
func (s *Service) mutate(ctx context.Context, id string, fn func(b *domain.Builder) error) (domain.OrderState, error) {
	return s.mutateThen(ctx, id, fn, nil)
}

// mutateThen is mutate with a step run once the session is saved. When then
// fails the previous session is written back and nothing is published.
func (s *Service) mutateThen(ctx context.Context, id string, fn func(b *domain.Builder) error, then func() error) (domain.OrderState, error) {
	mu := s.locks.get(id)
	mu.Lock()
	defer mu.Unlock()

	b, sess, err := s.load(ctx, id)
	if err != nil {
		return domain.OrderState{}, err
	}

	var emitted []domain.OrderState
	unsubscribe := b.Subscribe(func(st domain.OrderState) { emitted = append(emitted, st) })
	defer unsubscribe()

	if err := fn(b); err != nil {
		return b.State(), err
	}
	st := b.State()
	if len(emitted) == 0 {
		return st, nil
	}

	prev := sess
	sess.Ingredients = st.Ingredients
	sess.Purchasing = st.Purchasing
	sess.Version++
	sess.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, sess); err != nil {
		if errors.Is(err, ErrSessionConflict) {
			s.log.Warn("session save conflict", "session_id", id, "version", sess.Version)
		}
		return domain.OrderState{}, err
	}

	if then != nil {
		if err := then(); err != nil {
			prev.Version = sess.Version + 1
			prev.UpdatedAt = s.now()
			if rerr := s.sessions.Save(context.WithoutCancel(ctx), prev); rerr != nil {
				s.log.Error("session rollback failed", "session_id", id, "err", rerr)
			}
			return domain.OrderState{}, err
		}
	}

	for _, e := range emitted {
		s.hub.Publish(id, e)
	}
	return st, nil
}

type sessionLocks [64]sync.Mutex

func (l *sessionLocks) get(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &l[h.Sum32()%uint32(len(l))]
}

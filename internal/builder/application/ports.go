package application

import (
	"context"
	"errors"
	"time"

	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionConflict       = errors.New("session modified concurrently")
	ErrDuplicateConfirmation = errors.New("confirmation already processed")
	ErrOrderNotFound         = errors.New("order not found")
)

// Session is the persisted form of one builder. Derived values are not stored.
type Session struct {
	ID          string        `json:"id"`
	Ingredients domain.Counts `json:"ingredients"`
	Purchasing  bool          `json:"purchasing"`
	Version     int64         `json:"version"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SessionStore persists sessions. Save must fail with ErrSessionConflict when
// the stored version differs from s.Version-1.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

type OrderRepository interface {
	SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error
	Get(ctx context.Context, id string) (domain.Order, error)
}

// ConfirmationGuard claims idempotency keys. Seen reports whether key was
// already claimed; Release gives a claim back after a failed attempt.
type ConfirmationGuard interface {
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/burger-builder/internal/kitchen/application"
	"github.com/dmehra2102/burger-builder/internal/kitchen/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS kitchen_tickets (
		order_id    TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		customer    TEXT NOT NULL DEFAULT '',
		layers      JSONB NOT NULL,
		items       JSONB NOT NULL,
		total_price NUMERIC(10,2) NOT NULL,
		status      TEXT NOT NULL,
		notice      TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the ticket table when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Upsert(ctx context.Context, t domain.Ticket) error {
	layers, err := json.Marshal(t.Layers)
	if err != nil {
		return err
	}
	items, err := json.Marshal(t.Items)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO kitchen_tickets
			(order_id, session_id, customer, layers, items, total_price, status, notice, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (order_id) DO UPDATE SET layers=$4, items=$5, total_price=$6, status=$7, notice=$8, updated_at=$10`,
		t.OrderID, t.SessionID, t.Customer, layers, items, t.TotalPrice, string(t.Status), t.Notice, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert ticket: %w", err)
	}
	r.log.Debug("ticket stored", "order_id", t.OrderID)
	return nil
}

func (r *Repository) Get(ctx context.Context, orderID string) (domain.Ticket, error) {
	var (
		t             domain.Ticket
		status        string
		layers, items []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT order_id, session_id, customer, layers, items, total_price, status, notice, created_at, updated_at
			FROM kitchen_tickets WHERE order_id=$1`, orderID).
		Scan(&t.OrderID, &t.SessionID, &t.Customer, &layers, &items, &t.TotalPrice, &status, &t.Notice, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, application.ErrTicketNotFound
	}
	if err != nil {
		return domain.Ticket{}, err
	}
	if err := json.Unmarshal(layers, &t.Layers); err != nil {
		return domain.Ticket{}, fmt.Errorf("decode layers: %w", err)
	}
	if err := json.Unmarshal(items, &t.Items); err != nil {
		return domain.Ticket{}, fmt.Errorf("decode items: %w", err)
	}
	t.Status = domain.Status(status)
	return t, nil
}

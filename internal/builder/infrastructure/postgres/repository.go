package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	"github.com/dmehra2102/burger-builder/internal/builder/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// SaveWithOutbox writes the order, its items and the outbox event in one
// transaction.
func (r *Repository) SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, session_id, customer, base_price, total_price, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET customer=$3, total_price=$5, status=$6, updated_at=$8`,
		o.ID, o.SessionID, o.Customer, o.BasePrice, o.TotalPrice, string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, position, ingredient, quantity, unit_price)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (order_id, ingredient) DO UPDATE SET position=$2, quantity=$4, unit_price=$5`,
			o.ID, i, string(item.Ingredient), item.Quantity, item.UnitPrice)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}

	if headers == nil {
		headers = map[string]string{}
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
			VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"order", o.ID, eventType, payload, headers, traceparent)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	r.log.Debug("order stored", "order_id", o.ID, "items", len(o.Items))
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, session_id, customer, base_price, total_price, status, created_at, updated_at
			FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.SessionID, &o.Customer, &o.BasePrice, &o.TotalPrice, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, application.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)

	rows, err := r.pool.Query(ctx, `SELECT ingredient, quantity, unit_price FROM order_items WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return domain.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ing  string
			item domain.OrderItem
		)
		if err := rows.Scan(&ing, &item.Quantity, &item.UnitPrice); err != nil {
			return domain.Order{}, err
		}
		item.Ingredient = domain.Ingredient(ing)
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

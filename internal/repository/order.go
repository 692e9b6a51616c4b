package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/ordertx"
)

// OrderRepo stores orders and their decision logs in Postgres.
type OrderRepo struct {
	db *pgxpool.Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{db: db}
}

// Create inserts a new order with an empty log.
func (r *OrderRepo) Create(ctx context.Context, o domain.Order) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders (id, requester, base_status, current_status, created_at)
        VALUES ($1, $2, $3, $3, $4)
    `, o.ID, o.Requester, string(o.BaseStatus), o.CreatedAt)
	if err != nil {
		return orderErr("create order", o.ID, err)
	}
	return nil
}

// Get loads an order with its full log.
func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	return getOrder(ctx, r.db, id, false)
}

// List returns orders matching f, oldest first.
func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilter) ([]domain.Order, error) {
	q := `SELECT id, requester, base_status, created_at FROM orders WHERE true`
	args := make([]any, 0, 2)
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		q += fmt.Sprintf(" AND current_status = ANY($%d)", len(args))
	}
	if f.AssignedTo != "" {
		args = append(args, string(f.AssignedTo))
		q += fmt.Sprintf(" AND assigned_to = $%d", len(args))
	}
	q += ` ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var heads []orderHead
	for rows.Next() {
		var h orderHead
		if err := rows.Scan(&h.id, &h.requester, &h.base, &h.createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		heads = append(heads, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if len(heads) == 0 {
		return []domain.Order{}, nil
	}

	ids := make([]string, 0, len(heads))
	for _, h := range heads {
		ids = append(ids, h.id)
	}
	logs, err := loadHistory(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Order, 0, len(heads))
	for _, h := range heads {
		out = append(out, domain.Restore(h.id, h.requester, domain.Status(h.base), h.createdAt.UTC(), logs[h.id]))
	}
	return out, nil
}

// WithTx opens a transaction and executes fn within it.
func (r *OrderRepo) WithTx(ctx context.Context, fn func(tx ordertx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

// GetForUpdate locks the order row until the transaction ends.
func (r *TxRepo) GetForUpdate(ctx context.Context, id string) (domain.Order, error) {
	return getOrder(ctx, r.tx, id, true)
}

// AppendDecision inserts d and refreshes the cached projection columns.
func (r *TxRepo) AppendDecision(ctx context.Context, d domain.Decision, updated domain.Order) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO order_status_history (order_id, actor, status, kind, at)
        VALUES ($1, $2, $3, $4, $5)
    `, updated.ID, string(d.Actor), string(d.Status), string(d.Kind), d.At)
	if err != nil {
		return orderErr("append decision to", updated.ID, err)
	}

	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET current_status = $2, assigned_to = NULLIF($3, ''), updated_at = now()
        WHERE id = $1
    `, updated.ID, string(updated.Status()), string(updated.AssignedTo()))
	if err != nil {
		return orderErr("update order", updated.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %q: %w", updated.ID, apperr.ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type orderHead struct {
	id        string
	requester string
	base      string
	createdAt time.Time
}

func getOrder(ctx context.Context, q queryer, id string, lock bool) (domain.Order, error) {
	sql := `SELECT id, requester, base_status, created_at FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var h orderHead
	if err := q.QueryRow(ctx, sql, id).Scan(&h.id, &h.requester, &h.base, &h.createdAt); err != nil {
		return domain.Order{}, orderErr("get order", id, err)
	}

	logs, err := loadHistory(ctx, q, []string{id})
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Restore(h.id, h.requester, domain.Status(h.base), h.createdAt.UTC(), logs[id]), nil
}

func loadHistory(ctx context.Context, q queryer, ids []string) (map[string][]domain.Decision, error) {
	rows, err := q.Query(ctx, `
        SELECT order_id, actor, status, kind, at
        FROM order_status_history
        WHERE order_id = ANY($1)
        ORDER BY seq
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Decision, len(ids))
	for rows.Next() {
		var (
			orderID         string
			actor, st, kind string
			at              time.Time
		)
		if err := rows.Scan(&orderID, &actor, &st, &kind, &at); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out[orderID] = append(out[orderID], domain.Decision{
			Actor:  domain.PartnerID(actor),
			Status: domain.Status(st),
			Kind:   domain.DecisionKind(kind),
			At:     at.UTC(),
		})
	}
	return out, rows.Err()
}

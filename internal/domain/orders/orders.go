package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q   dbx.Querier
	gen *CodeGenerator
}

func NewRepository(q dbx.Querier, gen *CodeGenerator) *Repository {
	if gen == nil {
		panic("orders: CodeGenerator is nil")
	}
	return &Repository{
		q:   q,
		gen: gen,
	}
}

const orderColumns = `
	id, order_id, COALESCE(code, ''), email, phone, full_name, address, tier,
	total_cents, currency, status, paystack_reference, paid_at, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order, extra ...any) error {
	dest := []any{
		&o.ID, &o.OrderID, &o.Code, &o.Email, &o.Phone, &o.FullName, &o.Address, &o.Tier,
		&o.TotalCents, &o.Currency, &o.Status, &o.PaystackReference, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// Create inserts the order and its item snapshot.
//
// Assumes this is called INSIDE a transaction: the code is derived from the
// serial id, so it is written in a second statement.
func (r *Repository) Create(ctx context.Context, o *Order, items []Item) (*Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("create order: no items")
	}
	if o.OrderID == uuid.Nil {
		o.OrderID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}

	if err := r.q.QueryRow(ctx, `
		INSERT INTO orders (
		  order_id, email, phone, full_name, address, tier, total_cents, currency, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`,
		o.OrderID, o.Email, o.Phone, o.FullName, o.Address, o.Tier, o.TotalCents, o.Currency, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	code, err := r.gen.Generate(o.ID)
	if err != nil {
		return nil, err
	}
	if _, err := r.q.Exec(ctx, `UPDATE orders SET code=$2 WHERE id=$1`, o.ID, code); err != nil {
		return nil, fmt.Errorf("set order code: %w", err)
	}
	o.Code = code

	for _, it := range items {
		if _, err := r.q.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPriceCents,
		); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	return o, nil
}

func (r *Repository) SetReference(ctx context.Context, id int64, reference string) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE orders
		SET paystack_reference=$2, updated_at=now()
		WHERE id=$1`, id, reference)
	if err != nil {
		return fmt.Errorf("set paystack reference: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := scanOrder(r.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (r *Repository) GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	o, err := r.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *o, Items: items}, nil
}

func (r *Repository) loadItems(ctx context.Context, id int64) ([]Item, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id=$1
		ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// List: admin – optional status / created_at range filters and a search over
// order id, code, name, email and phone. A query that decodes as an order
// code also matches the id behind it. Default limit is 30.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 30
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := []string{"1=1"}
	args := []any{}
	arg := 1

	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", arg))
		args = append(args, f.Status)
		arg++
	}
	if f.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", arg))
		args = append(args, *f.From)
		arg++
	}
	if f.To != nil {
		where = append(where, fmt.Sprintf("created_at < $%d", arg))
		args = append(args, *f.To)
		arg++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		search := fmt.Sprintf(`
			order_id::text ILIKE $%[1]d OR code ILIKE $%[1]d OR full_name ILIKE $%[1]d
			OR email ILIKE $%[1]d OR phone ILIKE $%[1]d`, arg)
		args = append(args, "%"+q+"%")
		arg++
		// a typed code, with or without the ORD- prefix, also matches by id
		if id, err := r.gen.Decode(q); err == nil {
			search += fmt.Sprintf(" OR id = $%d", arg)
			args = append(args, id)
			arg++
		}
		where = append(where, "("+search+")")
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM orders
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, orderColumns, strings.Join(where, " AND "), arg, arg+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		out   []Order
		total int
	)
	for rows.Next() {
		var o Order
		var t int
		if err := scanOrder(rows, &o, &t); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Transition moves the order to `to` only when its current status is one of
// `from`. It reports whether a row changed.
func (r *Repository) Transition(ctx context.Context, id int64, to Status, from ...Status) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition: no source status")
	}
	src := make([]string, len(from))
	for i, s := range from {
		src[i] = string(s)
	}

	cmd, err := r.q.Exec(ctx, `
		UPDATE orders
		SET status=$2, updated_at=now()
		WHERE id=$1 AND status = ANY($3)`, id, to, src)
	if err != nil {
		return false, fmt.Errorf("transition order: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkPaid flips any non-paid order to paid. applied=false means it was
// already paid (or does not exist), so callers must not settle again.
func (r *Repository) MarkPaid(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
		UPDATE orders
		SET status='paid', paid_at=now(), updated_at=now()
		WHERE id=$1 AND status <> 'paid'`, id)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *Repository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status='pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package paymentlogs

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/infra/dbx"
)

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

// Insert stores the payload as JSON. Payloads that fail to marshal are
// stored as NULL rather than failing the payment flow.
func (r *Repository) Insert(ctx context.Context, orderID int64, logType string, payload any) error {
	var jb []byte
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		if json.Valid(p) {
			jb = p
		}
	case []byte:
		if json.Valid(p) {
			jb = p
		}
	default:
		if b, err := json.Marshal(p); err == nil {
			jb = b
		}
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_logs (order_id, log_type, payload)
		VALUES ($1, $2, $3)
	`, orderID, logType, jb)
	if err != nil {
		return fmt.Errorf("insert payment_log: %w", err)
	}
	return nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]PaymentLog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, log_type, payload, created_at
		FROM payment_logs
		WHERE order_id=$1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment_logs: %w", err)
	}
	defer rows.Close()

	out := []PaymentLog{}
	for rows.Next() {
		var l PaymentLog
		var raw []byte
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LogType, &raw, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment_log: %w", err)
		}
		if len(raw) > 0 {
			l.Payload = json.RawMessage(raw)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package paymentlogs

import (
	"context"
	"encoding/json"
	"time"
)

// Log types recorded for every gateway exchange.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeVerify   = "verify"
	TypeWebhook  = "webhook"
	TypeError    = "error"
)

type PaymentLog struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	LogType   string          `json:"log_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Store interface {
	Insert(ctx context.Context, orderID int64, logType string, payload any) error
	ListByOrder(ctx context.Context, orderID int64) ([]PaymentLog, error)
}

package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("order not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID                int64      `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	Code              string     `json:"code"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone"`
	FullName          string     `json:"full_name"`
	Address           string     `json:"address"`
	Tier              string     `json:"tier"`
	TotalCents        int64      `json:"total_cents"`
	Currency          string     `json:"currency"`
	Status            Status     `json:"status"`
	PaystackReference *string    `json:"paystack_reference,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Item is a snapshot of one cart line; price and name are copied at order time.
type Item struct {
	ID             int64  `json:"id"`
	OrderID        int64  `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (it Item) SubtotalCents() int64 {
	return it.UnitPriceCents * int64(it.Quantity)
}

type OrderDetail struct {
	Order Order  `json:"order"`
	Items []Item `json:"items"`
}

// ListFilter is used by the admin order list. Zero values mean "no filter".
type ListFilter struct {
	Status Status
	From   *time.Time
	To     *time.Time
	Query  string
	Limit  int
	Offset int
}

type Store interface {
	// Checkout
	Create(ctx context.Context, o *Order, items []Item) (*Order, error)
	SetReference(ctx context.Context, id int64, reference string) error

	// Lookup
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetDetail(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error)

	// ADMIN-facing
	List(ctx context.Context, f ListFilter) ([]Order, int, error)

	// Lifecycle
	Transition(ctx context.Context, id int64, to Status, from ...Status) (bool, error)
	MarkPaid(ctx context.Context, id int64) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]Order, error)
}

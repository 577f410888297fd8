package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingFields      = errors.New("all fields are required")
	ErrInvalidQuantity    = errors.New("quantity must be between 1 and 10000")
	ErrPaymentUnavailable = errors.New("payment service unavailable")
	ErrReferenceRequired  = errors.New("reference is required")
	ErrVerificationFailed = errors.New("payment verification failed")
	ErrOrderNotFound      = errors.New("order not found")
	ErrAmountMismatch     = errors.New("paid amount does not match order total")
	ErrInvalidTransition  = errors.New("order status cannot be changed")
)

type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product with ID %d not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID int64
	Name      string
	Stock     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s only has %d in stock", e.Name, e.Stock)
}

// GatewayRejectedError carries the provider's own message back to the customer.
type GatewayRejectedError struct {
	Message string
}

func (e *GatewayRejectedError) Error() string {
	return e.Message
}

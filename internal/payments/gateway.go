package payments

import (
	"context"
	"errors"
	"fmt"
)

// PaymentGateway defines a common interface for all payment providers
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
	VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error)
}

// ErrGatewayUnavailable wraps transport failures and provider 5xx replies.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// GatewayError is a well-formed refusal from the provider ("status": false).
type GatewayError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: gateway refused (http=%d): %s", e.Op, e.StatusCode, e.Message)
}

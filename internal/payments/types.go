package payments

import (
	"encoding/json"
	"time"
)

type PaymentRequest struct {
	Reference     string
	AmountSubunit int64 // pesewas / kobo
	Currency      string
	Email         string
	CustomerName  string
	CustomerPhone string
	CallbackURL   string
}

type PaymentResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              json.RawMessage
}

type PaymentVerifyRequest struct {
	Reference string
}

// PaymentVerifyResponse is the provider-neutral verification result.
type PaymentVerifyResponse struct {
	Success       bool
	State         string // success, failed, abandoned, reversed, ongoing, ...
	Terminal      bool
	Reference     string
	AmountSubunit int64
	Currency      string
	PaidAt        *time.Time
	Message       string
	Raw           json.RawMessage
}

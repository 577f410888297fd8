package mailer

import "embed"

const (
	FromName          = "Storefront"
	maxRetires        = 3
	OrderPaidTemplate = "order_paid.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	Send(templateFile, name, email string, data any) error
}

// Nop is used when SMTP is not configured.
type Nop struct{}

func (Nop) Send(string, string, string, any) error { return nil }

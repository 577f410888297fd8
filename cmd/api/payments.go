package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/money"
	"storefront/internal/payments"
)

type VerifyPaymentPayload struct {
	Reference string `json:"reference" example:"6f1c2a9e-8a53-4d0e-9d55-2f1f4b1d7c10"`
}

// VerifyPaymentResponse is the payload inside { "data": ... }.
type VerifyPaymentResponse struct {
	Message     string       `json:"message"`
	OrderID     string       `json:"order_id"`
	Code        string       `json:"code"`
	Amount      money.Amount `json:"amount" swaggertype:"number"`
	Currency    string       `json:"currency"`
	AlreadyPaid bool         `json:"already_paid"`
}

// verifyPaymentHandler godoc
//
//	@Summary		Verify payment
//	@Description	Confirms a Paystack transaction after the customer returns from checkout and marks the order paid.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		VerifyPaymentPayload	true	"Paystack reference"
//	@Success		200		{object}	envelope{data=VerifyPaymentResponse}
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		503		{object}	error
//	@Router			/payments/verify [post]
func (app *application) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 40*time.Second)
	defer cancel()

	var payload VerifyPaymentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	res, err := app.checkout.VerifyPayment(ctx, payload.Reference)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, VerifyPaymentResponse{
		Message:     "Payment verified successfully",
		OrderID:     res.OrderID.String(),
		Code:        res.Code,
		Amount:      money.Amount(res.AmountCents),
		Currency:    res.Currency,
		AlreadyPaid: res.AlreadyPaid,
	})
}

const maxWebhookBytes = 1 << 20

// paystackWebhookHandler godoc
//
//	@Summary		Paystack webhook
//	@Description	Server-to-server notification from Paystack. Only charge.success changes state.
//	@Tags			Payments
//	@Accept			json
//	@Produce		json
//	@Param			x-paystack-signature	header		string	false	"HMAC-SHA512 of the body"
//	@Success		200						{object}	map[string]string
//	@Failure		400						{object}	map[string]string
//	@Failure		401						{object}	error
//	@Failure		405						{object}	error
//	@Failure		500						{object}	map[string]string
//	@Router			/payments/paystack/webhook [post]
func (app *application) paystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		app.methodNotAllowedResponse(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	// signature is computed over the exact bytes, so read them raw
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		app.logger.Warnw("webhook body read failed", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
		return
	}

	if app.config.paystack.verifySignature {
		if !payments.VerifySignature(app.config.paystack.secretKey, body, r.Header.Get(payments.SignatureHeader)) {
			app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid webhook signature"))
			return
		}
	}

	ev, err := payments.ParseWebhook(body)
	if err != nil {
		app.logger.Warnw("webhook payload invalid", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
		return
	}

	if err := app.checkout.HandleWebhook(ctx, ev); err != nil {
		// non-2xx makes Paystack retry
		app.logger.Errorw("webhook processing failed", "event", ev.Event, "reference", ev.Data.Reference, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

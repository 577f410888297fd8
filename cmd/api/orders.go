package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/money"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CartItemPayload struct {
	ProductID int64 `json:"id" validate:"required,gt=0" example:"12"`
	Quantity  int   `json:"quantity" validate:"max=10000" example:"2"`
}

// CreateOrderPayload is the checkout form plus the client-side cart.
// Field presence is checked by the checkout service so the error matches the form.
type CreateOrderPayload struct {
	Email       string            `json:"email" validate:"omitempty,email,max=254" example:"ama@example.com"`
	FullName    string            `json:"full_name" validate:"max=100" example:"Ama Mensah"`
	Phone       string            `json:"phone" validate:"omitempty,phone" example:"0241234567"`
	Address     string            `json:"address" validate:"max=500" example:"12 Ring Road, Accra"`
	Tier        string            `json:"tier" validate:"omitempty,oneof=retail wholesale" example:"retail"`
	Cart        []CartItemPayload `json:"cart" validate:"dive"`
	CallbackURL string            `json:"callback_url" validate:"omitempty,url" example:"https://shop.example.com/thanks"`
}

// createOrderHandler godoc
//
//	@Summary		Create order
//	@Description	Validates the cart against stock, stores a pending order and initializes a Paystack transaction.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateOrderPayload	true	"Order payload"
//	@Success		201		{object}	envelope{data=checkout.CreateOrderResult}
//	@Failure		400		{object}	error
//	@Failure		429		{object}	error
//	@Failure		500		{object}	error
//	@Failure		503		{object}	error	"Payment service unavailable"
//	@Router			/orders [post]
func (app *application) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 40*time.Second)
	defer cancel()

	var payload CreateOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	in := checkout.CreateOrderInput{
		Email:       payload.Email,
		FullName:    payload.FullName,
		Phone:       payload.Phone,
		Address:     payload.Address,
		Tier:        catalog.ParseTier(payload.Tier),
		CallbackURL: payload.CallbackURL,
		Cart:        make([]checkout.CartLine, 0, len(payload.Cart)),
	}
	for _, it := range payload.Cart {
		in.Cart = append(in.Cart, checkout.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := app.checkout.CreateOrder(ctx, in)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/orders/"+res.OrderID.String())
	app.jsonResponse(w, http.StatusCreated, res)
}

// OrderStatusItem is a line of the customer-facing order view.
type OrderStatusItem struct {
	ProductID int64        `json:"product_id"`
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	UnitPrice money.Amount `json:"unit_price" swaggertype:"number"`
	Subtotal  money.Amount `json:"subtotal" swaggertype:"number"`
}

// OrderStatusResponse omits contact details; the order UUID is the only secret.
type OrderStatusResponse struct {
	OrderID   uuid.UUID         `json:"order_id"`
	Code      string            `json:"code"`
	Status    orders.Status     `json:"status"`
	Total     money.Amount      `json:"total" swaggertype:"number"`
	Currency  string            `json:"currency"`
	Items     []OrderStatusItem `json:"items"`
	PaidAt    *time.Time        `json:"paid_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// getOrderStatusHandler godoc
//
//	@Summary		Order status
//	@Description	Status and items of an order, for the thank-you page.
//	@Tags			Orders
//	@Produce		json
//	@Param			orderID	path		string	true	"Order UUID"
//	@Success		200		{object}	envelope{data=OrderStatusResponse}
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Router			/orders/{orderID} [get]
func (app *application) getOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID, err := parseOrderID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	d, err := app.store.Orders.GetDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	resp := OrderStatusResponse{
		OrderID:   d.Order.OrderID,
		Code:      d.Order.Code,
		Status:    d.Order.Status,
		Total:     money.Amount(d.Order.TotalCents),
		Currency:  d.Order.Currency,
		Items:     make([]OrderStatusItem, 0, len(d.Items)),
		PaidAt:    d.Order.PaidAt,
		CreatedAt: d.Order.CreatedAt,
	}
	for _, it := range d.Items {
		resp.Items = append(resp.Items, OrderStatusItem{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: money.Amount(it.UnitPriceCents),
			Subtotal:  money.Amount(it.SubtotalCents()),
		})
	}

	app.jsonResponse(w, http.StatusOK, resp)
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid order ID: %q", raw)
	}
	return id, nil
}

// checkoutErrorResponse maps checkout errors onto HTTP statuses.
func (app *application) checkoutErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *checkout.ProductNotFoundError
		shortStock *checkout.InsufficientStockError
		rejected   *checkout.GatewayRejectedError
	)

	switch {
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrMissingFields),
		errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrReferenceRequired),
		errors.Is(err, checkout.ErrVerificationFailed),
		errors.Is(err, checkout.ErrAmountMismatch),
		errors.As(err, &notFound),
		errors.As(err, &shortStock),
		errors.As(err, &rejected):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, checkout.ErrOrderNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, checkout.ErrInvalidTransition):
		app.conflictResponse(w, r, err)
	case errors.Is(err, checkout.ErrPaymentUnavailable):
		app.serviceUnavailableResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

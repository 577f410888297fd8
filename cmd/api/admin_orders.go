package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentlogs"
	"storefront/internal/money"
	"storefront/internal/params"
)

// AdminOrderListResponse is the payload inside your standard envelope { "data": ... }.
type AdminOrderListResponse struct {
	Orders     []orders.Order    `json:"orders"`
	Pagination params.Pagination `json:"pagination"`
	Status     string            `json:"status"` // applied filter (echoed back)
}

// AdminOrderItem is an order line with its computed subtotal.
type AdminOrderItem struct {
	orders.Item
	UnitPrice money.Amount `json:"unit_price" swaggertype:"number"`
	Subtotal  money.Amount `json:"subtotal" swaggertype:"number"`
}

// AdminOrderDetailResponse is the payload inside { "data": ... }.
type AdminOrderDetailResponse struct {
	Order       orders.Order             `json:"order"`
	Total       money.Amount             `json:"total" swaggertype:"number"`
	Items       []AdminOrderItem         `json:"items"`
	PaymentLogs []paymentlogs.PaymentLog `json:"payment_logs"`
}

// AdminUpdateOrderStatusRequest is PATCH body.
type AdminUpdateOrderStatusRequest struct {
	Status string `json:"status" example:"cancelled"`
}

// AdminUpdateOrderStatusResponse is the payload inside { "data": ... }.
type AdminUpdateOrderStatusResponse struct {
	Message string        `json:"message" example:"status updated"`
	Status  orders.Status `json:"status" example:"cancelled"`
}

type envelope struct {
	Data any `json:"data"`
}

// It creates and immediately discards a value of type envelope. since i am getting unused error through staticcheck
var _ = envelope{}

// adminListOrdersHandler godoc
//
//	@Summary		List orders (admin)
//	@Description	List orders for the admin panel, newest first. Supports status, date range and text search.
//	@Tags			Admin-Orders
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(pending,paid,failed,cancelled)
//	@Param			from	query		string	false	"Created on or after (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Created on or before (YYYY-MM-DD)"
//	@Param			q		query		string	false	"Search order id, code, name, email or phone"
//	@Param			page	query		int		false	"Page number (default: 1)"
//	@Param			limit	query		int		false	"Items per page (default: 15, max: 30)"
//	@Success		200		{object}	envelope{data=AdminOrderListResponse}
//	@Failure		400		{object}	error	"Bad Request"
//	@Failure		500		{object}	error	"Internal Server Error"
//	@Router			/admin/orders [get]
//	@Security		ApiKeyAuth
func (app *application) adminListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	q := r.URL.Query()
	status := orders.Status(strings.TrimSpace(q.Get("status")))
	p := params.ParsePagination(q)

	if status != "" && !status.Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("invalid status %q", status))
		return
	}

	from, err := params.OptionalDate(q, "from", false)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	to, err := params.OptionalDate(q, "to", true)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		app.badRequestResponse(w, r, fmt.Errorf("to must not be before from"))
		return
	}

	ordersList, total, err := app.store.Orders.List(ctx, orders.ListFilter{
		Status: status,
		From:   from,
		To:     to,
		Query:  strings.TrimSpace(q.Get("q")),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if ordersList == nil {
		ordersList = []orders.Order{}
	}

	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, AdminOrderListResponse{
		Orders:     ordersList,
		Pagination: p,
		Status:     string(status),
	})
}

// adminGetOrderHandler godoc
//
//	@Summary		Get order detail (admin)
//	@Description	Get a single order with its line items and the raw payment gateway log.
//	@Tags			Admin-Orders
//	@Produce		json
//	@Param			orderID	path		string	true	"Order UUID"
//	@Success		200		{object}	envelope{data=AdminOrderDetailResponse}
//	@Failure		400		{object}	error	"Bad Request: invalid orderID"
//	@Failure		404		{object}	error	"Not Found: order not found"
//	@Failure		500		{object}	error	"Internal Server Error"
//	@Router			/admin/orders/{orderID} [get]
//	@Security		ApiKeyAuth
func (app *application) adminGetOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	orderID, err := parseOrderID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	detail, err := app.store.Orders.GetDetail(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	logs, err := app.store.PayLogs.ListByOrder(ctx, detail.Order.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if logs == nil {
		logs = []paymentlogs.PaymentLog{}
	}

	resp := AdminOrderDetailResponse{
		Order:       detail.Order,
		Total:       money.Amount(detail.Order.TotalCents),
		Items:       make([]AdminOrderItem, 0, len(detail.Items)),
		PaymentLogs: logs,
	}
	for _, it := range detail.Items {
		resp.Items = append(resp.Items, AdminOrderItem{
			Item:      it,
			UnitPrice: money.Amount(it.UnitPriceCents),
			Subtotal:  money.Amount(it.SubtotalCents()),
		})
	}

	app.jsonResponse(w, http.StatusOK, resp)
}

// adminUpdateOrderStatusHandler godoc
//
//	@Summary		Update order status (admin)
//	@Description	Cancel or fail an order. Paid orders cannot be changed; payment is only recorded by verification or webhook.
//	@Tags			Admin-Orders
//	@Accept			json
//	@Produce		json
//	@Param			orderID	path		string							true	"Order UUID"
//	@Param			body	body		AdminUpdateOrderStatusRequest	true	"Status update payload"
//	@Success		200		{object}	envelope{data=AdminUpdateOrderStatusResponse}
//	@Failure		400		{object}	error	"Bad Request: invalid payload/status"
//	@Failure		404		{object}	error	"Not Found: order not found"
//	@Failure		409		{object}	error	"Conflict: transition not allowed"
//	@Failure		500		{object}	error	"Internal Server Error"
//	@Router			/admin/orders/{orderID}/status [patch]
//	@Security		ApiKeyAuth
func (app *application) adminUpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	orderID, err := parseOrderID(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var in AdminUpdateOrderStatusRequest
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	newStatus := orders.Status(strings.TrimSpace(in.Status))
	if newStatus == "" {
		app.badRequestResponse(w, r, fmt.Errorf("status is required"))
		return
	}
	if !newStatus.Valid() {
		app.badRequestResponse(w, r, fmt.Errorf("invalid status %q", newStatus))
		return
	}

	o, err := app.checkout.UpdateStatus(ctx, orderID, newStatus)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("admin changed order status", "order_id", o.OrderID, "status", o.Status, "by", getAdminFromContext(r))
	app.jsonResponse(w, http.StatusOK, AdminUpdateOrderStatusResponse{
		Message: "status updated",
		Status:  o.Status,
	})
}

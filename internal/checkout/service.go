package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"storefront/internal/cache"
	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentlogs"
	"storefront/internal/events"
	"storefront/internal/mailer"
	"storefront/internal/metrics"
	"storefront/internal/money"
	"storefront/internal/payments"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Repository is the persistence the order lifecycle needs. storage.Container
// implements it on Postgres.
type Repository interface {
	ProductsByID(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error)
	PlaceOrder(ctx context.Context, o *orders.Order, items []orders.Item) (*orders.Order, error)
	OrderByID(ctx context.Context, orderID uuid.UUID) (*orders.Order, error)
	OrderDetail(ctx context.Context, orderID uuid.UUID) (*orders.OrderDetail, error)
	SetReference(ctx context.Context, id int64, reference string) error
	Transition(ctx context.Context, id int64, to orders.Status, from ...orders.Status) (bool, error)
	SettlePaid(ctx context.Context, id int64) (bool, []catalog.StockShortfall, error)
	StalePending(ctx context.Context, before time.Time, limit int) ([]orders.Order, error)
	LogPayment(ctx context.Context, orderID int64, logType string, payload any) error
}

type Config struct {
	Currency       string
	CallbackURL    string
	ReconcileAfter time.Duration
	PendingTTL     time.Duration
}

type Service struct {
	repo    Repository
	gateway payments.PaymentGateway
	events  events.Publisher
	mailer  mailer.Client
	cache   cache.StorefrontCache
	logger  *zap.SugaredLogger
	cfg     Config

	wg sync.WaitGroup
}

func NewService(
	repo Repository,
	gateway payments.PaymentGateway,
	pub events.Publisher,
	mail mailer.Client,
	c cache.StorefrontCache,
	logger *zap.SugaredLogger,
	cfg Config,
) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if mail == nil {
		mail = mailer.Nop{}
	}
	if c == nil {
		c = cache.Nop{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "GHS"
	}
	if cfg.ReconcileAfter <= 0 {
		cfg.ReconcileAfter = 15 * time.Minute
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 24 * time.Hour
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		events:  pub,
		mailer:  mail,
		cache:   c,
		logger:  logger,
		cfg:     cfg,
	}
}

// Wait blocks until background confirmation e-mails have been handed off.
func (s *Service) Wait() {
	s.wg.Wait()
}

type CartLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderInput struct {
	Email       string
	FullName    string
	Phone       string
	Address     string
	Tier        catalog.PriceTier
	Cart        []CartLine
	CallbackURL string
}

type CreateOrderResult struct {
	AuthorizationURL string    `json:"authorization_url"`
	AccessCode       string    `json:"access_code"`
	Reference        string    `json:"reference"`
	OrderID          uuid.UUID `json:"order_id"`
	Code             string    `json:"code"`
	TotalCents       int64     `json:"total_cents"`
	Currency         string    `json:"currency"`
}

// MaxLineQuantity bounds a single cart line, before and after merging.
const MaxLineQuantity = 10000

// mergeCart collapses repeated product lines, keeping first-seen order.
func mergeCart(lines []CartLine) ([]CartLine, error) {
	out := make([]CartLine, 0, len(lines))
	idx := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 || l.Quantity > MaxLineQuantity {
			return nil, ErrInvalidQuantity
		}
		if i, ok := idx[l.ProductID]; ok {
			if out[i].Quantity > MaxLineQuantity-l.Quantity {
				return nil, ErrInvalidQuantity
			}
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if len(in.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	if in.Email == "" || in.FullName == "" || in.Phone == "" || in.Address == "" {
		return nil, ErrMissingFields
	}
	if in.Tier == "" {
		in.Tier = catalog.TierRetail
	}

	lines, err := mergeCart(in.Cart)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.repo.ProductsByID(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	var total int64
	items := make([]orders.Item, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: l.ProductID}
		}
		if l.Quantity > p.Stock {
			return nil, &InsufficientStockError{ProductID: p.ID, Name: p.Name, Stock: p.Stock}
		}
		unit := p.UnitPrice(in.Tier)
		if unit > 0 && int64(l.Quantity) > (math.MaxInt64-total)/unit {
			return nil, ErrInvalidQuantity
		}
		items = append(items, orders.Item{
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: unit,
		})
		total += unit * int64(l.Quantity)
	}

	o, err := s.repo.PlaceOrder(ctx, &orders.Order{
		OrderID:    uuid.New(),
		Email:      in.Email,
		Phone:      in.Phone,
		FullName:   in.FullName,
		Address:    in.Address,
		Tier:       string(in.Tier),
		TotalCents: total,
		Currency:   s.cfg.Currency,
		Status:     orders.StatusPending,
	}, items)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	s.publish(ctx, events.OrderCreated, o, map[string]any{
		"code":        o.Code,
		"tier":        o.Tier,
		"total_cents": o.TotalCents,
		"currency":    o.Currency,
		"items":       items,
	})

	callback := strings.TrimSpace(in.CallbackURL)
	if callback == "" {
		callback = s.cfg.CallbackURL
	}

	req := payments.PaymentRequest{
		Reference:     o.OrderID.String(),
		AmountSubunit: o.TotalCents,
		Currency:      o.Currency,
		Email:         o.Email,
		CustomerName:  o.FullName,
		CustomerPhone: o.Phone,
		CallbackURL:   callback,
	}
	s.logPayment(ctx, o.ID, paymentlogs.TypeRequest, map[string]any{
		"reference":    req.Reference,
		"amount":       req.AmountSubunit,
		"currency":     req.Currency,
		"email":        req.Email,
		"callback_url": req.CallbackURL,
	})

	resp, err := s.gateway.InitiatePayment(ctx, req)
	if err != nil {
		s.logPayment(ctx, o.ID, paymentlogs.TypeError, map[string]any{
			"stage": "initialize",
			"error": err.Error(),
			"raw":   resp.Raw,
		})
		s.markFailed(ctx, o)
		metrics.RecordOrderCreated(o.Tier, "gateway_error")

		var gwErr *payments.GatewayError
		switch {
		case errors.As(err, &gwErr):
			return nil, &GatewayRejectedError{Message: gwErr.Message}
		case errors.Is(err, payments.ErrGatewayUnavailable):
			return nil, ErrPaymentUnavailable
		default:
			return nil, fmt.Errorf("initialize payment: %w", err)
		}
	}
	s.logPayment(ctx, o.ID, paymentlogs.TypeResponse, resp.Raw)

	if err := s.repo.SetReference(ctx, o.ID, resp.Reference); err != nil {
		return nil, fmt.Errorf("save paystack reference: %w", err)
	}
	metrics.RecordOrderCreated(o.Tier, "initialized")

	s.logger.Infow("order created",
		"order_id", o.OrderID, "code", o.Code, "total_cents", o.TotalCents, "tier", o.Tier, "items", len(items))

	return &CreateOrderResult{
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		Reference:        resp.Reference,
		OrderID:          o.OrderID,
		Code:             o.Code,
		TotalCents:       o.TotalCents,
		Currency:         o.Currency,
	}, nil
}

type VerifyResult struct {
	OrderID     uuid.UUID     `json:"order_id"`
	Code        string        `json:"code"`
	Status      orders.Status `json:"status"`
	AmountCents int64         `json:"amount_cents"`
	Currency    string        `json:"currency"`
	AlreadyPaid bool          `json:"already_paid"`
}

// lookup resolves a Paystack reference (the order UUID) to an order.
func (s *Service) lookup(ctx context.Context, reference string) (*orders.Order, error) {
	id, err := uuid.Parse(reference)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	o, err := s.repo.OrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func amountMatches(o *orders.Order, amount int64, currency string) bool {
	if amount != o.TotalCents {
		return false
	}
	return currency == "" || strings.EqualFold(currency, o.Currency)
}

func (s *Service) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrReferenceRequired
	}

	res, err := s.gateway.VerifyPayment(ctx, payments.PaymentVerifyRequest{Reference: reference})
	if err != nil {
		metrics.RecordSettlement("verify", "gateway_error")
		var gwErr *payments.GatewayError
		switch {
		case errors.As(err, &gwErr):
			return nil, ErrVerificationFailed
		case errors.Is(err, payments.ErrGatewayUnavailable):
			return nil, ErrPaymentUnavailable
		default:
			return nil, fmt.Errorf("verify payment: %w", err)
		}
	}

	if !res.Success {
		metrics.RecordSettlement("verify", "not_successful")
		if o, err := s.lookup(ctx, reference); err == nil {
			s.logPayment(ctx, o.ID, paymentlogs.TypeVerify, res.Raw)
			if res.Terminal && res.State == "failed" {
				s.markFailed(ctx, o)
			}
		}
		return nil, ErrVerificationFailed
	}

	o, err := s.lookup(ctx, reference)
	if err != nil {
		return nil, err
	}
	s.logPayment(ctx, o.ID, paymentlogs.TypeVerify, res.Raw)

	if !amountMatches(o, res.AmountSubunit, res.Currency) {
		metrics.RecordSettlement("verify", "amount_mismatch")
		s.logger.Warnw("paid amount does not match order",
			"order_id", o.OrderID, "expected", o.TotalCents, "paid", res.AmountSubunit,
			"currency", res.Currency)
		return nil, ErrAmountMismatch
	}

	applied, err := s.settle(ctx, o, "verify")
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		OrderID:     o.OrderID,
		Code:        o.Code,
		Status:      orders.StatusPaid,
		AmountCents: o.TotalCents,
		Currency:    o.Currency,
		AlreadyPaid: !applied,
	}, nil
}

// HandleWebhook acts on charge.success only. Unknown orders and amount
// mismatches are logged and acknowledged so the provider stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, ev payments.WebhookEvent) error {
	if ev.Event != payments.EventChargeSuccess {
		s.logger.Debugw("webhook event ignored", "event", ev.Event, "reference", ev.Data.Reference)
		return nil
	}

	o, err := s.lookup(ctx, ev.Data.Reference)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			s.logger.Warnw("webhook for unknown order", "reference", ev.Data.Reference)
			metrics.RecordSettlement("webhook", "unknown_order")
			return nil
		}
		return err
	}
	s.logPayment(ctx, o.ID, paymentlogs.TypeWebhook, ev)

	if o.Status == orders.StatusPaid {
		metrics.RecordSettlement("webhook", "duplicate")
		return nil
	}

	if !amountMatches(o, ev.Data.Amount, ev.Data.Currency) {
		metrics.RecordSettlement("webhook", "amount_mismatch")
		s.logger.Warnw("webhook amount does not match order",
			"order_id", o.OrderID, "expected", o.TotalCents, "paid", ev.Data.Amount,
			"currency", ev.Data.Currency)
		return nil
	}

	_, err = s.settle(ctx, o, "webhook")
	return err
}

// settle moves the order to paid exactly once and runs the side effects.
func (s *Service) settle(ctx context.Context, o *orders.Order, source string) (bool, error) {
	applied, short, err := s.repo.SettlePaid(ctx, o.ID)
	if err != nil {
		metrics.RecordSettlement(source, "error")
		return false, fmt.Errorf("settle order: %w", err)
	}
	if !applied {
		metrics.RecordSettlement(source, "duplicate")
		return false, nil
	}

	prev := o.Status
	o.Status = orders.StatusPaid
	metrics.RecordSettlement(source, "settled")

	for _, sh := range short {
		s.logger.Warnw("stock oversold on payment",
			"order_id", o.OrderID, "product_id", sh.ProductID, "product", sh.Name,
			"stock", sh.Stock, "ordered", sh.Ordered)
	}
	if prev != orders.StatusPending {
		s.logger.Warnw("payment settled for non-pending order", "order_id", o.OrderID, "previous_status", prev)
	}

	s.logger.Infow("order paid", "order_id", o.OrderID, "code", o.Code, "source", source)

	s.publish(ctx, events.OrderPaid, o, map[string]any{
		"code":            o.Code,
		"total_cents":     o.TotalCents,
		"currency":        o.Currency,
		"source":          source,
		"previous_status": prev,
		"oversold":        short,
	})

	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warnw("storefront cache invalidation failed", "error", err)
	}

	s.sendPaidEmail(o.OrderID)
	return true, nil
}

func (s *Service) sendPaidEmail(orderID uuid.UUID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		d, err := s.repo.OrderDetail(ctx, orderID)
		if err != nil {
			s.logger.Errorw("load order for e-mail", "order_id", orderID, "error", err)
			return
		}

		type line struct {
			Name     string
			Quantity int
			Subtotal string
		}
		lines := make([]line, 0, len(d.Items))
		for _, it := range d.Items {
			lines = append(lines, line{
				Name:     it.ProductName,
				Quantity: it.Quantity,
				Subtotal: money.Format(it.SubtotalCents(), d.Order.Currency),
			})
		}

		data := map[string]any{
			"Code":     d.Order.Code,
			"FullName": d.Order.FullName,
			"Total":    money.Format(d.Order.TotalCents, d.Order.Currency),
			"OrderID":  d.Order.OrderID.String(),
			"Address":  d.Order.Address,
			"Items":    lines,
		}
		if err := s.mailer.Send(mailer.OrderPaidTemplate, d.Order.FullName, d.Order.Email, data); err != nil {
			s.logger.Errorw("order paid e-mail failed", "order_id", orderID, "error", err)
		}
	}()
}

// allowedTransitions lists, per target status, the statuses an admin may move from.
var allowedTransitions = map[orders.Status][]orders.Status{
	orders.StatusCancelled: {orders.StatusPending, orders.StatusFailed},
	orders.StatusFailed:    {orders.StatusPending},
}

func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to orders.Status) (*orders.Order, error) {
	from, ok := allowedTransitions[to]
	if !ok {
		return nil, ErrInvalidTransition
	}

	o, err := s.repo.OrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	changed, err := s.repo.Transition(ctx, o.ID, to, from...)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, ErrInvalidTransition
	}

	prev := o.Status
	o.Status = to
	s.logger.Infow("order status changed", "order_id", o.OrderID, "from", prev, "to", to)
	s.publish(ctx, events.StatusEvent(string(to)), o, map[string]any{
		"code":            o.Code,
		"previous_status": prev,
		"source":          "admin",
	})
	return o, nil
}

type ReconcileReport struct {
	Checked   int `json:"checked"`
	Settled   int `json:"settled"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// ReconcilePending re-verifies stale pending orders and cancels the ones that
// outlived the pending TTL without being paid.
func (s *Service) ReconcilePending(ctx context.Context, now time.Time) (ReconcileReport, error) {
	var rep ReconcileReport

	stale, err := s.repo.StalePending(ctx, now.Add(-s.cfg.ReconcileAfter), 100)
	if err != nil {
		return rep, fmt.Errorf("list stale orders: %w", err)
	}

	for i := range stale {
		o := &stale[i]
		rep.Checked++

		// initialize always uses the order id as the reference
		ref := o.OrderID.String()
		if o.PaystackReference != nil && *o.PaystackReference != "" {
			ref = *o.PaystackReference
		}

		res, err := s.gateway.VerifyPayment(ctx, payments.PaymentVerifyRequest{Reference: ref})
		switch {
		case errors.Is(err, payments.ErrGatewayUnavailable):
			// cannot tell whether it was paid; leave it for the next run
			s.logger.Warnw("reconcile verify unavailable", "order_id", o.OrderID, "error", err)
			continue
		case err != nil:
			var gwErr *payments.GatewayError
			if !errors.As(err, &gwErr) {
				s.logger.Warnw("reconcile verify failed", "order_id", o.OrderID, "error", err)
				continue
			}
		case res.Success:
			s.logPayment(ctx, o.ID, paymentlogs.TypeVerify, res.Raw)
			if !amountMatches(o, res.AmountSubunit, res.Currency) {
				metrics.RecordSettlement("reconcile", "amount_mismatch")
				s.logger.Warnw("reconcile amount mismatch",
					"order_id", o.OrderID, "expected", o.TotalCents, "paid", res.AmountSubunit)
				// falls through to the TTL check
				break
			}
			if applied, err := s.settle(ctx, o, "reconcile"); err != nil {
				s.logger.Errorw("reconcile settle failed", "order_id", o.OrderID, "error", err)
			} else if applied {
				rep.Settled++
			}
			continue
		case res.Terminal && res.State == "failed":
			s.logPayment(ctx, o.ID, paymentlogs.TypeVerify, res.Raw)
			if s.markFailed(ctx, o) {
				rep.Failed++
			}
			continue
		}

		if now.Sub(o.CreatedAt) >= s.cfg.PendingTTL {
			ok, err := s.repo.Transition(ctx, o.ID, orders.StatusCancelled, orders.StatusPending)
			if err != nil {
				s.logger.Errorw("cancel stale order", "order_id", o.OrderID, "error", err)
				continue
			}
			if ok {
				rep.Cancelled++
				o.Status = orders.StatusCancelled
				s.publish(ctx, events.OrderCancelled, o, map[string]any{
					"code":   o.Code,
					"source": "reconcile",
					"reason": "payment not completed in time",
				})
			}
		}
	}

	return rep, nil
}

func (s *Service) markFailed(ctx context.Context, o *orders.Order) bool {
	ok, err := s.repo.Transition(ctx, o.ID, orders.StatusFailed, orders.StatusPending)
	if err != nil {
		s.logger.Errorw("mark order failed", "order_id", o.OrderID, "error", err)
		return false
	}
	if !ok {
		return false
	}
	o.Status = orders.StatusFailed
	s.publish(ctx, events.OrderFailed, o, map[string]any{"code": o.Code})
	return true
}

func (s *Service) publish(ctx context.Context, t events.EventType, o *orders.Order, payload map[string]any) {
	payload["status"] = o.Status
	if err := s.events.Publish(ctx, t, o.OrderID.String(), payload); err != nil {
		s.logger.Warnw("publish order event", "type", t, "order_id", o.OrderID, "error", err)
	}
}

func (s *Service) logPayment(ctx context.Context, orderID int64, logType string, payload any) {
	if err := s.repo.LogPayment(ctx, orderID, logType, payload); err != nil {
		s.logger.Warnw("payment log insert failed", "order_id", orderID, "log_type", logType, "error", err)
	}
}

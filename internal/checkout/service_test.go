package checkout

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentlogs"
	"storefront/internal/events"
	"storefront/internal/payments"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"
)

func ptr[T any](v T) *T { return &v }

type CheckoutSuite struct {
	suite.Suite

	repo    *fakeRepo
	gateway *fakeGateway
	pub     *fakePublisher
	mail    *fakeMailer
	cache   *fakeCache
	svc     *Service
	ctx     context.Context
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(CheckoutSuite))
}

func (s *CheckoutSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = newFakeRepo(
		&catalog.Product{ID: 1, Name: "Shea Butter", PriceCents: 2550, WholesalePriceCents: ptr[int64](2000), Stock: 10},
		&catalog.Product{ID: 2, Name: "Black Soap", PriceCents: 1200, Stock: 3},
	)
	s.gateway = &fakeGateway{}
	s.pub = &fakePublisher{}
	s.mail = &fakeMailer{}
	s.cache = &fakeCache{}
	s.svc = NewService(s.repo, s.gateway, s.pub, s.mail, s.cache, zaptest.NewLogger(s.T()).Sugar(), Config{
		Currency:       "GHS",
		CallbackURL:    "https://shop.example.com/payment/callback",
		ReconcileAfter: 15 * time.Minute,
		PendingTTL:     24 * time.Hour,
	})
}

func (s *CheckoutSuite) TearDownTest() {
	s.svc.Wait()
}

func (s *CheckoutSuite) validInput() CreateOrderInput {
	return CreateOrderInput{
		Email:    "ama@example.com",
		FullName: "Ama Mensah",
		Phone:    "0241234567",
		Address:  "12 Oxford St, Accra",
		Cart: []CartLine{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	}
}

func (s *CheckoutSuite) placeOrder() *CreateOrderResult {
	res, err := s.svc.CreateOrder(s.ctx, s.validInput())
	s.Require().NoError(err)
	return res
}

func (s *CheckoutSuite) orderFor(res *CreateOrderResult) orders.Order {
	o, err := s.repo.OrderByID(s.ctx, res.OrderID)
	s.Require().NoError(err)
	return *o
}

// ------------------------------------
// CreateOrder
// ------------------------------------

func (s *CheckoutSuite) TestCreateOrder_Success() {
	res := s.placeOrder()

	s.Equal(int64(2*2550+1200), res.TotalCents)
	s.Equal("GHS", res.Currency)
	s.Equal(res.OrderID.String(), res.Reference)
	s.NotEmpty(res.AuthorizationURL)
	s.NotEmpty(res.Code)

	o := s.orderFor(res)
	s.Equal(orders.StatusPending, o.Status)
	s.Require().NotNil(o.PaystackReference)
	s.Equal(res.Reference, *o.PaystackReference)

	s.Require().Len(s.gateway.initReqs, 1)
	req := s.gateway.initReqs[0]
	s.Equal(int64(6300), req.AmountSubunit)
	s.Equal("ama@example.com", req.Email)
	s.Equal("https://shop.example.com/payment/callback", req.CallbackURL)

	s.Equal([]string{paymentlogs.TypeRequest, paymentlogs.TypeResponse}, s.repo.logTypes(o.ID))
	s.Equal([]events.EventType{events.OrderCreated}, s.pub.types())

	// stock is untouched until payment
	s.Equal(10, s.repo.stock(1))
}

func (s *CheckoutSuite) TestCreateOrder_WholesaleTier() {
	in := s.validInput()
	in.Tier = catalog.TierWholesale

	res, err := s.svc.CreateOrder(s.ctx, in)
	s.Require().NoError(err)

	// product 2 has no wholesale price and sells at retail
	s.Equal(int64(2*2000+1200), res.TotalCents)

	d, err := s.repo.OrderDetail(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal("wholesale", d.Order.Tier)
	s.Equal(int64(2000), d.Items[0].UnitPriceCents)
	s.Equal(int64(4000), d.Items[0].SubtotalCents())
}

func (s *CheckoutSuite) TestCreateOrder_RequestCallbackWins() {
	in := s.validInput()
	in.CallbackURL = "https://shop.example.com/wholesale/thanks"

	_, err := s.svc.CreateOrder(s.ctx, in)
	s.Require().NoError(err)
	s.Equal("https://shop.example.com/wholesale/thanks", s.gateway.initReqs[0].CallbackURL)
}

func (s *CheckoutSuite) TestCreateOrder_MergesDuplicateLines() {
	in := s.validInput()
	in.Cart = []CartLine{{ProductID: 2, Quantity: 2}, {ProductID: 2, Quantity: 1}}

	res, err := s.svc.CreateOrder(s.ctx, in)
	s.Require().NoError(err)
	s.Equal(int64(3600), res.TotalCents)

	d, err := s.repo.OrderDetail(s.ctx, res.OrderID)
	s.Require().NoError(err)
	s.Require().Len(d.Items, 1)
	s.Equal(3, d.Items[0].Quantity)
}

func (s *CheckoutSuite) TestCreateOrder_Validation() {
	cases := []struct {
		name   string
		mutate func(in *CreateOrderInput)
		check  func(err error)
	}{
		{"empty cart", func(in *CreateOrderInput) { in.Cart = nil }, func(err error) { s.ErrorIs(err, ErrEmptyCart) }},
		{"missing email", func(in *CreateOrderInput) { in.Email = " " }, func(err error) { s.ErrorIs(err, ErrMissingFields) }},
		{"missing address", func(in *CreateOrderInput) { in.Address = "" }, func(err error) { s.ErrorIs(err, ErrMissingFields) }},
		{"zero quantity", func(in *CreateOrderInput) { in.Cart[0].Quantity = 0 }, func(err error) { s.ErrorIs(err, ErrInvalidQuantity) }},
		{"quantity above line cap", func(in *CreateOrderInput) { in.Cart[0].Quantity = MaxLineQuantity + 1 }, func(err error) { s.ErrorIs(err, ErrInvalidQuantity) }},
		{"merged quantity wraps int", func(in *CreateOrderInput) {
			in.Cart = []CartLine{{ProductID: 1, Quantity: math.MaxInt}, {ProductID: 1, Quantity: 2}}
		}, func(err error) { s.ErrorIs(err, ErrInvalidQuantity) }},
		{"merged quantity above line cap", func(in *CreateOrderInput) {
			in.Cart = []CartLine{{ProductID: 1, Quantity: 6000}, {ProductID: 1, Quantity: 6000}}
		}, func(err error) { s.ErrorIs(err, ErrInvalidQuantity) }},
		{"unknown product", func(in *CreateOrderInput) { in.Cart[0].ProductID = 99 }, func(err error) {
			var nf *ProductNotFoundError
			s.Require().ErrorAs(err, &nf)
			s.Equal("product with ID 99 not found", nf.Error())
		}},
		{"over stock", func(in *CreateOrderInput) { in.Cart[1].Quantity = 4 }, func(err error) {
			var se *InsufficientStockError
			s.Require().ErrorAs(err, &se)
			s.Equal("Black Soap only has 3 in stock", se.Error())
		}},
		{"merged lines over stock", func(in *CreateOrderInput) {
			in.Cart = []CartLine{{ProductID: 2, Quantity: 2}, {ProductID: 2, Quantity: 2}}
		}, func(err error) {
			var se *InsufficientStockError
			s.ErrorAs(err, &se)
		}},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			in := s.validInput()
			tc.mutate(&in)
			res, err := s.svc.CreateOrder(s.ctx, in)
			s.Nil(res)
			tc.check(err)
		})
	}

	s.Empty(s.repo.orders, "no order is persisted on validation errors")
	s.Empty(s.gateway.initReqs)
}

func (s *CheckoutSuite) TestCreateOrder_TotalOverflowRejected() {
	s.repo.products[3] = &catalog.Product{ID: 3, Name: "Gold Leaf", PriceCents: math.MaxInt64 / 2, Stock: 10}

	in := s.validInput()
	in.Cart = []CartLine{{ProductID: 3, Quantity: 3}}
	res, err := s.svc.CreateOrder(s.ctx, in)
	s.Nil(res)
	s.ErrorIs(err, ErrInvalidQuantity)
	s.Empty(s.repo.orders)
}

func (s *CheckoutSuite) TestCreateOrder_GatewayUnavailable() {
	s.gateway.initErr = errors.Join(payments.ErrGatewayUnavailable, errors.New("dial tcp: timeout"))

	res, err := s.svc.CreateOrder(s.ctx, s.validInput())
	s.Nil(res)
	s.ErrorIs(err, ErrPaymentUnavailable)

	o := s.repo.order(1)
	s.Equal(orders.StatusFailed, o.Status)
	s.Nil(o.PaystackReference)
	s.Contains(s.repo.logTypes(o.ID), paymentlogs.TypeError)
	s.Equal([]events.EventType{events.OrderCreated, events.OrderFailed}, s.pub.types())
}

func (s *CheckoutSuite) TestCreateOrder_GatewayRejects() {
	s.gateway.initErr = &payments.GatewayError{Op: "initialize", StatusCode: 400, Message: "Invalid email address"}

	_, err := s.svc.CreateOrder(s.ctx, s.validInput())
	var rej *GatewayRejectedError
	s.Require().ErrorAs(err, &rej)
	s.Equal("Invalid email address", rej.Message)
	s.Equal(orders.StatusFailed, s.repo.order(1).Status)
}

// ------------------------------------
// VerifyPayment
// ------------------------------------

func (s *CheckoutSuite) TestVerifyPayment_Success() {
	res := s.placeOrder()
	s.gateway.succeed(res.Reference, res.TotalCents)

	out, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.Require().NoError(err)
	s.svc.Wait()

	s.Equal(res.OrderID, out.OrderID)
	s.Equal(orders.StatusPaid, out.Status)
	s.False(out.AlreadyPaid)

	o := s.orderFor(res)
	s.Equal(orders.StatusPaid, o.Status)
	s.NotNil(o.PaidAt)
	s.Equal(8, s.repo.stock(1))
	s.Equal(2, s.repo.stock(2))

	s.Equal(1, s.cache.invalidated)
	s.Require().Len(s.mail.sent, 1)
	s.Equal("ama@example.com", s.mail.sent[0].Email)
	s.Contains(s.pub.types(), events.OrderPaid)
	s.Contains(s.repo.logTypes(o.ID), paymentlogs.TypeVerify)
}

func (s *CheckoutSuite) TestVerifyPayment_IsIdempotent() {
	res := s.placeOrder()
	s.gateway.succeed(res.Reference, res.TotalCents)

	_, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.Require().NoError(err)

	out, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.Require().NoError(err)
	s.svc.Wait()

	s.True(out.AlreadyPaid)
	s.Equal(1, s.repo.settles)
	s.Equal(8, s.repo.stock(1), "stock decremented exactly once")
	s.Len(s.mail.sent, 1)
}

func (s *CheckoutSuite) TestVerifyPayment_Errors() {
	s.Run("empty reference", func() {
		_, err := s.svc.VerifyPayment(s.ctx, "  ")
		s.ErrorIs(err, ErrReferenceRequired)
	})

	s.Run("unknown at gateway", func() {
		_, err := s.svc.VerifyPayment(s.ctx, "nope")
		s.ErrorIs(err, ErrVerificationFailed)
	})

	s.Run("successful but no such order", func() {
		ref := uuid.NewString()
		s.gateway.succeed(ref, 100)
		_, err := s.svc.VerifyPayment(s.ctx, ref)
		s.ErrorIs(err, ErrOrderNotFound)
	})

	s.Run("gateway down", func() {
		s.gateway.verifyErr = payments.ErrGatewayUnavailable
		defer func() { s.gateway.verifyErr = nil }()
		_, err := s.svc.VerifyPayment(s.ctx, uuid.NewString())
		s.ErrorIs(err, ErrPaymentUnavailable)
	})
}

func (s *CheckoutSuite) TestVerifyPayment_AmountMismatch() {
	res := s.placeOrder()
	s.gateway.succeed(res.Reference, res.TotalCents-100)

	_, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.ErrorIs(err, ErrAmountMismatch)
	s.Equal(orders.StatusPending, s.orderFor(res).Status)
	s.Equal(10, s.repo.stock(1))
}

func (s *CheckoutSuite) TestVerifyPayment_FailedChargeMarksOrderFailed() {
	res := s.placeOrder()
	s.gateway.state(res.Reference, "failed", true)

	_, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.ErrorIs(err, ErrVerificationFailed)
	s.Equal(orders.StatusFailed, s.orderFor(res).Status)
}

func (s *CheckoutSuite) TestVerifyPayment_AbandonedStaysPending() {
	res := s.placeOrder()
	s.gateway.state(res.Reference, "abandoned", false)

	_, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.ErrorIs(err, ErrVerificationFailed)
	s.Equal(orders.StatusPending, s.orderFor(res).Status)
}

// ------------------------------------
// HandleWebhook
// ------------------------------------

func (s *CheckoutSuite) chargeSuccess(ref string, amount int64) payments.WebhookEvent {
	return payments.WebhookEvent{
		Event: payments.EventChargeSuccess,
		Data:  payments.WebhookData{Reference: ref, Status: "success", Amount: amount, Currency: "GHS"},
	}
}

func (s *CheckoutSuite) TestWebhook_SettlesOnce() {
	res := s.placeOrder()

	s.Require().NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, res.TotalCents)))
	s.Require().NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, res.TotalCents)))
	s.svc.Wait()

	s.Equal(orders.StatusPaid, s.orderFor(res).Status)
	s.Equal(1, s.repo.settles)
	s.Equal(8, s.repo.stock(1))
	s.Len(s.mail.sent, 1)
}

func (s *CheckoutSuite) TestWebhook_ThenVerifyDoesNotDecrementAgain() {
	res := s.placeOrder()
	s.Require().NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, res.TotalCents)))

	s.gateway.succeed(res.Reference, res.TotalCents)
	out, err := s.svc.VerifyPayment(s.ctx, res.Reference)
	s.Require().NoError(err)
	s.True(out.AlreadyPaid)
	s.Equal(8, s.repo.stock(1))
}

func (s *CheckoutSuite) TestWebhook_Ignored() {
	res := s.placeOrder()

	s.Run("other events", func() {
		err := s.svc.HandleWebhook(s.ctx, payments.WebhookEvent{Event: "transfer.success", Data: payments.WebhookData{Reference: res.Reference}})
		s.NoError(err)
	})
	s.Run("unnamed event", func() {
		err := s.svc.HandleWebhook(s.ctx, payments.WebhookEvent{Data: payments.WebhookData{Reference: res.Reference, Amount: res.TotalCents}})
		s.NoError(err)
	})
	s.Run("unknown order", func() {
		s.NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(uuid.NewString(), 100)))
		s.NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess("not-a-uuid", 100)))
	})
	s.Run("amount mismatch", func() {
		s.NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, 1)))
	})

	s.Equal(orders.StatusPending, s.orderFor(res).Status)
	s.Equal(0, s.repo.settles)
}

func (s *CheckoutSuite) TestWebhook_PaymentWinsOverCancellation() {
	res := s.placeOrder()
	_, err := s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusCancelled)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, res.TotalCents)))
	s.Equal(orders.StatusPaid, s.orderFor(res).Status)
	s.Equal(8, s.repo.stock(1))
}

func (s *CheckoutSuite) TestWebhook_OversoldClampsStock() {
	res := s.placeOrder()

	// stock sold elsewhere between checkout and payment
	s.repo.mu.Lock()
	s.repo.products[2].Stock = 0
	s.repo.mu.Unlock()

	s.Require().NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, res.TotalCents)))
	s.Equal(orders.StatusPaid, s.orderFor(res).Status)
	s.Equal(0, s.repo.stock(2))
	s.Equal(8, s.repo.stock(1))
}

// ------------------------------------
// UpdateStatus
// ------------------------------------

func (s *CheckoutSuite) TestUpdateStatus() {
	s.Run("pending to cancelled", func() {
		res := s.placeOrder()
		o, err := s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusCancelled)
		s.Require().NoError(err)
		s.Equal(orders.StatusCancelled, o.Status)
	})

	s.Run("pending to failed then cancelled", func() {
		res := s.placeOrder()
		_, err := s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusFailed)
		s.Require().NoError(err)
		_, err = s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusCancelled)
		s.Require().NoError(err)
	})

	s.Run("paid is final", func() {
		res := s.placeOrder()
		s.Require().NoError(s.svc.HandleWebhook(s.ctx, s.chargeSuccess(res.Reference, res.TotalCents)))
		_, err := s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusCancelled)
		s.ErrorIs(err, ErrInvalidTransition)
		s.Equal(orders.StatusPaid, s.orderFor(res).Status)
	})

	s.Run("cannot set paid or pending by hand", func() {
		res := s.placeOrder()
		_, err := s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusPaid)
		s.ErrorIs(err, ErrInvalidTransition)
		_, err = s.svc.UpdateStatus(s.ctx, res.OrderID, orders.StatusPending)
		s.ErrorIs(err, ErrInvalidTransition)
	})

	s.Run("unknown order", func() {
		_, err := s.svc.UpdateStatus(s.ctx, uuid.New(), orders.StatusCancelled)
		s.ErrorIs(err, ErrOrderNotFound)
	})
}

// ------------------------------------
// ReconcilePending
// ------------------------------------

func (s *CheckoutSuite) age(res *CreateOrderResult, by time.Duration) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	o := s.repo.find(res.OrderID)
	o.CreatedAt = o.CreatedAt.Add(-by)
}

func (s *CheckoutSuite) TestReconcilePending() {
	paid := s.placeOrder()
	failed := s.placeOrder()
	expired := s.placeOrder()
	fresh := s.placeOrder()
	waiting := s.placeOrder()

	s.age(paid, time.Hour)
	s.age(failed, time.Hour)
	s.age(expired, 25*time.Hour)
	s.age(waiting, time.Hour)

	s.gateway.succeed(paid.Reference, paid.TotalCents)
	s.gateway.state(failed.Reference, "failed", true)
	s.gateway.state(expired.Reference, "abandoned", false)
	s.gateway.state(waiting.Reference, "ongoing", false)

	rep, err := s.svc.ReconcilePending(s.ctx, time.Now())
	s.Require().NoError(err)
	s.svc.Wait()

	s.Equal(ReconcileReport{Checked: 4, Settled: 1, Failed: 1, Cancelled: 1}, rep)
	s.Equal(orders.StatusPaid, s.orderFor(paid).Status)
	s.Equal(orders.StatusFailed, s.orderFor(failed).Status)
	s.Equal(orders.StatusCancelled, s.orderFor(expired).Status)
	s.Equal(orders.StatusPending, s.orderFor(fresh).Status)
	s.Equal(orders.StatusPending, s.orderFor(waiting).Status)
}

func (s *CheckoutSuite) TestReconcilePending_VerifiesOrdersWithoutReference() {
	res := s.placeOrder()
	s.age(res, time.Hour)
	s.repo.mu.Lock()
	s.repo.find(res.OrderID).PaystackReference = nil
	s.repo.mu.Unlock()

	s.gateway.succeed(res.OrderID.String(), res.TotalCents)

	rep, err := s.svc.ReconcilePending(s.ctx, time.Now())
	s.Require().NoError(err)
	s.svc.Wait()

	s.Equal(ReconcileReport{Checked: 1, Settled: 1}, rep)
	s.Equal(orders.StatusPaid, s.orderFor(res).Status)
}

func (s *CheckoutSuite) TestReconcilePending_AmountMismatchStillExpires() {
	short := s.placeOrder()
	recent := s.placeOrder()
	s.age(short, 25*time.Hour)
	s.age(recent, time.Hour)

	s.gateway.succeed(short.Reference, short.TotalCents-100)
	s.gateway.succeed(recent.Reference, recent.TotalCents-100)

	rep, err := s.svc.ReconcilePending(s.ctx, time.Now())
	s.Require().NoError(err)
	s.svc.Wait()

	s.Equal(ReconcileReport{Checked: 2, Cancelled: 1}, rep)
	s.Equal(orders.StatusCancelled, s.orderFor(short).Status)
	s.Equal(orders.StatusPending, s.orderFor(recent).Status)
	s.Equal(0, s.repo.settles)
}

func (s *CheckoutSuite) TestReconcilePending_GatewayDownKeepsOrders() {
	res := s.placeOrder()
	s.age(res, 48*time.Hour)
	s.gateway.verifyErr = payments.ErrGatewayUnavailable

	rep, err := s.svc.ReconcilePending(s.ctx, time.Now())
	s.Require().NoError(err)
	s.Equal(0, rep.Cancelled)
	s.Equal(orders.StatusPending, s.orderFor(res).Status)
}

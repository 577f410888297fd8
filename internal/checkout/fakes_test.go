package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/events"
	"storefront/internal/payments"

	"github.com/google/uuid"
)

type loggedPayment struct {
	OrderID int64
	Type    string
	Payload any
}

type fakeRepo struct {
	mu       sync.Mutex
	products map[int64]*catalog.Product
	orders   map[int64]*orders.Order
	items    map[int64][]orders.Item
	logs     []loggedPayment
	nextID   int64
	settles  int

	placeErr error
}

func newFakeRepo(products ...*catalog.Product) *fakeRepo {
	r := &fakeRepo{
		products: map[int64]*catalog.Product{},
		orders:   map[int64]*orders.Order{},
		items:    map[int64][]orders.Item{},
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *fakeRepo) ProductsByID(_ context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]*catalog.Product{}
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *fakeRepo) PlaceOrder(_ context.Context, o *orders.Order, items []orders.Item) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.placeErr != nil {
		return nil, r.placeErr
	}
	r.nextID++
	o.ID = r.nextID
	o.Code = fmt.Sprintf("ORD-%04d", o.ID)
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	r.orders[o.ID] = &cp
	for i := range items {
		items[i].OrderID = o.ID
	}
	r.items[o.ID] = append([]orders.Item(nil), items...)
	return o, nil
}

func (r *fakeRepo) find(id uuid.UUID) *orders.Order {
	for _, o := range r.orders {
		if o.OrderID == id {
			return o
		}
	}
	return nil
}

func (r *fakeRepo) OrderByID(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.find(id)
	if o == nil {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeRepo) OrderDetail(_ context.Context, id uuid.UUID) (*orders.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.find(id)
	if o == nil {
		return nil, orders.ErrNotFound
	}
	return &orders.OrderDetail{Order: *o, Items: r.items[o.ID]}, nil
}

func (r *fakeRepo) SetReference(_ context.Context, id int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.PaystackReference = &ref
	return nil
}

func (r *fakeRepo) Transition(_ context.Context, id int64, to orders.Status, from ...orders.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) SettlePaid(_ context.Context, id int64) (bool, []catalog.StockShortfall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status == orders.StatusPaid {
		return false, nil, nil
	}
	now := time.Now()
	o.Status = orders.StatusPaid
	o.PaidAt = &now
	r.settles++

	var short []catalog.StockShortfall
	for _, it := range r.items[id] {
		p := r.products[it.ProductID]
		if p.Stock < it.Quantity {
			short = append(short, catalog.StockShortfall{ProductID: p.ID, Name: p.Name, Stock: p.Stock, Ordered: it.Quantity})
			p.Stock = 0
			continue
		}
		p.Stock -= it.Quantity
	}
	return true, short, nil
}

func (r *fakeRepo) StalePending(_ context.Context, before time.Time, _ int) ([]orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orders.Order
	for _, o := range r.orders {
		if o.Status == orders.StatusPending && o.CreatedAt.Before(before) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *fakeRepo) LogPayment(_ context.Context, orderID int64, logType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, loggedPayment{OrderID: orderID, Type: logType, Payload: payload})
	return nil
}

func (r *fakeRepo) order(id int64) orders.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[id]
}

func (r *fakeRepo) stock(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].Stock
}

func (r *fakeRepo) logTypes(orderID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, l := range r.logs {
		if l.OrderID == orderID {
			out = append(out, l.Type)
		}
	}
	return out
}

type fakeGateway struct {
	mu sync.Mutex

	initReqs  []payments.PaymentRequest
	initErr   error
	verifyRes map[string]payments.PaymentVerifyResponse
	verifyErr error
}

func (g *fakeGateway) InitiatePayment(_ context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initReqs = append(g.initReqs, req)
	if g.initErr != nil {
		return payments.PaymentResponse{}, g.initErr
	}
	return payments.PaymentResponse{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "ac_" + req.Reference[:8],
		Reference:        req.Reference,
		Raw:              []byte(`{"status":true}`),
	}, nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, req payments.PaymentVerifyRequest) (payments.PaymentVerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return payments.PaymentVerifyResponse{}, g.verifyErr
	}
	res, ok := g.verifyRes[req.Reference]
	if !ok {
		return payments.PaymentVerifyResponse{}, &payments.GatewayError{Op: "verify", StatusCode: 404, Message: "Transaction reference not found"}
	}
	return res, nil
}

func (g *fakeGateway) succeed(ref string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyRes == nil {
		g.verifyRes = map[string]payments.PaymentVerifyResponse{}
	}
	g.verifyRes[ref] = payments.PaymentVerifyResponse{
		Success: true, State: "success", Terminal: true, Reference: ref, AmountSubunit: amount, Currency: "GHS",
	}
}

func (g *fakeGateway) state(ref, state string, terminal bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyRes == nil {
		g.verifyRes = map[string]payments.PaymentVerifyResponse{}
	}
	g.verifyRes[ref] = payments.PaymentVerifyResponse{State: state, Terminal: terminal, Reference: ref}
}

type recordedEvent struct {
	Type    events.EventType
	OrderID string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(_ context.Context, t events.EventType, orderID string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: t, OrderID: orderID})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type sentMail struct {
	Template string
	Email    string
	Data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(tmpl, _ string, email string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Template: tmpl, Email: email, Data: data})
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated int
}

func (c *fakeCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (c *fakeCache) Set(context.Context, string, any) error { return nil }
func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

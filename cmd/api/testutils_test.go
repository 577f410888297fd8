package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/checkout"
	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentlogs"
	"storefront/internal/domain/storage"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAdminEmail    = "owner@example.com"
	testAdminPassword = "correct horse"
	testPaystackKey   = "sk_test_webhook"
)

type testEnv struct {
	app      *application
	catalog  *fakeCatalog
	orders   *fakeOrders
	payLogs  *fakePayLogs
	checkout *fakeCheckout
	images   *fakeImages
	cache    *fakeCache
	handler  http.Handler
}

func newTestEnv(t *testing.T, mutate ...func(*config)) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config{
		addr: ":8080",
		env:  "test",
		paystack: paystackConfig{
			secretKey:       testPaystackKey,
			publicKey:       "pk_test_public",
			currency:        "GHS",
			verifySignature: true,
		},
		auth: authConfig{
			basic: basicConfig{user: "ops", pass: "secret"},
			token: tokenConfig{secret: "jwt-secret", exp: time.Hour, iss: "storefront"},
			admin: adminConfig{email: testAdminEmail, passwordHash: string(hash)},
		},
		rateLimiter: ratelimiter.Config{RequestsPerTimeFrame: 100, TimeFrame: time.Minute, Enabled: false},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		catalog:  newFakeCatalog(),
		orders:   &fakeOrders{details: map[uuid.UUID]*orders.OrderDetail{}},
		payLogs:  &fakePayLogs{},
		checkout: &fakeCheckout{},
		images:   &fakeImages{},
		cache:    &fakeCache{data: map[string][]byte{}},
	}

	env.app = &application{
		config: cfg,
		store: &storage.Container{
			Catalog: env.catalog,
			Orders:  env.orders,
			PayLogs: env.payLogs,
		},
		logger:        zaptest.NewLogger(t).Sugar(),
		checkout:      env.checkout,
		cache:         env.cache,
		images:        env.images,
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss, cfg.auth.token.iss, cfg.auth.token.exp),
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame),
	}
	env.handler = env.app.mount()
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	tok, err := e.app.authenticator.GenerateToken(testAdminEmail, auth.RoleAdmin)
	require.NoError(t, err)
	return tok
}

func jsonRequest(method, target string, body any) *http.Request {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func withBasic(req *http.Request, user, pass string) *http.Request {
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	return req
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// decodeData unwraps the {"data": ...} envelope.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst), rr.Body.String())
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	require.False(t, body.Success)
	require.Equal(t, rr.Code, body.Status)
	return body.Message
}

// ---------- catalog ----------

type fakeCatalog struct {
	mu              sync.Mutex
	categories      map[int64]*catalog.Category
	products        map[int64]*catalog.Product
	nextID          int64
	storefrontCalls int
	createErr       error
	lastFilter      catalog.ProductFilter
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: map[int64]*catalog.Category{},
		products:   map[int64]*catalog.Product{},
	}
}

func (f *fakeCatalog) addCategory(name, slug string) *catalog.Category {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &catalog.Category{ID: f.nextID, Name: name, Slug: slug}
	f.categories[c.ID] = c
	return c
}

func (f *fakeCatalog) addProduct(p catalog.Product) *catalog.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	p.ID = f.nextID
	f.products[p.ID] = &p
	return &p
}

func (f *fakeCatalog) ListCategories(context.Context) ([]*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*catalog.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCatalog) GetCategoryByID(_ context.Context, id int64) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCatalog) CreateCategory(_ context.Context, c *catalog.Category) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.categories {
		if existing.Slug == c.Slug {
			return nil, catalog.ErrDuplicateCategory
		}
	}
	f.nextID++
	c.ID = f.nextID
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeCatalog) UpdateCategory(_ context.Context, c *catalog.Category) (*catalog.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[c.ID]; !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	for id, existing := range f.categories {
		if id != c.ID && existing.Slug == c.Slug {
			return nil, catalog.ErrDuplicateCategory
		}
	}
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeCatalog) DeleteCategory(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	delete(f.categories, id)
	for pid, p := range f.products {
		if p.CategoryID == id {
			delete(f.products, pid)
		}
	}
	return nil
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id int64) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]*catalog.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter catalog.ProductFilter) ([]*catalog.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []*catalog.Product
	for _, p := range f.products {
		if filter.CategoryID != nil && p.CategoryID != *filter.CategoryID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, p *catalog.Product) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.categories[p.CategoryID]; !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.products[p.ID] = &cp
	return p, nil
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, p *catalog.Product) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[p.ID]; !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	f.products[p.ID] = &cp
	return p, nil
}

func (f *fakeCatalog) DeleteProduct(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeCatalog) Storefront(context.Context) ([]*catalog.CategoryWithProducts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storefrontCalls++

	ids := make([]int64, 0, len(f.categories))
	for id := range f.categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*catalog.CategoryWithProducts, 0, len(ids))
	for _, id := range ids {
		cwp := &catalog.CategoryWithProducts{Category: *f.categories[id], Products: []*catalog.Product{}}
		for _, p := range f.products {
			if p.CategoryID == id {
				cwp.Products = append(cwp.Products, p)
			}
		}
		sort.Slice(cwp.Products, func(i, j int) bool { return cwp.Products[i].ID < cwp.Products[j].ID })
		out = append(out, cwp)
	}
	return out, nil
}

func (f *fakeCatalog) DecrementStock(context.Context, int64) ([]catalog.StockShortfall, error) {
	return nil, nil
}

// ---------- orders ----------

type fakeOrders struct {
	mu         sync.Mutex
	details    map[uuid.UUID]*orders.OrderDetail
	list       []orders.Order
	lastFilter orders.ListFilter
}

func (f *fakeOrders) add(d *orders.OrderDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[d.Order.OrderID] = d
	f.list = append(f.list, d.Order)
}

func (f *fakeOrders) Create(context.Context, *orders.Order, []orders.Item) (*orders.Order, error) {
	return nil, nil
}

func (f *fakeOrders) SetReference(context.Context, int64, string) error { return nil }

func (f *fakeOrders) GetByOrderID(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o := d.Order
	return &o, nil
}

func (f *fakeOrders) GetDetail(_ context.Context, id uuid.UUID) (*orders.OrderDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return d, nil
}

func (f *fakeOrders) List(_ context.Context, filter orders.ListFilter) ([]orders.Order, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []orders.Order
	for _, o := range f.list {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (f *fakeOrders) Transition(context.Context, int64, orders.Status, ...orders.Status) (bool, error) {
	return false, nil
}

func (f *fakeOrders) MarkPaid(context.Context, int64) (bool, error) { return false, nil }

func (f *fakeOrders) ListStalePending(context.Context, time.Time, int) ([]orders.Order, error) {
	return nil, nil
}

type fakePayLogs struct {
	mu   sync.Mutex
	logs []paymentlogs.PaymentLog
}

func (f *fakePayLogs) Insert(_ context.Context, orderID int64, logType string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := json.Marshal(payload)
	f.logs = append(f.logs, paymentlogs.PaymentLog{
		ID: int64(len(f.logs) + 1), OrderID: orderID, LogType: logType, Payload: data, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakePayLogs) ListByOrder(_ context.Context, orderID int64) ([]paymentlogs.PaymentLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []paymentlogs.PaymentLog
	for _, l := range f.logs {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ---------- checkout ----------

type fakeCheckout struct {
	mu sync.Mutex

	createIn  checkout.CreateOrderInput
	createRes *checkout.CreateOrderResult
	createErr error

	verifyRef string
	verifyRes *checkout.VerifyResult
	verifyErr error

	webhooks   []payments.WebhookEvent
	webhookErr error

	statusTo  orders.Status
	statusRes *orders.Order
	statusErr error

	reconciles int
}

func (f *fakeCheckout) CreateOrder(_ context.Context, in checkout.CreateOrderInput) (*checkout.CreateOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createIn = in
	return f.createRes, f.createErr
}

func (f *fakeCheckout) VerifyPayment(_ context.Context, reference string) (*checkout.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyRef = reference
	return f.verifyRes, f.verifyErr
}

func (f *fakeCheckout) HandleWebhook(_ context.Context, ev payments.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, ev)
	return f.webhookErr
}

func (f *fakeCheckout) UpdateStatus(_ context.Context, _ uuid.UUID, to orders.Status) (*orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusTo = to
	return f.statusRes, f.statusErr
}

func (f *fakeCheckout) ReconcilePending(context.Context, time.Time) (checkout.ReconcileReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconciles++
	return checkout.ReconcileReport{}, nil
}

func (f *fakeCheckout) reconcileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reconciles
}

// ---------- images & cache ----------

type fakeImages struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	uploadErr error
}

func (f *fakeImages) Upload(_ context.Context, file io.Reader, publicID string) (string, error) {
	if _, err := io.Copy(io.Discard, file); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, publicID)
	return "https://res.cloudinary.com/demo/image/upload/v1/products/" + publicID + ".png", nil
}

func (f *fakeImages) Delete(_ context.Context, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, imageURL)
	return nil
}

func (f *fakeImages) deletedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fakeCache struct {
	mu            sync.Mutex
	data          map[string][]byte
	invalidations int
}

func (c *fakeCache) Get(_ context.Context, tier string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[tier]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, tier string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[tier] = b
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string][]byte{}
	c.invalidations++
	return nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/domain/catalog"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentlogs"
	"storefront/internal/infra/dbx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txPool is the part of *pgxpool.Pool the container needs.
type txPool interface {
	dbx.Querier
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type Container struct {
	pool    txPool // IMPORTANT: set the pool so WithSalesTx works
	codes   *orders.CodeGenerator
	Catalog catalog.Store
	Orders  orders.Store
	PayLogs paymentlogs.Store
}

func NewContainer(db *pgxpool.Pool, codes *orders.CodeGenerator) *Container {
	if db == nil {
		return newContainer(nil, codes)
	}
	return newContainer(db, codes)
}

func newContainer(pool txPool, codes *orders.CodeGenerator) *Container {
	return &Container{
		pool:    pool,
		codes:   codes,
		Catalog: catalog.NewRepository(pool),
		Orders:  orders.NewRepository(pool, codes),
		PayLogs: paymentlogs.NewRepository(pool),
	}
}

// Ping checks the database; a container without a pool has nothing to check.
func (c *Container) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	return c.pool.Ping(ctx)
}

// SalesTx is a temporary, tx-scoped set of repos for atomic units of work.
type SalesTx struct {
	Catalog catalog.Store
	Orders  orders.Store
	PayLogs paymentlogs.Store
}

// WithSalesTx runs a sales unit-of-work atomically.
func (c *Container) WithSalesTx(ctx context.Context, fn func(s *SalesTx) error) error {
	if c.pool == nil {
		return fmt.Errorf("storage container pool is nil (did you forget to set pool in NewContainer?)")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &SalesTx{
		Catalog: catalog.NewRepository(tx),
		Orders:  orders.NewRepository(tx, c.codes),
		PayLogs: paymentlogs.NewRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ------------------------------------
// checkout repository
// ------------------------------------

func (c *Container) ProductsByID(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	return c.Catalog.GetProductsByIDs(ctx, ids)
}

// PlaceOrder writes the order and its items in one transaction.
func (c *Container) PlaceOrder(ctx context.Context, o *orders.Order, items []orders.Item) (*orders.Order, error) {
	var created *orders.Order
	err := c.WithSalesTx(ctx, func(s *SalesTx) error {
		var err error
		created, err = s.Orders.Create(ctx, o, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *Container) OrderByID(ctx context.Context, orderID uuid.UUID) (*orders.Order, error) {
	return c.Orders.GetByOrderID(ctx, orderID)
}

func (c *Container) OrderDetail(ctx context.Context, orderID uuid.UUID) (*orders.OrderDetail, error) {
	return c.Orders.GetDetail(ctx, orderID)
}

func (c *Container) SetReference(ctx context.Context, id int64, reference string) error {
	return c.Orders.SetReference(ctx, id, reference)
}

func (c *Container) Transition(ctx context.Context, id int64, to orders.Status, from ...orders.Status) (bool, error) {
	return c.Orders.Transition(ctx, id, to, from...)
}

// SettlePaid marks the order paid and decrements stock in the same tx.
// When the order was already paid nothing else happens and applied is false.
func (c *Container) SettlePaid(ctx context.Context, id int64) (bool, []catalog.StockShortfall, error) {
	var (
		applied bool
		short   []catalog.StockShortfall
	)
	err := c.WithSalesTx(ctx, func(s *SalesTx) error {
		ok, err := s.Orders.MarkPaid(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true

		short, err = s.Catalog.DecrementStock(ctx, id)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return applied, short, nil
}

func (c *Container) StalePending(ctx context.Context, before time.Time, limit int) ([]orders.Order, error) {
	return c.Orders.ListStalePending(ctx, before, limit)
}

func (c *Container) LogPayment(ctx context.Context, orderID int64, logType string, payload any) error {
	return c.PayLogs.Insert(ctx, orderID, logType, payload)
}

package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrDuplicateCode     = errors.New("product with this code already exists")
	ErrDuplicateCategory = errors.New("category with this name already exists")
)

// PriceTier selects which price a shopper sees and pays.
type PriceTier string

const (
	TierRetail    PriceTier = "retail"
	TierWholesale PriceTier = "wholesale"
)

// ParseTier maps a query value to a tier; anything unknown is retail.
func ParseTier(raw string) PriceTier {
	if PriceTier(raw) == TierWholesale {
		return TierWholesale
	}
	return TierRetail
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID                  int64     `json:"id"`
	CategoryID          int64     `json:"category_id"`
	CategoryName        string    `json:"category_name,omitempty"`
	Name                string    `json:"name"`
	Code                *string   `json:"code,omitempty"`
	PriceCents          int64     `json:"price_cents"`
	WholesalePriceCents *int64    `json:"wholesale_price_cents,omitempty"`
	ImageURL            string    `json:"image_url"`
	VideoURL            *string   `json:"video_url,omitempty"`
	Description         *string   `json:"description,omitempty"`
	Stock               int       `json:"stock"`
	IsNew               bool      `json:"is_new"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UnitPrice returns the price charged for one unit under the given tier.
// Products without a wholesale price sell at retail to wholesale buyers too.
func (p *Product) UnitPrice(tier PriceTier) int64 {
	if tier == TierWholesale && p.WholesalePriceCents != nil {
		return *p.WholesalePriceCents
	}
	return p.PriceCents
}

type CategoryWithProducts struct {
	Category
	Products []*Product `json:"products"`
}

type ProductFilter struct {
	CategoryID *int64
	IsNew      *bool
	Query      string
	Limit      int
	Offset     int
}

// StockShortfall records a product whose stock was lower than the quantity
// being settled. Stock is clamped at zero in that case.
type StockShortfall struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Ordered   int    `json:"ordered"`
}

type Store interface {
	// Categories
	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*Category, error)
	CreateCategory(ctx context.Context, c *Category) (*Category, error)
	UpdateCategory(ctx context.Context, c *Category) (*Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	// Products
	GetProductByID(ctx context.Context, id int64) (*Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]*Product, int, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	// Storefront
	Storefront(ctx context.Context) ([]*CategoryWithProducts, error)

	// Stock
	DecrementStock(ctx context.Context, orderID int64) ([]StockShortfall, error)
}

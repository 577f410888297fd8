package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

const productColumns = `
	p.id, p.category_id, c.name, p.name, p.code, p.price_cents, p.wholesale_price_cents,
	p.image_url, p.video_url, p.description, p.stock, p.is_new, p.created_at, p.updated_at`

func scanProduct(row pgx.Row, extra ...any) (*Product, error) {
	var p Product
	dest := []any{
		&p.ID, &p.CategoryID, &p.CategoryName, &p.Name, &p.Code, &p.PriceCents, &p.WholesalePriceCents,
		&p.ImageURL, &p.VideoURL, &p.Description, &p.Stock, &p.IsNew, &p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ------------------------------------
// Categories
// ------------------------------------

func (r *Repository) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM categories
		ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *Repository) GetCategoryByID(ctx context.Context, id int64) (*Category, error) {
	var c Category
	err := r.db.QueryRow(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM categories
		WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c *Category) (*Category, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`, c.Name, c.Slug).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *Category) (*Category, error) {
	err := r.db.QueryRow(ctx, `
		UPDATE categories
		SET name = $2, slug = $3, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`, c.ID, c.Name, c.Slug).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCategory
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes the category and, through the FK, its products.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// ------------------------------------
// Products
// ------------------------------------

func (r *Repository) GetProductByID(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetProductsByIDs returns the products that exist; missing ids are simply
// absent from the map.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error) {
	out := make(map[int64]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// ListProducts is the admin listing: optional category / is_new filters and a
// case-insensitive search over name and code.
func (r *Repository) ListProducts(ctx context.Context, f ProductFilter) ([]*Product, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 30
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where := []string{"1=1"}
	args := []any{}
	arg := 1

	if f.CategoryID != nil {
		where = append(where, fmt.Sprintf("p.category_id = $%d", arg))
		args = append(args, *f.CategoryID)
		arg++
	}
	if f.IsNew != nil {
		where = append(where, fmt.Sprintf("p.is_new = $%d", arg))
		args = append(args, *f.IsNew)
		arg++
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, fmt.Sprintf("(p.name ILIKE $%d OR p.code ILIKE $%d)", arg, arg))
		args = append(args, "%"+q+"%")
		arg++
	}

	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) OVER() AS total_count
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE %s
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $%d OFFSET $%d`, productColumns, strings.Join(where, " AND "), arg, arg+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Product
		total int
	)
	for rows.Next() {
		var t int
		p, err := scanProduct(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}
	return out, total, nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (
			category_id, name, code, price_cents, wholesale_price_cents,
			image_url, video_url, description, stock, is_new
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		p.CategoryID, p.Name, p.Code, p.PriceCents, p.WholesalePriceCents,
		p.ImageURL, p.VideoURL, p.Description, p.Stock, p.IsNew,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (r *Repository) UpdateProduct(ctx context.Context, p *Product) (*Product, error) {
	err := r.db.QueryRow(ctx, `
		UPDATE products
		SET category_id = $2, name = $3, code = $4, price_cents = $5, wholesale_price_cents = $6,
		    image_url = $7, video_url = $8, description = $9, stock = $10, is_new = $11,
		    updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.CategoryID, p.Name, p.Code, p.PriceCents, p.WholesalePriceCents,
		p.ImageURL, p.VideoURL, p.Description, p.Stock, p.IsNew,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Storefront loads every category with its products in one round trip.
// Categories without products are kept so the shop can render empty tabs.
func (r *Repository) Storefront(ctx context.Context) ([]*CategoryWithProducts, error) {
	cats, err := r.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*CategoryWithProducts, 0, len(cats))
	byID := make(map[int64]*CategoryWithProducts, len(cats))
	for _, c := range cats {
		cwp := &CategoryWithProducts{Category: *c, Products: []*Product{}}
		out = append(out, cwp)
		byID[c.ID] = cwp
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		JOIN categories c ON c.id = p.category_id
		ORDER BY p.is_new DESC, p.name ASC, p.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("storefront products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if cwp, ok := byID[p.CategoryID]; ok {
			cwp.Products = append(cwp.Products, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// DecrementStock subtracts every line of the order from product stock.
// Stock never goes below zero; lines that would have are reported back.
// Assumes this is called INSIDE the transaction that marked the order paid.
func (r *Repository) DecrementStock(ctx context.Context, orderID int64) ([]StockShortfall, error) {
	rows, err := r.db.Query(ctx, `
		WITH lines AS (
			SELECT product_id, SUM(quantity)::int AS qty
			FROM order_items
			WHERE order_id = $1
			GROUP BY product_id
		)
		SELECT p.id, p.name, p.stock, l.qty
		FROM products p
		JOIN lines l ON l.product_id = p.id
		WHERE p.stock < l.qty
		FOR UPDATE OF p`, orderID)
	if err != nil {
		return nil, fmt.Errorf("check stock: %w", err)
	}

	var short []StockShortfall
	for rows.Next() {
		var s StockShortfall
		if err := rows.Scan(&s.ProductID, &s.Name, &s.Stock, &s.Ordered); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shortfall: %w", err)
		}
		short = append(short, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
		WITH lines AS (
			SELECT product_id, SUM(quantity)::int AS qty
			FROM order_items
			WHERE order_id = $1
			GROUP BY product_id
		)
		UPDATE products p
		SET stock = GREATEST(p.stock - l.qty, 0),
		    updated_at = now()
		FROM lines l
		WHERE p.id = l.product_id`, orderID); err != nil {
		return nil, fmt.Errorf("decrement stock: %w", err)
	}

	return short, nil
}

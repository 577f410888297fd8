package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain/catalog"
	"storefront/internal/metrics"
	"storefront/internal/money"

	"github.com/go-chi/chi/v5"
)

// StorefrontProduct is a product priced for the requested tier.
type StorefrontProduct struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Code        *string      `json:"code,omitempty"`
	Price       money.Amount `json:"price" swaggertype:"number" example:"25.50"`
	Image       string       `json:"image"`
	Video       *string      `json:"video,omitempty"`
	Description *string      `json:"description,omitempty"`
	Stock       int          `json:"stock"`
	InStock     bool         `json:"in_stock"`
	IsNew       bool         `json:"is_new"`
}

type StorefrontCategory struct {
	ID       int64               `json:"id"`
	Name     string              `json:"name"`
	Slug     string              `json:"slug"`
	Products []StorefrontProduct `json:"products"`
}

// StorefrontResponse is the payload inside { "data": ... }.
type StorefrontResponse struct {
	Tier              catalog.PriceTier    `json:"tier"`
	Currency          string               `json:"currency"`
	PaystackPublicKey string               `json:"paystack_public_key"`
	Categories        []StorefrontCategory `json:"categories"`
}

// ProductResponse mirrors what the cart needs for a single product.
type ProductResponse struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Price          money.Amount  `json:"price" swaggertype:"number" example:"25.50"`
	WholesalePrice *money.Amount `json:"wholesale_price" swaggertype:"number" example:"20.00"`
	Image          string        `json:"image"`
	Stock          int           `json:"stock"`
}

func buildStorefront(cats []*catalog.CategoryWithProducts, tier catalog.PriceTier) []StorefrontCategory {
	out := make([]StorefrontCategory, 0, len(cats))
	for _, c := range cats {
		sc := StorefrontCategory{
			ID:       c.ID,
			Name:     c.Name,
			Slug:     c.Slug,
			Products: make([]StorefrontProduct, 0, len(c.Products)),
		}
		for _, p := range c.Products {
			sc.Products = append(sc.Products, StorefrontProduct{
				ID:          p.ID,
				Name:        p.Name,
				Code:        p.Code,
				Price:       money.Amount(p.UnitPrice(tier)),
				Image:       p.ImageURL,
				Video:       p.VideoURL,
				Description: p.Description,
				Stock:       p.Stock,
				InStock:     p.Stock > 0,
				IsNew:       p.IsNew,
			})
		}
		out = append(out, sc)
	}
	return out
}

// storefrontHandler godoc
//
//	@Summary		Storefront
//	@Description	All categories with their products, priced for the retail or wholesale tier.
//	@Tags			Storefront
//	@Produce		json
//	@Param			tier	query		string	false	"Price tier"	Enums(retail,wholesale)
//	@Success		200		{object}	envelope{data=StorefrontResponse}
//	@Failure		500		{object}	error
//	@Router			/storefront [get]
func (app *application) storefrontHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	tier := catalog.ParseTier(r.URL.Query().Get("tier"))

	var categories []StorefrontCategory
	hit, err := app.cache.Get(ctx, string(tier), &categories)
	if err != nil {
		app.logger.Warnw("storefront cache read failed", "tier", tier, "error", err)
	}
	metrics.RecordCacheLookup(hit)

	if !hit {
		cats, err := app.store.Catalog.Storefront(ctx)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		categories = buildStorefront(cats, tier)

		if err := app.cache.Set(ctx, string(tier), categories); err != nil {
			app.logger.Warnw("storefront cache write failed", "tier", tier, "error", err)
		}
	}

	app.jsonResponse(w, http.StatusOK, StorefrontResponse{
		Tier:              tier,
		Currency:          app.config.paystack.currency,
		PaystackPublicKey: app.config.paystack.publicKey,
		Categories:        categories,
	})
}

// listCategoriesHandler godoc
//
//	@Summary		List categories
//	@Tags			Storefront
//	@Produce		json
//	@Success		200	{object}	envelope{data=[]catalog.Category}
//	@Failure		500	{object}	error
//	@Router			/categories [get]
func (app *application) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cats, err := app.store.Catalog.ListCategories(ctx)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, cats)
}

// getProductHandler godoc
//
//	@Summary		Get product
//	@Description	Single product details for the cart.
//	@Tags			Storefront
//	@Produce		json
//	@Param			productID	path		int	true	"Product ID"
//	@Success		200			{object}	envelope{data=ProductResponse}
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Router			/products/{productID} [get]
func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p, err := app.store.Catalog.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	resp := ProductResponse{
		ID:    p.ID,
		Name:  p.Name,
		Price: money.Amount(p.PriceCents),
		Image: p.ImageURL,
		Stock: p.Stock,
	}
	if p.WholesalePriceCents != nil {
		wp := money.Amount(*p.WholesalePriceCents)
		resp.WholesalePrice = &wp
	}

	app.jsonResponse(w, http.StatusOK, resp)
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// invalidateStorefront drops cached pages after a catalog change.
func (app *application) invalidateStorefront(ctx context.Context) {
	if err := app.cache.Invalidate(ctx); err != nil {
		app.logger.Warnw("storefront cache invalidation failed", "error", err)
	}
}

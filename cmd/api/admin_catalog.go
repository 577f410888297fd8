package main

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/domain/catalog"
	"storefront/internal/money"
	"storefront/internal/params"
)

var (
	slugCleanRE = regexp.MustCompile(`[^a-z0-9]+`)
	slugTrimRE  = regexp.MustCompile(`^-|-$`)
	slugValidRE = regexp.MustCompile(`^[a-z0-9-]{2,60}$`)
)

var errImageUpload = errors.New("image upload failed")

func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = slugCleanRE.ReplaceAllString(slug, "-")
	return slugTrimRE.ReplaceAllString(slug, "")
}

func isValidSlug(slug string) bool {
	return slugValidRE.MatchString(slug)
}

// ---------- Admin: Categories ----------

type CategoryPayload struct {
	Name string `json:"name" validate:"required,max=50" example:"Skin Care"`
	Slug string `json:"slug" validate:"omitempty,max=60" example:"skin-care"`
}

type UpdateCategoryPayload struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=50"`
	Slug *string `json:"slug" validate:"omitempty,max=60"`
}

// adminListCategoriesHandler godoc
//
//	@Summary		List categories (admin)
//	@Tags			Admin-Catalog
//	@Produce		json
//	@Success		200	{object}	envelope{data=[]catalog.Category}
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Router			/admin/categories [get]
//	@Security		ApiKeyAuth
func (app *application) adminListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	app.listCategoriesHandler(w, r)
}

// createCategoryHandler godoc
//
//	@Summary		Create category
//	@Tags			Admin-Catalog
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CategoryPayload	true	"Category"
//	@Success		201		{object}	envelope{data=catalog.Category}
//	@Failure		400		{object}	error
//	@Failure		409		{object}	error
//	@Failure		500		{object}	error
//	@Router			/admin/categories [post]
//	@Security		ApiKeyAuth
func (app *application) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var payload CategoryPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	slug := strings.TrimSpace(payload.Slug)
	if slug == "" {
		slug = generateSlug(payload.Name)
	}
	if !isValidSlug(slug) {
		app.badRequestResponse(w, r, fmt.Errorf("invalid slug format"))
		return
	}

	created, err := app.store.Catalog.CreateCategory(ctx, &catalog.Category{Name: payload.Name, Slug: slug})
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateCategory) {
			app.conflictResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, fmt.Errorf("create category: %w", err))
		return
	}

	app.invalidateStorefront(ctx)
	app.logger.Infow("category created", "id", created.ID, "slug", created.Slug, "by", getAdminFromContext(r))

	w.Header().Set("Location", fmt.Sprintf("/v1/admin/categories/%d", created.ID))
	app.jsonResponse(w, http.StatusCreated, created)
}

// updateCategoryHandler godoc
//
//	@Summary		Update category
//	@Tags			Admin-Catalog
//	@Accept			json
//	@Produce		json
//	@Param			categoryID	path		int						true	"Category ID"
//	@Param			payload		body		UpdateCategoryPayload	true	"Fields to change"
//	@Success		200			{object}	envelope{data=catalog.Category}
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		409			{object}	error
//	@Failure		500			{object}	error
//	@Router			/admin/categories/{categoryID} [patch]
//	@Security		ApiKeyAuth
func (app *application) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateCategoryPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	existing, err := app.store.Catalog.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrCategoryNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		if name == "" {
			app.badRequestResponse(w, r, fmt.Errorf("name cannot be empty"))
			return
		}
		existing.Name = name
		if payload.Slug == nil {
			existing.Slug = generateSlug(name)
		}
	}
	if payload.Slug != nil {
		existing.Slug = strings.TrimSpace(*payload.Slug)
	}
	if !isValidSlug(existing.Slug) {
		app.badRequestResponse(w, r, fmt.Errorf("invalid slug format"))
		return
	}

	updated, err := app.store.Catalog.UpdateCategory(ctx, existing)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrCategoryNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, catalog.ErrDuplicateCategory):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.invalidateStorefront(ctx)
	app.jsonResponse(w, http.StatusOK, updated)
}

// deleteCategoryHandler godoc
//
//	@Summary		Delete category
//	@Description	Deleting a category deletes its products.
//	@Tags			Admin-Catalog
//	@Param			categoryID	path	int	true	"Category ID"
//	@Success		204
//	@Failure		400	{object}	error
//	@Failure		404	{object}	error
//	@Failure		500	{object}	error
//	@Router			/admin/categories/{categoryID} [delete]
//	@Security		ApiKeyAuth
func (app *application) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Catalog.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrCategoryNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.invalidateStorefront(ctx)
	app.logger.Infow("category deleted", "id", id, "by", getAdminFromContext(r))
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Admin: Products ----------

// AdminProductListResponse is the payload inside { "data": ... }.
type AdminProductListResponse struct {
	Products   []*catalog.Product `json:"products"`
	Pagination params.Pagination  `json:"pagination"`
}

// adminListProductsHandler godoc
//
//	@Summary		List products (admin)
//	@Tags			Admin-Catalog
//	@Produce		json
//	@Param			category_id	query		int		false	"Filter by category"
//	@Param			is_new		query		bool	false	"Only new arrivals"
//	@Param			q			query		string	false	"Search name or code"
//	@Param			page		query		int		false	"Page number (default: 1)"
//	@Param			limit		query		int		false	"Items per page (default: 15, max: 30)"
//	@Success		200			{object}	envelope{data=AdminProductListResponse}
//	@Failure		400			{object}	error
//	@Failure		500			{object}	error
//	@Router			/admin/products [get]
//	@Security		ApiKeyAuth
func (app *application) adminListProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	q := r.URL.Query()
	p := params.ParsePagination(q)

	categoryID, err := params.OptionalInt64(q, "category_id")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	isNew, err := params.OptionalBool(q, "is_new")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, total, err := app.store.Catalog.ListProducts(ctx, catalog.ProductFilter{
		CategoryID: categoryID,
		IsNew:      isNew,
		Query:      strings.TrimSpace(q.Get("q")),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, AdminProductListResponse{Products: list, Pagination: p})
}

// adminGetProductHandler godoc
//
//	@Summary		Get product (admin)
//	@Tags			Admin-Catalog
//	@Produce		json
//	@Param			productID	path		int	true	"Product ID"
//	@Success		200			{object}	envelope{data=catalog.Product}
//	@Failure		404			{object}	error
//	@Router			/admin/products/{productID} [get]
//	@Security		ApiKeyAuth
func (app *application) adminGetProductHandler(w http.ResponseWriter, r *http.Request) {
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

	app.jsonResponse(w, http.StatusOK, p)
}

const maxProductFormBytes = 5 * 1024 * 1024 // 5MB

func parseProductMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormBytes)
	if err := r.ParseMultipartForm(maxProductFormBytes); err != nil {
		return fmt.Errorf("failed to parse form: %w", err)
	}
	return nil
}

// applyProductForm copies the submitted form fields onto p. On create the
// name, category and price are required; on update absent fields are kept.
func applyProductForm(form *multipart.Form, p *catalog.Product, create bool) error {
	value := func(key string) (string, bool) {
		vs, ok := form.Value[key]
		if !ok || len(vs) == 0 {
			return "", false
		}
		return strings.TrimSpace(vs[0]), true
	}
	optional := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	if v, ok := value("category_id"); ok || create {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("category_id is required and must be a positive integer")
		}
		p.CategoryID = id
	}

	if v, ok := value("name"); ok || create {
		if v == "" {
			return fmt.Errorf("name is required")
		}
		if utf8.RuneCountInString(v) > 50 {
			return fmt.Errorf("name must be at most 50 characters")
		}
		p.Name = v
	}

	if v, ok := value("code"); ok {
		if utf8.RuneCountInString(v) > 20 {
			return fmt.Errorf("code must be at most 20 characters")
		}
		p.Code = optional(v)
	}

	if v, ok := value("price"); ok || create {
		cents, err := money.ParseMinor(v)
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		if cents <= 0 {
			return fmt.Errorf("price must be greater than zero")
		}
		p.PriceCents = cents
	}

	if v, ok := value("wholesale_price"); ok {
		if v == "" {
			p.WholesalePriceCents = nil
		} else {
			cents, err := money.ParseMinor(v)
			if err != nil {
				return fmt.Errorf("wholesale_price: %w", err)
			}
			p.WholesalePriceCents = &cents
		}
	}

	if v, ok := value("description"); ok {
		p.Description = optional(v)
	}

	if v, ok := value("video_url"); ok {
		if v != "" {
			if err := Validate.Var(v, "url"); err != nil {
				return fmt.Errorf("video_url must be a valid URL")
			}
		}
		p.VideoURL = optional(v)
	}

	if v, ok := value("stock"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("stock must be a non-negative integer")
		}
		p.Stock = n
	}

	if v, ok := value("is_new"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("is_new must be true or false")
		}
		p.IsNew = b
	}

	return nil
}

// uploadProductImage validates and uploads the "image" part, if any.
// It returns "" when the form has no image.
func (app *application) uploadProductImage(ctx context.Context, r *http.Request, name string) (string, error) {
	file, _, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", fmt.Errorf("read image: %w", err)
	}
	defer file.Close()

	// sniff actual MIME from bytes (don't trust Content-Type header)
	mime, err := sniffMIME(file)
	if err != nil {
		return "", fmt.Errorf("sniff mime: %w", err)
	}
	if !allowedImageTypes[mime] {
		return "", fmt.Errorf("invalid image type: %s", mime)
	}

	publicID := fmt.Sprintf("%s_%d", generateSlug(name), time.Now().UnixNano())
	url, err := app.images.Upload(ctx, file, publicID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errImageUpload, err)
	}
	return url, nil
}

// imageErrorResponse blames the client for a bad file and the server for a
// failed upload.
func (app *application) imageErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errImageUpload) {
		app.internalServerError(w, r, err)
		return
	}
	app.badRequestResponse(w, r, err)
}

func (app *application) productWriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrCategoryNotFound):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, catalog.ErrDuplicateCode):
		app.conflictResponse(w, r, err)
	case errors.Is(err, catalog.ErrProductNotFound):
		app.notFoundResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// createProductHandler godoc
//
//	@Summary		Create product
//	@Description	Multipart form. The image is stored on Cloudinary.
//	@Tags			Admin-Catalog
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			category_id		formData	int		true	"Category ID"
//	@Param			name			formData	string	true	"Name (max 50)"
//	@Param			code			formData	string	false	"Product code (max 20, unique)"
//	@Param			price			formData	string	true	"Retail price, e.g. 25.50"
//	@Param			wholesale_price	formData	string	false	"Wholesale price"
//	@Param			description		formData	string	false	"Description"
//	@Param			video_url		formData	string	false	"Video URL"
//	@Param			stock			formData	int		false	"Units in stock"
//	@Param			is_new			formData	bool	false	"New arrival"
//	@Param			image			formData	file	true	"Image (jpeg, png, webp)"
//	@Success		201				{object}	envelope{data=catalog.Product}
//	@Failure		400				{object}	error
//	@Failure		409				{object}	error
//	@Failure		500				{object}	error
//	@Router			/admin/products [post]
//	@Security		ApiKeyAuth
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := parseProductMultipart(w, r); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	p := &catalog.Product{}
	if err := applyProductForm(r.MultipartForm, p, true); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	imageURL, err := app.uploadProductImage(ctx, r, p.Name)
	if err != nil {
		app.imageErrorResponse(w, r, err)
		return
	}
	if imageURL == "" {
		app.badRequestResponse(w, r, fmt.Errorf("image is required"))
		return
	}
	p.ImageURL = imageURL

	created, err := app.store.Catalog.CreateProduct(ctx, p)
	if err != nil {
		app.deleteImageAsync(imageURL)
		app.productWriteError(w, r, err)
		return
	}

	app.invalidateStorefront(ctx)
	app.logger.Infow("product created", "id", created.ID, "name", created.Name, "by", getAdminFromContext(r))

	w.Header().Set("Location", fmt.Sprintf("/v1/admin/products/%d", created.ID))
	app.jsonResponse(w, http.StatusCreated, created)
}

// updateProductHandler godoc
//
//	@Summary		Update product
//	@Description	Multipart form; only submitted fields change. A new image replaces the old one.
//	@Tags			Admin-Catalog
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			productID		path		int		true	"Product ID"
//	@Param			category_id		formData	int		false	"Category ID"
//	@Param			name			formData	string	false	"Name"
//	@Param			code			formData	string	false	"Product code, empty clears it"
//	@Param			price			formData	string	false	"Retail price"
//	@Param			wholesale_price	formData	string	false	"Wholesale price, empty clears it"
//	@Param			description		formData	string	false	"Description"
//	@Param			video_url		formData	string	false	"Video URL"
//	@Param			stock			formData	int		false	"Units in stock"
//	@Param			is_new			formData	bool	false	"New arrival"
//	@Param			image			formData	file	false	"Replacement image"
//	@Success		200				{object}	envelope{data=catalog.Product}
//	@Failure		400				{object}	error
//	@Failure		404				{object}	error
//	@Failure		409				{object}	error
//	@Failure		500				{object}	error
//	@Router			/admin/products/{productID} [patch]
//	@Security		ApiKeyAuth
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	id, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := parseProductMultipart(w, r); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	existing, err := app.store.Catalog.GetProductByID(ctx, id)
	if err != nil {
		app.productWriteError(w, r, err)
		return
	}
	oldImage := existing.ImageURL

	if err := applyProductForm(r.MultipartForm, existing, false); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	newImage, err := app.uploadProductImage(ctx, r, existing.Name)
	if err != nil {
		app.imageErrorResponse(w, r, err)
		return
	}
	if newImage != "" {
		existing.ImageURL = newImage
	}

	updated, err := app.store.Catalog.UpdateProduct(ctx, existing)
	if err != nil {
		app.deleteImageAsync(newImage)
		app.productWriteError(w, r, err)
		return
	}
	if newImage != "" && oldImage != newImage {
		app.deleteImageAsync(oldImage)
	}

	app.invalidateStorefront(ctx)
	app.jsonResponse(w, http.StatusOK, updated)
}

// deleteProductHandler godoc
//
//	@Summary		Delete product
//	@Tags			Admin-Catalog
//	@Param			productID	path	int	true	"Product ID"
//	@Success		204
//	@Failure		400	{object}	error
//	@Failure		404	{object}	error
//	@Failure		500	{object}	error
//	@Router			/admin/products/{productID} [delete]
//	@Security		ApiKeyAuth
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id, err := parseIDParam(r, "productID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	existing, err := app.store.Catalog.GetProductByID(ctx, id)
	if err != nil {
		app.productWriteError(w, r, err)
		return
	}

	if err := app.store.Catalog.DeleteProduct(ctx, id); err != nil {
		app.productWriteError(w, r, err)
		return
	}
	app.deleteImageAsync(existing.ImageURL)

	app.invalidateStorefront(ctx)
	app.logger.Infow("product deleted", "id", id, "by", getAdminFromContext(r))
	w.WriteHeader(http.StatusNoContent)
}

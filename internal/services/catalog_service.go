package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/platform/textutil"
	"github.com/elite-furniture/api/internal/repositories"
)

const productIDPrefix = "prd_"

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrProductNotFound indicates the requested product does not exist.
var ErrProductNotFound = errors.New("catalog service: product not found")

// ErrProductConflict indicates a conflicting catalog write, such as a duplicate slug.
var ErrProductConflict = errors.New("catalog service: conflict")

// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

// CatalogServiceDeps wires the repositories backing the catalog surfaces.
type CatalogServiceDeps struct {
	Products        repositories.ProductRepository
	Categories      repositories.CategoryRepository
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	now        func() time.Time
	newID      func() string
	currency   string
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "NGN"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		currency:   currency,
		logger:     logger,
	}, nil
}

// ListProducts returns a catalog page. Public callers only see published items.
func (s *catalogService) ListProducts(ctx context.Context, query CatalogQuery) (domain.CursorPage[domain.Product], error) {
	filter := repositories.ProductListFilter{
		Category:      strings.TrimSpace(query.Category),
		FeaturedOnly:  query.FeaturedOnly,
		PublishedOnly: !query.IncludeUnpublished,
		Sort:          query.Sort,
		Order:         query.Order,
		Pagination:    query.Pagination,
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		filter.SearchKey = textutil.SearchKey(search)
	}

	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, s.translateError(err)
	}
	return page, nil
}

// GetProduct resolves a product by ID first, then by slug.
func (s *catalogService) GetProduct(ctx context.Context, idOrSlug string) (domain.Product, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.FindByID(ctx, idOrSlug)
	if err == nil {
		return product, nil
	}
	if !repositories.IsNotFound(err) {
		return domain.Product{}, s.translateError(err)
	}

	product, err = s.products.FindBySlug(ctx, idOrSlug)
	if err != nil {
		return domain.Product{}, s.translateError(err)
	}
	return product, nil
}

// ListCategories returns every storefront category.
func (s *catalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, s.translateError(err)
	}
	return categories, nil
}

// CreateProduct validates and persists a new catalog entry.
func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput) (domain.Product, error) {
	product, err := s.buildProduct(input)
	if err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product.ID = productIDPrefix + s.newID()
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Insert(ctx, product); err != nil {
		return domain.Product{}, s.translateError(err)
	}
	s.logger(ctx, "catalog.product.created", map[string]any{
		"productId": product.ID,
		"slug":      product.Slug,
	})
	return product, nil
}

// UpdateProduct replaces the writable fields of an existing product.
func (s *catalogService) UpdateProduct(ctx context.Context, productID string, input ProductInput) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}

	existing, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.translateError(err)
	}

	product, err := s.buildProduct(input)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = existing.ID
	product.Rating = existing.Rating
	product.ReviewCount = existing.ReviewCount
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, s.translateError(err)
	}
	return product, nil
}

// DeleteProduct removes the product from the catalog.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ErrCatalogInvalidInput
	}
	if err := s.products.Delete(ctx, productID); err != nil {
		return s.translateError(err)
	}
	s.logger(ctx, "catalog.product.deleted", map[string]any{"productId": productID})
	return nil
}

// SetStock updates the absolute stock level.
func (s *catalogService) SetStock(ctx context.Context, productID string, stock int) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" || stock < 0 {
		return domain.Product{}, ErrCatalogInvalidInput
	}
	if err := s.products.UpdateStock(ctx, productID, stock); err != nil {
		return domain.Product{}, s.translateError(err)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.translateError(err)
	}
	return product, nil
}

// SetFeatured toggles the storefront featured flag.
func (s *catalogService) SetFeatured(ctx context.Context, productID string, featured bool) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, ErrCatalogInvalidInput
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, s.translateError(err)
	}
	product.IsFeatured = featured
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, s.translateError(err)
	}
	return product, nil
}

func (s *catalogService) buildProduct(input ProductInput) (domain.Product, error) {
	name := strings.TrimSpace(input.Name)
	category := strings.TrimSpace(input.Category)
	if name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if category == "" {
		return domain.Product{}, fmt.Errorf("%w: category is required", ErrCatalogInvalidInput)
	}
	if input.Price <= 0 {
		return domain.Product{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}
	if input.Stock < 0 {
		return domain.Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}

	return domain.Product{
		SKU:         strings.TrimSpace(input.SKU),
		Slug:        textutil.Slug(name),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Category:    category,
		Price:       input.Price,
		Currency:    currency,
		Images:      input.Images,
		Sizes:       input.Sizes,
		Colors:      input.Colors,
		Tags:        input.Tags,
		Features:    input.Features,
		Stock:       input.Stock,
		IsFeatured:  input.IsFeatured,
		IsPublished: input.IsPublished,
		SearchKeys:  buildSearchKeys(name, category, input.Tags),
	}, nil
}

// buildSearchKeys tokenises the searchable fields so listings can match a
// normalised term with an array-contains filter.
func buildSearchKeys(name, category string, tags []string) []string {
	seen := make(map[string]struct{})
	var keys []string

	add := func(value string) {
		for _, token := range strings.Fields(textutil.SearchKey(value)) {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			keys = append(keys, token)
		}
	}

	add(name)
	add(category)
	for _, tag := range tags {
		add(tag)
	}
	return keys
}

func (s *catalogService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrProductNotFound, err)
	case repositories.IsConflict(err):
		return fmt.Errorf("%w: %v", ErrProductConflict, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return err
}

package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	productsCollection = "products"

	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

type productDocument struct {
	SKU         string    `firestore:"sku"`
	Slug        string    `firestore:"slug"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Category    string    `firestore:"category"`
	Price       int64     `firestore:"price"`
	Currency    string    `firestore:"currency"`
	Images      []string  `firestore:"images,omitempty"`
	Sizes       []string  `firestore:"sizes,omitempty"`
	Colors      []string  `firestore:"colors,omitempty"`
	Tags        []string  `firestore:"tags,omitempty"`
	Features    []string  `firestore:"features,omitempty"`
	Stock       int       `firestore:"stock"`
	Rating      float64   `firestore:"rating"`
	ReviewCount int       `firestore:"reviewCount"`
	IsFeatured  bool      `firestore:"isFeatured"`
	IsPublished bool      `firestore:"isPublished"`
	SearchKeys  []string  `firestore:"searchKeys,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProductRepository persists catalog products within Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection, nil, nil)
	return &ProductRepository{base: base}, nil
}

// Insert creates the product document and fails when the ID already exists.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	_, err := r.base.Create(ctx, product.ID, encodeProductDocument(product))
	return err
}

// Update replaces the product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	_, err := r.base.Set(ctx, product.ID, encodeProductDocument(product))
	return err
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	return r.base.Delete(ctx, productID)
}

// FindByID fetches a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProductDocument(doc.ID, doc.Data), nil
}

// FindBySlug fetches a single product by its storefront slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return domain.Product{}, errors.New("product repository: slug is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", slug).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.NewNotFoundError("products.findbyslug", slug)
	}
	return decodeProductDocument(docs[0].ID, docs[0].Data), nil
}

// List returns a catalog page constrained by the filter.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}
	fetchLimit := limit + 1

	sortField, desc := productSortClause(filter.Sort, filter.Order)

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		value, docID, err := decodeProductListToken(token, sortField)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: invalid page token: %w", err)
		}
		startAfter = []any{value, docID}
	}

	direction := firestore.Asc
	if desc {
		direction = firestore.Desc
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.PublishedOnly {
			q = q.Where("isPublished", "==", true)
		}
		if filter.FeaturedOnly {
			q = q.Where("isFeatured", "==", true)
		}
		if category := strings.TrimSpace(filter.Category); category != "" {
			q = q.Where("category", "==", category)
		}
		if key := strings.TrimSpace(filter.SearchKey); key != "" {
			q = q.Where("searchKeys", "array-contains", key)
		}
		q = q.OrderBy(sortField, direction).OrderBy(firestore.DocumentID, direction)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-2]
		nextToken = encodeProductListToken(sortField, last.Data, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeProductDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Product]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStock sets the absolute stock level.
func (r *ProductRepository) UpdateStock(ctx context.Context, productID string, stock int) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	if stock < 0 {
		return errors.New("product repository: stock must not be negative")
	}
	_, err := r.base.Update(ctx, productID, []firestore.Update{
		{Path: "stock", Value: stock},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

// UpdateRating stores the recomputed review aggregate.
func (r *ProductRepository) UpdateRating(ctx context.Context, productID string, rating float64, reviewCount int) error {
	if r == nil || r.base == nil {
		return errors.New("product repository not initialised")
	}
	_, err := r.base.Update(ctx, productID, []firestore.Update{
		{Path: "rating", Value: rating},
		{Path: "reviewCount", Value: reviewCount},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}

func productSortClause(sort domain.ProductSort, order domain.SortOrder) (string, bool) {
	field := "createdAt"
	switch sort {
	case domain.ProductSortPrice:
		field = "price"
	case domain.ProductSortRating:
		field = "rating"
	}

	desc := order == domain.SortDesc
	if order == "" {
		// Newest-first is the storefront default.
		desc = field == "createdAt" || field == "rating"
	}
	return field, desc
}

func encodeProductDocument(product domain.Product) productDocument {
	return productDocument{
		SKU:         strings.TrimSpace(product.SKU),
		Slug:        strings.TrimSpace(product.Slug),
		Name:        strings.TrimSpace(product.Name),
		Description: product.Description,
		Category:    strings.TrimSpace(product.Category),
		Price:       product.Price,
		Currency:    strings.ToUpper(strings.TrimSpace(product.Currency)),
		Images:      product.Images,
		Sizes:       product.Sizes,
		Colors:      product.Colors,
		Tags:        product.Tags,
		Features:    product.Features,
		Stock:       product.Stock,
		Rating:      product.Rating,
		ReviewCount: product.ReviewCount,
		IsFeatured:  product.IsFeatured,
		IsPublished: product.IsPublished,
		SearchKeys:  product.SearchKeys,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
}

func decodeProductDocument(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:          id,
		SKU:         doc.SKU,
		Slug:        doc.Slug,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       doc.Price,
		Currency:    doc.Currency,
		Images:      doc.Images,
		Sizes:       doc.Sizes,
		Colors:      doc.Colors,
		Tags:        doc.Tags,
		Features:    doc.Features,
		Stock:       doc.Stock,
		Rating:      doc.Rating,
		ReviewCount: doc.ReviewCount,
		IsFeatured:  doc.IsFeatured,
		IsPublished: doc.IsPublished,
		SearchKeys:  doc.SearchKeys,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func encodeProductListToken(sortField string, doc productDocument, docID string) string {
	var value string
	switch sortField {
	case "price":
		value = strconv.FormatInt(doc.Price, 10)
	case "rating":
		value = strconv.FormatFloat(doc.Rating, 'f', -1, 64)
	default:
		value = doc.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	payload := fmt.Sprintf("%s|%s|%s", sortField, value, docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeProductListToken(token, sortField string) (any, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, "", err
	}
	parts := strings.SplitN(string(data), "|", 3)
	if len(parts) != 3 {
		return nil, "", errors.New("invalid token structure")
	}
	if parts[0] != sortField {
		return nil, "", fmt.Errorf("token sort %q does not match requested sort %q", parts[0], sortField)
	}

	switch sortField {
	case "price":
		value, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, "", err
		}
		return value, parts[2], nil
	case "rating":
		value, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, "", err
		}
		return value, parts[2], nil
	default:
		ts, err := time.Parse(time.RFC3339Nano, parts[1])
		if err != nil {
			return nil, "", err
		}
		return ts, parts[2], nil
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elite-furniture/api/internal/domain"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body is too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

type productPayload struct {
	ID          string   `json:"id"`
	SKU         string   `json:"sku,omitempty"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
	Images      []string `json:"images,omitempty"`
	Sizes       []string `json:"sizes,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Features    []string `json:"features,omitempty"`
	Stock       int      `json:"stock"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	IsFeatured  bool     `json:"isFeatured"`
	IsPublished bool     `json:"isPublished"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	UpdatedAt   string   `json:"updatedAt,omitempty"`
}

func buildProductPayload(product domain.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		SKU:         product.SKU,
		Slug:        product.Slug,
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		Price:       product.Price,
		Currency:    product.Currency,
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
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
}

func buildProductPayloads(products []domain.Product) []productPayload {
	payloads := make([]productPayload, 0, len(products))
	for _, product := range products {
		payloads = append(payloads, buildProductPayload(product))
	}
	return payloads
}

type totalsPayload struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

func buildTotalsPayload(totals domain.Totals) totalsPayload {
	return totalsPayload{
		Subtotal: totals.Subtotal,
		Shipping: totals.Shipping,
		Tax:      totals.Tax,
		Total:    totals.Total,
	}
}

type orderLinePayload struct {
	ID            string `json:"id"`
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	ProductImage  string `json:"productImage,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unitPrice"`
	TotalPrice    int64  `json:"totalPrice"`
	SelectedSize  string `json:"selectedSize,omitempty"`
	SelectedColor string `json:"selectedColor,omitempty"`
}

type orderPayload struct {
	ID               string             `json:"id"`
	OrderNumber      string             `json:"orderNumber"`
	UserID           string             `json:"userId,omitempty"`
	Status           string             `json:"status"`
	PaymentStatus    string             `json:"paymentStatus"`
	PaymentMethod    string             `json:"paymentMethod"`
	PaymentReference string             `json:"paymentReference,omitempty"`
	Currency         string             `json:"currency"`
	Items            []orderLinePayload `json:"items"`
	Totals           totalsPayload      `json:"totals"`
	CustomerName     string             `json:"customerName"`
	CustomerEmail    string             `json:"customerEmail"`
	ShippingAddress  string             `json:"shippingAddress"`
	Phone            string             `json:"phone,omitempty"`
	Notes            string             `json:"notes,omitempty"`
	CancelReason     string             `json:"cancelReason,omitempty"`
	CreatedAt        string             `json:"createdAt,omitempty"`
	UpdatedAt        string             `json:"updatedAt,omitempty"`
	DeliveredAt      string             `json:"deliveredAt,omitempty"`
	CancelledAt      string             `json:"cancelledAt,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderLinePayload, 0, len(order.Items))
	for _, line := range order.Items {
		items = append(items, orderLinePayload{
			ID:            line.ID,
			ProductID:     line.ProductID,
			ProductName:   line.ProductName,
			ProductImage:  line.ProductImage,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			TotalPrice:    line.TotalPrice,
			SelectedSize:  line.SelectedSize,
			SelectedColor: line.SelectedColor,
		})
	}
	return orderPayload{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		UserID:           order.UserID,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		PaymentMethod:    string(order.PaymentMethod),
		PaymentReference: order.PaymentReference,
		Currency:         order.Currency,
		Items:            items,
		Totals:           buildTotalsPayload(order.Totals),
		CustomerName:     order.CustomerName,
		CustomerEmail:    order.CustomerEmail,
		ShippingAddress:  order.ShippingAddress,
		Phone:            order.Phone,
		Notes:            order.Notes,
		CancelReason:     order.CancelReason,
		CreatedAt:        formatTime(order.CreatedAt),
		UpdatedAt:        formatTime(order.UpdatedAt),
		DeliveredAt:      formatTimePtr(order.DeliveredAt),
		CancelledAt:      formatTimePtr(order.CancelledAt),
	}
}

type reviewPayload struct {
	ID               string `json:"id"`
	ProductID        string `json:"productId"`
	UserID           string `json:"userId,omitempty"`
	Rating           int    `json:"rating"`
	Title            string `json:"title,omitempty"`
	Comment          string `json:"comment,omitempty"`
	Status           string `json:"status"`
	VerifiedPurchase bool   `json:"verifiedPurchase"`
	CreatedAt        string `json:"createdAt,omitempty"`
}

func buildReviewPayload(review domain.Review) reviewPayload {
	return reviewPayload{
		ID:               review.ID,
		ProductID:        review.ProductID,
		UserID:           review.UserID,
		Rating:           review.Rating,
		Title:            review.Title,
		Comment:          review.Comment,
		Status:           string(review.Status),
		VerifiedPurchase: review.VerifiedPurchase,
		CreatedAt:        formatTime(review.CreatedAt),
	}
}

func buildReviewPayloads(reviews []domain.Review) []reviewPayload {
	payloads := make([]reviewPayload, 0, len(reviews))
	for _, review := range reviews {
		payloads = append(payloads, buildReviewPayload(review))
	}
	return payloads
}

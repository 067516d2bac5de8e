package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	ordersCollection     = "orders"
	orderItemsCollection = "items"

	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

type orderDocument struct {
	OrderNumber      string     `firestore:"orderNumber"`
	UserID           string     `firestore:"userId"`
	Status           string     `firestore:"status"`
	Currency         string     `firestore:"currency"`
	Subtotal         int64      `firestore:"subtotal"`
	Shipping         int64      `firestore:"shipping"`
	Tax              int64      `firestore:"tax"`
	Total            int64      `firestore:"total"`
	CustomerName     string     `firestore:"customerName"`
	CustomerEmail    string     `firestore:"customerEmail"`
	ShippingAddress  string     `firestore:"shippingAddress"`
	Phone            string     `firestore:"phone,omitempty"`
	PaymentMethod    string     `firestore:"paymentMethod"`
	PaymentReference string     `firestore:"paymentReference,omitempty"`
	PaymentStatus    string     `firestore:"paymentStatus"`
	Notes            string     `firestore:"notes,omitempty"`
	CreatedAt        time.Time  `firestore:"createdAt"`
	UpdatedAt        time.Time  `firestore:"updatedAt"`
	DeliveredAt      *time.Time `firestore:"deliveredAt,omitempty"`
	CancelledAt      *time.Time `firestore:"cancelledAt,omitempty"`
	CancelReason     string     `firestore:"cancelReason,omitempty"`
}

type orderItemDocument struct {
	OrderID       string    `firestore:"orderId"`
	ProductID     string    `firestore:"productId"`
	Quantity      int       `firestore:"quantity"`
	UnitPrice     int64     `firestore:"unitPrice"`
	TotalPrice    int64     `firestore:"totalPrice"`
	ProductName   string    `firestore:"productName"`
	ProductImage  string    `firestore:"productImage,omitempty"`
	SelectedSize  string    `firestore:"selectedSize,omitempty"`
	SelectedColor string    `firestore:"selectedColor,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// OrderRepository persists order headers with their line items in a
// subcollection. Header and items are always written in one transaction.
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{provider: provider, base: base}, nil
}

// Insert writes the order header and every line item atomically. When the
// context carries a transaction started via the registry's RunInTx, the
// writes join it; otherwise the repository opens its own transaction.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	if len(order.Items) == 0 {
		return domain.Order{}, errors.New("order repository: order requires at least one item")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	headerRef := client.Collection(ordersCollection).Doc(orderID)

	write := func(tx *firestore.Transaction) error {
		if err := tx.Create(headerRef, encodeOrderDocument(order)); err != nil {
			return err
		}
		for _, item := range order.Items {
			itemID := strings.TrimSpace(item.ID)
			if itemID == "" {
				return fmt.Errorf("order repository: item for product %s is missing an id", item.ProductID)
			}
			itemRef := headerRef.Collection(orderItemsCollection).Doc(itemID)
			if err := tx.Create(itemRef, encodeOrderItemDocument(orderID, item)); err != nil {
				return err
			}
		}
		return nil
	}

	if tx, ok := txFromContext(ctx); ok {
		if err := write(tx); err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.insert", err)
		}
		return order, nil
	}

	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		return write(tx)
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return order, nil
}

// FindByID fetches the order header together with its line items.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	order := decodeOrderDocument(doc.ID, doc.Data)
	items, err := r.loadItems(ctx, doc.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

// FindByReference fetches the order recorded against the payment reference.
func (r *OrderRepository) FindByReference(ctx context.Context, paymentReference string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return domain.Order{}, errors.New("order repository: payment reference is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("paymentReference", "==", paymentReference).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NewNotFoundError("orders.findbyreference", paymentReference)
	}

	order := decodeOrderDocument(docs[0].ID, docs[0].Data)
	items, err := r.loadItems(ctx, docs[0].ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

// List returns an order page, newest first. Listings carry headers only;
// line items are loaded on detail lookups.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultOrderPageSize
	}
	if limit > maxOrderPageSize {
		limit = maxOrderPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeOrderListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		if filter.PaymentStatus != "" {
			q = q.Where("paymentStatus", "==", string(filter.PaymentStatus))
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-2]
		nextToken = encodeOrderListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus applies a status transition and returns the updated order.
// Transition legality is enforced by the order service.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, update repositories.OrderStatusUpdate) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if update.Status == "" {
		return domain.Order{}, errors.New("order repository: status is required")
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(update.Status)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if update.DeliveredAt != nil {
		updates = append(updates, firestore.Update{Path: "deliveredAt", Value: update.DeliveredAt.UTC()})
	}
	if update.CancelledAt != nil {
		updates = append(updates, firestore.Update{Path: "cancelledAt", Value: update.CancelledAt.UTC()})
	}
	if strings.TrimSpace(update.CancelReason) != "" {
		updates = append(updates, firestore.Update{Path: "cancelReason", Value: strings.TrimSpace(update.CancelReason)})
	}

	if _, err := r.base.Update(ctx, orderID, updates); err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, orderID)
}

// UpdatePaymentStatus records the settlement state on the order header.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if status == "" {
		return domain.Order{}, errors.New("order repository: payment status is required")
	}

	_, err := r.base.Update(ctx, orderID, []firestore.Update{
		{Path: "paymentStatus", Value: string(status)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, orderID)
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]domain.OrderLineItem, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	query := client.Collection(ordersCollection).Doc(orderID).
		Collection(orderItemsCollection).
		OrderBy("createdAt", firestore.Asc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var items []domain.OrderLineItem
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.items", err)
		}
		var doc orderItemDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("order repository: decode item %s: %w", snapshot.Ref.ID, err)
		}
		items = append(items, decodeOrderItemDocument(snapshot.Ref.ID, doc))
	}
	return items, nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	return orderDocument{
		OrderNumber:      strings.TrimSpace(order.OrderNumber),
		UserID:           strings.TrimSpace(order.UserID),
		Status:           string(order.Status),
		Currency:         strings.ToUpper(strings.TrimSpace(order.Currency)),
		Subtotal:         order.Totals.Subtotal,
		Shipping:         order.Totals.Shipping,
		Tax:              order.Totals.Tax,
		Total:            order.Totals.Total,
		CustomerName:     strings.TrimSpace(order.CustomerName),
		CustomerEmail:    strings.TrimSpace(order.CustomerEmail),
		ShippingAddress:  strings.TrimSpace(order.ShippingAddress),
		Phone:            strings.TrimSpace(order.Phone),
		PaymentMethod:    string(order.PaymentMethod),
		PaymentReference: strings.TrimSpace(order.PaymentReference),
		PaymentStatus:    string(order.PaymentStatus),
		Notes:            order.Notes,
		CreatedAt:        order.CreatedAt.UTC(),
		UpdatedAt:        order.UpdatedAt.UTC(),
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
		CancelReason:     order.CancelReason,
	}
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	return domain.Order{
		ID:          id,
		OrderNumber: doc.OrderNumber,
		UserID:      doc.UserID,
		Status:      domain.OrderStatus(doc.Status),
		Currency:    doc.Currency,
		Totals: domain.Totals{
			Subtotal: doc.Subtotal,
			Shipping: doc.Shipping,
			Tax:      doc.Tax,
			Total:    doc.Total,
		},
		CustomerName:     doc.CustomerName,
		CustomerEmail:    doc.CustomerEmail,
		ShippingAddress:  doc.ShippingAddress,
		Phone:            doc.Phone,
		PaymentMethod:    domain.PaymentMethod(doc.PaymentMethod),
		PaymentReference: doc.PaymentReference,
		PaymentStatus:    domain.PaymentStatus(doc.PaymentStatus),
		Notes:            doc.Notes,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
		DeliveredAt:      doc.DeliveredAt,
		CancelledAt:      doc.CancelledAt,
		CancelReason:     doc.CancelReason,
	}
}

func encodeOrderItemDocument(orderID string, item domain.OrderLineItem) orderItemDocument {
	return orderItemDocument{
		OrderID:       orderID,
		ProductID:     item.ProductID,
		Quantity:      item.Quantity,
		UnitPrice:     item.UnitPrice,
		TotalPrice:    item.TotalPrice,
		ProductName:   item.ProductName,
		ProductImage:  item.ProductImage,
		SelectedSize:  item.SelectedSize,
		SelectedColor: item.SelectedColor,
		CreatedAt:     item.CreatedAt.UTC(),
	}
}

func decodeOrderItemDocument(id string, doc orderItemDocument) domain.OrderLineItem {
	return domain.OrderLineItem{
		ID:            id,
		OrderID:       doc.OrderID,
		ProductID:     doc.ProductID,
		Quantity:      doc.Quantity,
		UnitPrice:     doc.UnitPrice,
		TotalPrice:    doc.TotalPrice,
		ProductName:   doc.ProductName,
		ProductImage:  doc.ProductImage,
		SelectedSize:  doc.SelectedSize,
		SelectedColor: doc.SelectedColor,
		CreatedAt:     doc.CreatedAt,
	}
}

func encodeOrderListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeOrderListToken(token string) (time.Time, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid token structure")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, parts[1], nil
}

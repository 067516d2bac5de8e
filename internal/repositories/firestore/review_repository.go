package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const (
	reviewsCollection = "reviews"

	defaultReviewPageSize = 20
	maxReviewPageSize     = 100
)

type reviewDocument struct {
	ProductID        string     `firestore:"productId"`
	UserID           string     `firestore:"userId"`
	Rating           int        `firestore:"rating"`
	Title            string     `firestore:"title,omitempty"`
	Comment          string     `firestore:"comment"`
	VerifiedPurchase bool       `firestore:"verifiedPurchase"`
	Status           string     `firestore:"status"`
	ModeratedBy      string     `firestore:"moderatedBy,omitempty"`
	ModeratedAt      *time.Time `firestore:"moderatedAt,omitempty"`
	CreatedAt        time.Time  `firestore:"createdAt"`
	UpdatedAt        time.Time  `firestore:"updatedAt"`
}

// ReviewRepository persists customer reviews within Firestore.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[reviewDocument](provider, reviewsCollection, nil, nil)
	return &ReviewRepository{base: base}, nil
}

// Insert creates the review document and fails when the ID already exists.
func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	if r == nil || r.base == nil {
		return errors.New("review repository not initialised")
	}
	if strings.TrimSpace(review.ID) == "" {
		return errors.New("review repository: review id is required")
	}
	_, err := r.base.Create(ctx, review.ID, encodeReviewDocument(review))
	return err
}

// FindByID fetches a single review.
func (r *ReviewRepository) FindByID(ctx context.Context, reviewID string) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	doc, err := r.base.Get(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	return decodeReviewDocument(doc.ID, doc.Data), nil
}

// List returns a review page, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Review]{}, errors.New("review repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultReviewPageSize
	}
	if limit > maxReviewPageSize {
		limit = maxReviewPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeReviewListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Review]{}, fmt.Errorf("review repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if productID := strings.TrimSpace(filter.ProductID); productID != "" {
			q = q.Where("productId", "==", productID)
		}
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-2]
		nextToken = encodeReviewListToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Review, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeReviewDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Review]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

// UpdateStatus records the moderation outcome.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, reviewID string, status domain.ReviewStatus, moderatedBy string, moderatedAt time.Time) (domain.Review, error) {
	if r == nil || r.base == nil {
		return domain.Review{}, errors.New("review repository not initialised")
	}
	if status == "" {
		return domain.Review{}, errors.New("review repository: status is required")
	}

	_, err := r.base.Update(ctx, reviewID, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "moderatedBy", Value: strings.TrimSpace(moderatedBy)},
		{Path: "moderatedAt", Value: moderatedAt.UTC()},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	if err != nil {
		return domain.Review{}, err
	}
	return r.FindByID(ctx, reviewID)
}

func encodeReviewDocument(review domain.Review) reviewDocument {
	return reviewDocument{
		ProductID:        strings.TrimSpace(review.ProductID),
		UserID:           strings.TrimSpace(review.UserID),
		Rating:           review.Rating,
		Title:            strings.TrimSpace(review.Title),
		Comment:          review.Comment,
		VerifiedPurchase: review.VerifiedPurchase,
		Status:           string(review.Status),
		ModeratedBy:      strings.TrimSpace(review.ModeratedBy),
		ModeratedAt:      review.ModeratedAt,
		CreatedAt:        review.CreatedAt.UTC(),
		UpdatedAt:        review.UpdatedAt.UTC(),
	}
}

func decodeReviewDocument(id string, doc reviewDocument) domain.Review {
	return domain.Review{
		ID:               id,
		ProductID:        doc.ProductID,
		UserID:           doc.UserID,
		Rating:           doc.Rating,
		Title:            doc.Title,
		Comment:          doc.Comment,
		VerifiedPurchase: doc.VerifiedPurchase,
		Status:           domain.ReviewStatus(doc.Status),
		ModeratedBy:      doc.ModeratedBy,
		ModeratedAt:      doc.ModeratedAt,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func encodeReviewListToken(createdAt time.Time, docID string) string {
	payload := fmt.Sprintf("%s|%s", createdAt.UTC().Format(time.RFC3339Nano), docID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func decodeReviewListToken(token string) (time.Time, string, error) {
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

package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	pfirestore "github.com/elite-furniture/api/internal/platform/firestore"
	"github.com/elite-furniture/api/internal/repositories"
)

const usersCollection = "users"

type userDocument struct {
	DisplayName string    `firestore:"displayName,omitempty"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone,omitempty"`
	Role        string    `firestore:"role"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// UserRepository persists user profile projections keyed by the auth UID.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, usersCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// Upsert writes the profile document, preserving the original creation time.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	userID := strings.TrimSpace(profile.ID)
	if userID == "" {
		return domain.UserProfile{}, errors.New("user repository: user id is required")
	}

	now := time.Now().UTC()
	createdAt := profile.CreatedAt.UTC()
	if createdAt.IsZero() {
		if existing, err := r.base.Get(ctx, userID); err == nil {
			createdAt = existing.Data.CreatedAt
		} else if !repositories.IsNotFound(err) {
			return domain.UserProfile{}, err
		} else {
			createdAt = now
		}
	}

	role := profile.Role
	if role == "" {
		role = domain.RoleUser
	}

	doc := userDocument{
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Email:       strings.TrimSpace(profile.Email),
		Phone:       strings.TrimSpace(profile.Phone),
		Role:        string(role),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	if _, err := r.base.Set(ctx, userID, doc); err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUserDocument(userID, doc), nil
}

// FindByID fetches the profile for the UID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return decodeUserDocument(doc.ID, doc.Data), nil
}

func decodeUserDocument(id string, doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		ID:          id,
		DisplayName: doc.DisplayName,
		Email:       doc.Email,
		Phone:       doc.Phone,
		Role:        domain.Role(doc.Role),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/repositories"
)

// ErrUserInvalidInput indicates the caller supplied invalid profile input.
var ErrUserInvalidInput = errors.New("user service: invalid input")

// ErrUserNotFound indicates no profile exists for the user.
var ErrUserNotFound = errors.New("user service: user not found")

// ErrUserUnavailable indicates the user backend cannot fulfil the request.
var ErrUserUnavailable = errors.New("user service: unavailable")

// UserServiceDeps wires the repositories backing user profiles.
type UserServiceDeps struct {
	Users  repositories.UserRepository
	Clock  func() time.Time
	Logger func(context.Context, string, map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewUserService constructs a UserService enforcing dependency validation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:  deps.Users,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// GetProfile loads the stored projection for the authenticated user.
func (s *userService) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UserProfile{}, ErrUserInvalidInput
	}
	profile, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, s.translateError(err)
	}
	return profile, nil
}

// SaveProfile upserts the writable profile fields. The role is never taken
// from the caller; it is managed out of band.
func (s *userService) SaveProfile(ctx context.Context, userID string, input ProfileInput) (domain.UserProfile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.UserProfile{}, ErrUserInvalidInput
	}
	email := strings.TrimSpace(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.UserProfile{}, fmt.Errorf("%w: a valid email is required", ErrUserInvalidInput)
	}

	now := s.now()
	profile, err := s.users.Upsert(ctx, domain.UserProfile{
		ID:          userID,
		DisplayName: strings.TrimSpace(input.DisplayName),
		Email:       email,
		Phone:       strings.TrimSpace(input.Phone),
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.UserProfile{}, s.translateError(err)
	}
	s.logger(ctx, "user.profile.saved", map[string]any{"userId": userID})
	return profile, nil
}

func (s *userService) translateError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	case repositories.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
	}
	return err
}

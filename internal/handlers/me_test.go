package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elite-furniture/api/internal/domain"
	"github.com/elite-furniture/api/internal/services"
)

type stubUserService struct {
	getFn  func(context.Context, string) (domain.UserProfile, error)
	saveFn func(context.Context, string, services.ProfileInput) (domain.UserProfile, error)
}

func (s *stubUserService) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return domain.UserProfile{ID: userID}, nil
}

func (s *stubUserService) SaveProfile(ctx context.Context, userID string, input services.ProfileInput) (domain.UserProfile, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, userID, input)
	}
	return domain.UserProfile{ID: userID}, nil
}

func TestMeGetProfile(t *testing.T) {
	service := &stubUserService{
		getFn: func(_ context.Context, userID string) (domain.UserProfile, error) {
			return domain.UserProfile{
				ID:    userID,
				Email: "ada@example.com",
				Role:  domain.RoleUser,
			}, nil
		},
	}
	handler := NewMeHandlers(nil, service)
	router := NewRouter(WithMeRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/profile", nil)
	req = asUser(req, "user-9")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body struct {
		Profile profilePayload `json:"profile"`
	}
	decodeBody(t, rr.Body.Bytes(), &body)
	if body.Profile.ID != "user-9" || body.Profile.Email != "ada@example.com" {
		t.Fatalf("unexpected profile: %+v", body.Profile)
	}
	if body.Profile.Role != string(domain.RoleUser) {
		t.Fatalf("expected user role, got %q", body.Profile.Role)
	}
}

func TestMeSaveProfileForwardsInput(t *testing.T) {
	var captured services.ProfileInput
	service := &stubUserService{
		saveFn: func(_ context.Context, userID string, input services.ProfileInput) (domain.UserProfile, error) {
			captured = input
			return domain.UserProfile{ID: userID, Email: input.Email}, nil
		},
	}
	handler := NewMeHandlers(nil, service)
	router := NewRouter(WithMeRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/me/profile", jsonBody(t, map[string]any{
		"displayName": " Ada L ",
		"email":       "ada@example.com",
		"phone":       "+2348012345678",
	}))
	req = asUser(req, "user-9")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.DisplayName != "Ada L" || captured.Email != "ada@example.com" {
		t.Fatalf("unexpected input: %+v", captured)
	}
}

func TestMeSaveProfileInvalidEmail(t *testing.T) {
	service := &stubUserService{
		saveFn: func(context.Context, string, services.ProfileInput) (domain.UserProfile, error) {
			return domain.UserProfile{}, services.ErrUserInvalidInput
		},
	}
	handler := NewMeHandlers(nil, service)
	router := NewRouter(WithMeRoutes(handler.Routes))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/me/profile", jsonBody(t, map[string]any{"email": "nope"}))
	req = asUser(req, "user-9")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

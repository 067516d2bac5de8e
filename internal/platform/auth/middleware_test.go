package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s *stubVerifier) VerifyIDToken(context.Context, string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func okHandler(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*captured = identity
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func authedRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/me/cart", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	return req
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{})
	rec := httptest.NewRecorder()

	var got *Identity
	authn.RequireAuth()(okHandler(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me/cart", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got != nil {
		t.Fatalf("handler should not run without credentials")
	}
}

func TestRequireAuthRejectsInvalidToken(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: errors.New("broken")})
	rec := httptest.NewRecorder()

	var got *Identity
	authn.RequireAuth()(okHandler(&got)).ServeHTTP(rec, authedRequest())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireAuthPopulatesIdentity(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{token: &firebaseauth.Token{
		UID: "user-1",
		Claims: map[string]interface{}{
			"email": "ada@example.com",
			"role":  "admin",
		},
	}})
	rec := httptest.NewRecorder()

	var got *Identity
	authn.RequireAuth()(okHandler(&got)).ServeHTTP(rec, authedRequest())

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got == nil {
		t.Fatalf("identity missing from context")
	}
	if got.UID != "user-1" || got.Email != "ada@example.com" {
		t.Errorf("identity = %+v", got)
	}
	if !got.IsAdmin() {
		t.Errorf("expected admin role, got %v", got.Roles)
	}
}

func TestRequireAuthFallbackRole(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{token: &firebaseauth.Token{
		UID:    "user-2",
		Claims: map[string]interface{}{},
	}})
	rec := httptest.NewRecorder()

	var got *Identity
	authn.RequireAuth()(okHandler(&got)).ServeHTTP(rec, authedRequest())

	if got == nil {
		t.Fatalf("identity missing from context")
	}
	if !got.HasRole(RoleUser) {
		t.Errorf("roles = %v, want fallback user role", got.Roles)
	}
	if got.IsAdmin() {
		t.Errorf("fallback role must not grant admin")
	}
}

func TestRequireAdminForbidsPlainUsers(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{token: &firebaseauth.Token{
		UID:    "user-3",
		Claims: map[string]interface{}{"role": "user"},
	}})
	rec := httptest.NewRecorder()

	var got *Identity
	authn.RequireAdmin()(okHandler(&got)).ServeHTTP(rec, authedRequest())

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if got != nil {
		t.Fatalf("handler should not run for insufficient role")
	}
}

func TestRolesFromClaimsShapes(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]interface{}
		want   []Role
	}{
		{
			name:   "single string",
			claims: map[string]interface{}{"role": "Admin"},
			want:   []Role{RoleAdmin},
		},
		{
			name:   "list with duplicates",
			claims: map[string]interface{}{"role": []interface{}{"user", "USER", "admin"}},
			want:   []Role{RoleUser, RoleAdmin},
		},
		{
			name:   "grant map",
			claims: map[string]interface{}{"role": map[string]interface{}{"admin": true, "user": false}},
			want:   []Role{RoleAdmin},
		},
		{
			name:   "absent",
			claims: map[string]interface{}{},
			want:   nil,
		},
		{
			name:   "unexpected type",
			claims: map[string]interface{}{"role": 42},
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rolesFromClaims(tc.claims, "role")
			if len(got) != len(tc.want) {
				t.Fatalf("roles = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("roles = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := extractBearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Errorf("extractBearerToken(%q) = (%q, %v), want (%q, %v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"careerprep/internal/domain"
)

func TestAuthHandler_GetProfile_Unauthorized(t *testing.T) {
	handler := NewAuthHandler(&mockSubscriptionSource{}, NewMockHandlerLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	rr := httptest.NewRecorder()

	handler.GetProfile(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "User not found in context") {
		t.Fatalf("expected error message in response, got %s", rr.Body.String())
	}
}

func TestAuthHandler_GetProfile_OK(t *testing.T) {
	subscriptions := &mockSubscriptionSource{tier: domain.TierPremium}
	handler := NewAuthHandler(subscriptions, NewMockHandlerLogger())

	user := &domain.SupabaseUser{ID: "user-1", Email: "test@example.com", UserMetadata: map[string]interface{}{"name": "test"}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req = createContextWithUser(req, user)
	req = createContextWithToken(req, "good")

	rr := httptest.NewRecorder()
	handler.GetProfile(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var payload struct {
		User domain.SupabaseUser     `json:"user"`
		Tier domain.SubscriptionTier `json:"tier"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.User.ID != "user-1" {
		t.Fatalf("expected ID user-1, got %v", payload.User.ID)
	}
	if payload.Tier != domain.TierPremium {
		t.Fatalf("expected tier premium, got %q", payload.Tier)
	}
	if token, ok := domain.AccessTokenFromContext(subscriptions.lastCtx); !ok || token != "good" {
		t.Fatalf("expected subscription lookup to carry the access token")
	}
}

func TestAuthHandler_GetProfile_UpstreamDown(t *testing.T) {
	handler := NewAuthHandler(&mockSubscriptionSource{err: domain.ErrNetwork}, NewMockHandlerLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
	req = createContextWithUser(req, &domain.SupabaseUser{ID: "user-1"})

	rr := httptest.NewRecorder()
	handler.GetProfile(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
}

func TestAuthHandler_ValidateToken_OK(t *testing.T) {
	handler := NewAuthHandler(&mockSubscriptionSource{}, NewMockHandlerLogger())

	user := &domain.SupabaseUser{ID: "user-1", Email: "test@example.com", UserMetadata: map[string]interface{}{}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/validate", nil)
	req = createContextWithUser(req, user)

	rr := httptest.NewRecorder()
	handler.ValidateToken(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"id":"user-1"`) {
		t.Fatalf("unexpected response body: %s", rr.Body.String())
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classquiz-service/internal/domain"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pass" {
		t.Fatalf("hash must not equal plaintext")
	}
	if !CheckPassword(hash, "s3cret-pass") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	user := domain.User{ID: "u1", Name: "Alice", Role: domain.RoleStudent}

	signed, err := tokens.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := tokens.Parse(signed)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "student" || claims.Name != "Alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Minute)
	current := time.Now()
	tokens.now = func() time.Time { return current }

	signed, err := tokens.Issue(domain.User{ID: "u1", Role: domain.RoleTeacher})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := tokens.Parse(signed); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestTokenWrongSecret(t *testing.T) {
	signed, err := NewTokenService("secret-a", time.Hour).Issue(domain.User{ID: "u1", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenService("secret-b", time.Hour).Parse(signed); err == nil {
		t.Fatalf("expected bad signature to fail")
	}
}

func TestRoleMiddleware(t *testing.T) {
	tokens := NewTokenService("test-secret", time.Hour)
	handler := Middleware(tokens)(RequireRole(domain.RoleTeacher, domain.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	// Student hits a teacher-only route.
	studentToken, _ := tokens.Issue(domain.User{ID: "u2", Role: domain.RoleStudent})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Teacher passes.
	teacherToken, _ := tokens.Issue(domain.User{ID: "u3", Role: domain.RoleTeacher})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+teacherToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	// Token via query parameter (websocket dial path).
	req = httptest.NewRequest(http.MethodGet, "/?token="+teacherToken, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 via query token, got %d", rec.Code)
	}
}

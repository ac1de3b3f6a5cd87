package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestRequireAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	guard := RequireAdminKey(string(hash), next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", rec.Code)
	}
	if called {
		t.Fatal("next handler must not run on auth failure")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("X-Admin-Key", "s3cret")
	rec = httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected pass-through, got %d (called=%v)", rec.Code, called)
	}
}

func TestRequireAdminKey_Unconfigured(t *testing.T) {
	guard := RequireAdminKey("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	req.Header.Set("X-Admin-Key", "anything")
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when unconfigured, got %d", rec.Code)
	}
}

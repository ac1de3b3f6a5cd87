package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "123 Main St" {
			t.Fatalf("unexpected query %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"street1":"123 Main St","city":"Springfield","state":"IL","postalCode":"62704","county":"Sangamon","lat":39.78,"lng":-89.65,"placeId":"pl_1"}]`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, "tok")
	addr, err := r.Resolve(context.Background(), "123 Main St")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if addr.City != "Springfield" || addr.PlaceID != "pl_1" {
		t.Fatalf("unexpected address: %+v", addr)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, "")
	if _, err := r.Resolve(context.Background(), "nowhere"); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestResolve_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL, "")
	if _, err := r.Resolve(context.Background(), "123 Main St"); err == nil {
		t.Fatal("expected error on 5xx")
	}
}

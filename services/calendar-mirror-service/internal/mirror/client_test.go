package mirror

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestUpsert(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body struct {
			Title string    `json:"title"`
			Start time.Time `json:"start"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Title != "Buyer Closing - Pat Doe" {
			t.Fatalf("unexpected title %q", body.Title)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	err := c.Upsert(context.Background(), Event{
		AppointmentID: "appt-1",
		CalendarID:    "closings",
		Title:         "Buyer Closing - Pat Doe",
		Start:         time.Date(2026, 9, 14, 13, 0, 0, 0, time.UTC),
		End:           time.Date(2026, 9, 14, 14, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/calendars/closings/events/appt-1" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
}

func TestUpsert_VendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.Upsert(context.Background(), Event{AppointmentID: "a", CalendarID: "c"}); err == nil {
		t.Fatal("expected error on non-2xx")
	}
}

func TestRemove_MissingEventIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method %s", r.Method)
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.Remove(context.Background(), "closings", "appt-404"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

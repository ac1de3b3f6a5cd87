package catalog

import (
	"errors"
	"testing"
)

func TestDefaultCatalogSeed(t *testing.T) {
	c := Default()

	buyer := c.ListEligible(PersonaBuyer)
	if len(buyer) != 1 || buyer[0].ID != "buyer-closing" {
		t.Fatalf("unexpected buyer types: %+v", buyer)
	}

	got, err := c.GetType("lender-order")
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	if got.DurationMinutes != 30 || got.CalendarID != "consults" {
		t.Fatalf("unexpected lender-order entry: %+v", got)
	}
}

func TestGetType_NotFound(t *testing.T) {
	c := Default()
	_, err := c.GetType("no-such-type")
	if !errors.Is(err, ErrTypeNotFound) {
		t.Fatalf("expected ErrTypeNotFound, got %v", err)
	}
}

func TestListEligible_PreservesDeclarationOrder(t *testing.T) {
	week := WeekHours{Mon: Hours(540, 1020)}
	c, err := New([]AppointmentType{
		{ID: "b", Title: "B", DurationMinutes: 30, EligiblePersonas: []Persona{PersonaAgent}, Hours: week},
		{ID: "a", Title: "A", DurationMinutes: 30, EligiblePersonas: []Persona{PersonaAgent}, Hours: week},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	types := c.ListEligible(PersonaAgent)
	if len(types) != 2 || types[0].ID != "b" || types[1].ID != "a" {
		t.Fatalf("declaration order not preserved: %+v", types)
	}
}

func TestNew_RejectsBadEntries(t *testing.T) {
	week := WeekHours{Mon: Hours(540, 1020)}
	valid := AppointmentType{ID: "ok", DurationMinutes: 30, EligiblePersonas: []Persona{PersonaBuyer}, Hours: week}

	cases := []struct {
		name   string
		mutate func(*AppointmentType)
	}{
		{"zero duration", func(t *AppointmentType) { t.DurationMinutes = 0 }},
		{"negative buffer", func(t *AppointmentType) { t.BufferAfterMinutes = -1 }},
		{"no personas", func(t *AppointmentType) { t.EligiblePersonas = nil }},
		{"all days closed", func(t *AppointmentType) { t.Hours = WeekHours{} }},
		{"inverted window", func(t *AppointmentType) { t.Hours = WeekHours{Mon: Hours(600, 540)} }},
		{"window too small", func(t *AppointmentType) {
			t.Hours = WeekHours{Mon: Hours(540, 560)}
		}},
		{"cutoff out of range", func(t *AppointmentType) { t.SameDayCutoffHour = 24 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := valid
			tc.mutate(&bad)
			if _, err := New([]AppointmentType{bad}); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	week := WeekHours{Mon: Hours(540, 1020)}
	entry := AppointmentType{ID: "dup", DurationMinutes: 30, EligiblePersonas: []Persona{PersonaBuyer}, Hours: week}
	if _, err := New([]AppointmentType{entry, entry}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestParsePersona(t *testing.T) {
	if p, err := ParsePersona("Real Estate Agent"); err != nil || p != PersonaAgent {
		t.Fatalf("got %q, %v", p, err)
	}
	if _, err := ParsePersona("contractor"); err == nil {
		t.Fatal("expected error for unknown persona")
	}
}

package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Persona identifies who is booking. The wire values match what the public
// site sends.
type Persona string

const (
	PersonaBuyer  Persona = "buyer"
	PersonaSeller Persona = "seller"
	PersonaAgent  Persona = "agent"
	PersonaLender Persona = "lender"
)

func ParsePersona(raw string) (Persona, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buyer":
		return PersonaBuyer, nil
	case "seller":
		return PersonaSeller, nil
	case "agent", "real estate agent":
		return PersonaAgent, nil
	case "lender":
		return PersonaLender, nil
	}
	return "", fmt.Errorf("unknown persona %q", raw)
}

// LocationType is informational only; it never affects slot computation.
type LocationType string

const (
	LocationInOffice LocationType = "in_office"
	LocationRemote   LocationType = "remote"
	LocationMobile   LocationType = "mobile"
)

// DayHours is the open/close window for one weekday, in minutes from
// midnight in the business time zone. Open=false means closed that day.
type DayHours struct {
	Open        bool
	StartMinute int
	EndMinute   int
}

func Hours(startMinute, endMinute int) DayHours {
	return DayHours{Open: true, StartMinute: startMinute, EndMinute: endMinute}
}

// WeekHours carries one entry per weekday so that a missing day cannot be
// expressed: a day is either explicitly open or explicitly closed.
type WeekHours struct {
	Mon DayHours
	Tue DayHours
	Wed DayHours
	Thu DayHours
	Fri DayHours
	Sat DayHours
	Sun DayHours
}

func (w WeekHours) ForWeekday(d time.Weekday) DayHours {
	switch d {
	case time.Monday:
		return w.Mon
	case time.Tuesday:
		return w.Tue
	case time.Wednesday:
		return w.Wed
	case time.Thursday:
		return w.Thu
	case time.Friday:
		return w.Fri
	case time.Saturday:
		return w.Sat
	default:
		return w.Sun
	}
}

func (w WeekHours) days() []DayHours {
	return []DayHours{w.Mon, w.Tue, w.Wed, w.Thu, w.Fri, w.Sat, w.Sun}
}

// AppointmentType is an immutable catalog entry.
type AppointmentType struct {
	ID                  string
	Title               string
	Description         string
	DurationMinutes     int
	BufferBeforeMinutes int
	BufferAfterMinutes  int
	EligiblePersonas    []Persona
	Location            LocationType
	Hours               WeekHours
	LeadTimeMinutes     int
	SameDayCutoffHour   int
	// CalendarID names the third-party calendar this type's bookings are
	// mirrored to and fetched from, when an external provider is configured.
	CalendarID string
}

func (t AppointmentType) EligibleFor(p Persona) bool {
	for _, e := range t.EligiblePersonas {
		if e == p {
			return true
		}
	}
	return false
}

func (t AppointmentType) validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("appointment type id is required")
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("%s: duration must be positive (got %d)", t.ID, t.DurationMinutes)
	}
	if t.BufferBeforeMinutes < 0 || t.BufferAfterMinutes < 0 {
		return fmt.Errorf("%s: buffers must not be negative", t.ID)
	}
	if t.LeadTimeMinutes < 0 {
		return fmt.Errorf("%s: lead time must not be negative", t.ID)
	}
	if t.SameDayCutoffHour < 0 || t.SameDayCutoffHour > 23 {
		return fmt.Errorf("%s: same-day cutoff hour must be 0..23 (got %d)", t.ID, t.SameDayCutoffHour)
	}
	if len(t.EligiblePersonas) == 0 {
		return fmt.Errorf("%s: at least one eligible persona is required", t.ID)
	}

	anyOpen := false
	anyHostable := false
	occupied := t.BufferBeforeMinutes + t.DurationMinutes + t.BufferAfterMinutes
	for _, d := range t.Hours.days() {
		if !d.Open {
			continue
		}
		anyOpen = true
		if d.StartMinute < 0 || d.EndMinute > 24*60 || d.EndMinute <= d.StartMinute {
			return fmt.Errorf("%s: malformed business hours window [%d,%d)", t.ID, d.StartMinute, d.EndMinute)
		}
		if occupied <= d.EndMinute-d.StartMinute {
			anyHostable = true
		}
	}
	if !anyOpen {
		return fmt.Errorf("%s: all days are closed", t.ID)
	}
	if !anyHostable {
		return fmt.Errorf("%s: duration plus buffers (%dm) exceeds every open window", t.ID, occupied)
	}
	return nil
}

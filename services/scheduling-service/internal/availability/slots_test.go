package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/wctitle/titlebook/services/scheduling-service/internal/catalog"
)

// weekdayOnly is Mon-Fri 09:00-17:00, closed weekends.
var weekdayOnly = catalog.WeekHours{
	Mon: catalog.Hours(540, 1020),
	Tue: catalog.Hours(540, 1020),
	Wed: catalog.Hours(540, 1020),
	Thu: catalog.Hours(540, 1020),
	Fri: catalog.Hours(540, 1020),
}

func closingType() catalog.AppointmentType {
	return catalog.AppointmentType{
		ID:                 "closing",
		DurationMinutes:    60,
		BufferAfterMinutes: 15,
		EligiblePersonas:   []catalog.Persona{catalog.PersonaBuyer},
		Hours:              weekdayOnly,
		SameDayCutoffHour:  23,
	}
}

// 2025-05-19 is a Monday, 2025-05-17 a Saturday (same dates the original
// office schedule was validated against).
var (
	monday   = time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2025, 5, 17, 0, 0, 0, 0, time.UTC)
)

// now well before the test week so lead time never interferes unless a test
// wants it to.
var weekBefore = time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC)

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.UTC)
}

func TestComputeSlots_FullOpenDay(t *testing.T) {
	slots, err := ComputeSlots(closingType(), monday, nil, weekBefore, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	// 09:00 through 15:45 inclusive: 15:45+60m+15m lands exactly on the
	// 17:00 close; 16:00 would spill to 17:15.
	if len(slots) != 28 {
		t.Fatalf("expected 28 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(monday, 9, 0)) {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Start)
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(at(monday, 15, 45)) {
		t.Fatalf("expected last slot 15:45, got %s", last.Start)
	}
	if !last.End.Equal(at(monday, 16, 45)) {
		t.Fatalf("slot end must exclude the trailing buffer, got %s", last.End)
	}
	if slots[0].Label != "9:00 AM" {
		t.Fatalf("unexpected label %q", slots[0].Label)
	}
}

func TestComputeSlots_Ascending(t *testing.T) {
	slots, err := ComputeSlots(closingType(), monday, nil, weekBefore, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots not strictly ascending at index %d", i)
		}
	}
}

func TestComputeSlots_BusyInterval(t *testing.T) {
	busy := []Interval{{Start: at(monday, 12, 0), End: at(monday, 13, 0)}}
	slots, err := ComputeSlots(closingType(), monday, busy, weekBefore, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}

	starts := map[time.Time]bool{}
	for _, s := range slots {
		starts[s.Start] = true
	}
	// 11:45 occupies 11:45-13:00, which touches the busy block; 13:00 is the
	// first clean start after it. 10:45 occupies through exactly 12:00 and
	// stays bookable (half-open intervals).
	if starts[at(monday, 11, 45)] {
		t.Fatal("11:45 should be excluded by busy [12:00,13:00)")
	}
	if !starts[at(monday, 13, 0)] {
		t.Fatal("13:00 should be included")
	}
	if !starts[at(monday, 10, 45)] {
		t.Fatal("10:45 should be included (occupied window ends exactly at busy start)")
	}

	for _, s := range slots {
		occupiedEnd := s.End.Add(15 * time.Minute)
		for _, b := range busy {
			if s.Start.Before(b.End) && b.Start.Before(occupiedEnd) {
				t.Fatalf("slot %s overlaps busy interval", s.Start)
			}
		}
	}
}

func TestComputeSlots_ClosedDay(t *testing.T) {
	slots, err := ComputeSlots(closingType(), saturday, nil, weekBefore, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a closed day, got %d", len(slots))
	}
}

func TestComputeSlots_SameDayCutoff(t *testing.T) {
	apptType := closingType()
	apptType.SameDayCutoffHour = 12

	now := at(monday, 14, 0)
	slots, err := ComputeSlots(apptType, monday, nil, now, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected empty result past the same-day cutoff, got %d slots", len(slots))
	}

	tuesday := monday.AddDate(0, 0, 1)
	slots, err = ComputeSlots(apptType, tuesday, nil, now, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("cutoff must not affect future dates")
	}
}

func TestComputeSlots_LeadTime(t *testing.T) {
	apptType := closingType()
	apptType.LeadTimeMinutes = 1440

	now := at(monday, 10, 0)
	slots, err := ComputeSlots(apptType, monday, nil, now, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected empty result inside the lead window, got %d slots", len(slots))
	}

	tuesday := monday.AddDate(0, 0, 1)
	slots, err = ComputeSlots(apptType, tuesday, nil, now, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots on the day after the lead window")
	}
	if slots[0].Start.Before(at(tuesday, 10, 0)) {
		t.Fatalf("first slot %s starts before now+lead", slots[0].Start)
	}
}

func TestComputeSlots_LeadingBuffer(t *testing.T) {
	apptType := closingType()
	apptType.BufferBeforeMinutes = 15

	slots, err := ComputeSlots(apptType, monday, nil, weekBefore, Options{EnforceLeadingBuffer: true})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if !slots[0].Start.Equal(at(monday, 9, 15)) {
		t.Fatalf("expected first slot 09:15 with the leading buffer enforced, got %s", slots[0].Start)
	}

	// Without the policy the leading buffer may hang over the window open.
	slots, err = ComputeSlots(apptType, monday, nil, weekBefore, Options{})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if !slots[0].Start.Equal(at(monday, 9, 0)) {
		t.Fatalf("expected first slot 09:00 without the leading buffer, got %s", slots[0].Start)
	}
}

func TestComputeSlots_BusinessTimeZoneLabel(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	localMonday := time.Date(2025, 5, 19, 12, 0, 0, 0, loc)
	slots, err := ComputeSlots(closingType(), localMonday, nil, weekBefore, Options{Location: loc})
	if err != nil {
		t.Fatalf("ComputeSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if slots[0].Label != "9:00 AM" {
		t.Fatalf("expected business-local label, got %q", slots[0].Label)
	}
	if got := slots[0].Start.In(loc).Hour(); got != 9 {
		t.Fatalf("expected window anchored in the business zone, got hour %d", got)
	}
}

func TestComputeSlots_InvalidConfig(t *testing.T) {
	apptType := closingType()
	apptType.DurationMinutes = 0

	_, err := ComputeSlots(apptType, monday, nil, weekBefore, Options{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestComputeSlots_FullyBookedIsEmptyNotError(t *testing.T) {
	busy := []Interval{{Start: at(monday, 0, 0), End: at(monday, 23, 59)}}
	slots, err := ComputeSlots(closingType(), monday, busy, weekBefore, Options{})
	if err != nil {
		t.Fatalf("a fully booked day is valid, got error %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

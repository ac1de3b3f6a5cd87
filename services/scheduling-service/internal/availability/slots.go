// Package availability computes bookable time slots for one appointment
// type on one calendar date. ComputeSlots is a pure function over its
// inputs: the clock and the busy set are injected, so it is safe to call
// concurrently and trivial to test without a wall clock.
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/wctitle/titlebook/services/scheduling-service/internal/catalog"
)

// Interval is a half-open [Start, End) range of already-committed time.
// The engine never creates or mutates these; they come from the booking
// store, the hold store, and (optionally) an external calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a bookable start/end pair. End excludes the trailing buffer: the
// buffer is reserved but not part of the visible appointment. Label is the
// start time rendered in the business time zone.
type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

// DefaultGranularity is the spacing between candidate slot starts.
const DefaultGranularity = 15 * time.Minute

// Options tune engine policy. The zero value enforces only the trailing
// buffer; production wiring enables the leading buffer as well.
type Options struct {
	// Granularity is the candidate step. Zero means DefaultGranularity.
	Granularity time.Duration
	// EnforceLeadingBuffer additionally requires start-bufferBefore to fall
	// inside the business window.
	EnforceLeadingBuffer bool
	// Location is the business time zone. Nil means UTC.
	Location *time.Location
}

// ErrInvalidConfig marks appointment-type or option misconfiguration.
// Callers must treat it as a configuration error, never as "no availability":
// an empty result with a nil error is the only valid empty outcome.
var ErrInvalidConfig = errors.New("invalid availability configuration")

// ComputeSlots returns the ordered bookable slots for apptType on the
// calendar day containing date (interpreted in the business time zone).
//
// A closed weekday, a fully busy day, and a day excluded by lead time or
// the same-day cutoff all yield an empty slice and a nil error.
func ComputeSlots(apptType catalog.AppointmentType, date time.Time, busy []Interval, now time.Time, opts Options) ([]Slot, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	step := opts.Granularity
	if step == 0 {
		step = DefaultGranularity
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: granularity must be positive", ErrInvalidConfig)
	}
	if apptType.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	if apptType.BufferBeforeMinutes < 0 || apptType.BufferAfterMinutes < 0 {
		return nil, fmt.Errorf("%w: buffers must not be negative", ErrInvalidConfig)
	}

	day := date.In(loc)
	hours := apptType.Hours.ForWeekday(day.Weekday())
	if !hours.Open {
		return nil, nil
	}
	if hours.EndMinute <= hours.StartMinute {
		return nil, fmt.Errorf("%w: business hours window [%d,%d) is empty", ErrInvalidConfig, hours.StartMinute, hours.EndMinute)
	}

	windowStart := minuteOfDay(day, hours.StartMinute, loc)
	windowEnd := minuteOfDay(day, hours.EndMinute, loc)

	localNow := now.In(loc)
	if sameDate(localNow, day) && localNow.Hour() >= apptType.SameDayCutoffHour {
		// Same-day booking window has closed for the whole day, independent
		// of per-slot lead time.
		return nil, nil
	}

	duration := time.Duration(apptType.DurationMinutes) * time.Minute
	bufBefore := time.Duration(apptType.BufferBeforeMinutes) * time.Minute
	bufAfter := time.Duration(apptType.BufferAfterMinutes) * time.Minute
	earliest := now.Add(time.Duration(apptType.LeadTimeMinutes) * time.Minute)

	var slots []Slot
	for s := windowStart; s.Before(windowEnd); s = s.Add(step) {
		occupiedEnd := s.Add(duration + bufAfter)
		if occupiedEnd.After(windowEnd) {
			continue
		}
		if opts.EnforceLeadingBuffer && s.Add(-bufBefore).Before(windowStart) {
			continue
		}
		if s.Before(earliest) {
			continue
		}
		if overlapsAny(s, occupiedEnd, busy) {
			continue
		}
		slots = append(slots, Slot{
			Start: s,
			End:   s.Add(duration),
			Label: s.In(loc).Format("3:04 PM"),
		})
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff
		// start < b.End && b.Start < end. Malformed (inverted) busy
		// intervals can never satisfy both conditions, so they are inert.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

func minuteOfDay(day time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, loc)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

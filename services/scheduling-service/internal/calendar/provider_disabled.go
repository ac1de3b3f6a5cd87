//go:build !protogen

package calendar

import (
	"context"
	"time"
)

// BusyInterval is one committed range on the external office calendar.
type BusyInterval struct {
	StartUTC time.Time
	EndUTC   time.Time
}

// Provider reads busy time from the external calendar system. A nil
// provider means the database is the only source of busy intervals.
type Provider interface {
	ListBusy(ctx context.Context, calendarID string, fromUTC, toUTC time.Time) ([]BusyInterval, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}

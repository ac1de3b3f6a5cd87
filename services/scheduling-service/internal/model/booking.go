package model

import (
	"encoding/json"
	"time"
)

const (
	StatusConfirmed   = "confirmed"
	StatusCancelled   = "cancelled"
	StatusRescheduled = "rescheduled"
)

// Booking is one appointment row. StartTime/EndTime are the visible
// appointment; OccupiedStart/OccupiedEnd additionally cover the buffers and
// back the database overlap constraint.
type Booking struct {
	ID                string
	AppointmentTypeID string
	Persona           string
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	StartTime         time.Time
	EndTime           time.Time
	OccupiedStart     time.Time
	OccupiedEnd       time.Time
	Status            string

	// Persona-specific intake.
	PropertyAddress string
	ClosingDate     string
	AgentName       string
	CompanyName     string
	Notes           string

	// ResolvedAddress is the structured result of address resolution, kept
	// verbatim as the resolver returned it.
	ResolvedAddress json.RawMessage

	CancelledAt   *time.Time
	CancelReason  string
	RescheduledTo string
	CreatedAt     time.Time
}

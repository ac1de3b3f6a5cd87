package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/availability"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/calendar"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/catalog"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/holds"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/intake"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/model"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/outbox"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/places"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/storage"
)

type BookingHandler struct {
	catalog    *catalog.Catalog
	repo       *storage.BookingRepository
	outboxRepo *outbox.Repository
	holds      *holds.Store
	calendar   calendar.Provider
	places     places.Resolver
	logger     *slog.Logger
	loc        *time.Location
	opts       availability.Options
	now        func() time.Time
}

func NewBookingHandler(cat *catalog.Catalog, repo *storage.BookingRepository, outboxRepo *outbox.Repository, holdStore *holds.Store, calendarProvider calendar.Provider, placesResolver places.Resolver, logger *slog.Logger, loc *time.Location, opts availability.Options) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	opts.Location = loc
	return &BookingHandler{
		catalog:    cat,
		repo:       repo,
		outboxRepo: outboxRepo,
		holds:      holdStore,
		calendar:   calendarProvider,
		places:     placesResolver,
		logger:     logger,
		loc:        loc,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type typeItem struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	Location        string `json:"location"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Label     string `json:"label"`
}

type holdRequest struct {
	TypeID    string `json:"type_id"`
	StartTime string `json:"start_time"`
}

type holdResponse struct {
	HoldToken        string `json:"hold_token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

type createBookingRequest struct {
	TypeID        string `json:"type_id"`
	Persona       string `json:"persona"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	StartTime     string `json:"start_time"`
	HoldToken     string `json:"hold_token"`
	intake.Details
}

type createBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Label         string `json:"label"`
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	NewStartTime  string `json:"new_start_time"`
	HoldToken     string `json:"hold_token"`
}

type listBookingItem struct {
	AppointmentID string          `json:"appointment_id"`
	TypeID        string          `json:"type_id"`
	Persona       string          `json:"persona"`
	CustomerName  string          `json:"customer_name"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	Status        string          `json:"status"`
	Address       json.RawMessage `json:"resolved_address,omitempty"`
	CancelledAt   string          `json:"cancelled_at,omitempty"`
	RescheduledTo string          `json:"rescheduled_to,omitempty"`
	CreatedAt     string          `json:"created_at"`
}

// Types lists the appointment types a persona may book, in catalog order.
func (h *BookingHandler) Types(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	persona, err := catalog.ParsePersona(r.URL.Query().Get("persona"))
	if err != nil {
		http.Error(w, "unknown persona", http.StatusBadRequest)
		return
	}

	items := make([]typeItem, 0)
	for _, t := range h.catalog.ListEligible(persona) {
		items = append(items, typeItem{
			ID:              t.ID,
			Title:           t.Title,
			Description:     t.Description,
			DurationMinutes: t.DurationMinutes,
			Location:        string(t.Location),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Slots returns bookable slots for one appointment type on one date. An
// empty array is a normal answer, not an error.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	apptType, err := h.catalog.GetType(strings.TrimSpace(r.URL.Query().Get("type_id")))
	if err != nil {
		http.Error(w, "appointment type not found", http.StatusNotFound)
		return
	}
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(r.URL.Query().Get("date")), h.loc)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	slots, err := h.computeSlots(r.Context(), apptType, day, "")
	if err != nil {
		if errors.Is(err, errCalendarUnavailable) {
			http.Error(w, "calendar provider unavailable", http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("slot computation failed", "err", err)
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
			Label:     s.Label,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Hold reserves a slot for a few minutes while the customer fills in the
// booking form.
func (h *BookingHandler) Hold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req holdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	apptType, err := h.catalog.GetType(strings.TrimSpace(req.TypeID))
	if err != nil {
		http.Error(w, "appointment type not found", http.StatusNotFound)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ok, err := h.slotIsOpen(r.Context(), apptType, start, "")
	if err != nil {
		status, msg := slotCheckStatus(err)
		http.Error(w, msg, status)
		return
	}
	if !ok {
		http.Error(w, "slot is not available", http.StatusConflict)
		return
	}

	token, err := h.holds.Acquire(r.Context(), apptType.ID, start)
	if err != nil {
		if errors.Is(err, holds.ErrSlotHeld) {
			http.Error(w, "slot is already held", http.StatusConflict)
			return
		}
		http.Error(w, "failed to acquire hold", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, holdResponse{
		HoldToken:        token,
		ExpiresInSeconds: int(holds.DefaultTTL.Seconds()),
	})
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.TypeID = strings.TrimSpace(req.TypeID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.TypeID == "" || req.CustomerName == "" || req.CustomerEmail == "" {
		http.Error(w, "type_id, customer_name, and customer_email are required", http.StatusBadRequest)
		return
	}

	persona, err := catalog.ParsePersona(req.Persona)
	if err != nil {
		http.Error(w, "unknown persona", http.StatusBadRequest)
		return
	}
	apptType, err := h.catalog.GetType(req.TypeID)
	if err != nil {
		http.Error(w, "appointment type not found", http.StatusNotFound)
		return
	}
	if !apptType.EligibleFor(persona) {
		http.Error(w, "persona is not eligible for this appointment type", http.StatusUnprocessableEntity)
		return
	}
	if err := req.Details.Validate(persona); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			if len(rec.ResponsePayload) > 0 {
				_, _ = w.Write(rec.ResponsePayload)
				return
			}
			_ = json.NewEncoder(w).Encode(createBookingResponse{AppointmentID: rec.AppointmentID})
			return
		}
	}

	// A redeemed hold is consumed even if the transaction later fails; the
	// overlap constraint is the final authority either way.
	if req.HoldToken != "" {
		if err := h.holds.Redeem(ctx, apptType.ID, start, req.HoldToken); err != nil {
			if errors.Is(err, holds.ErrHoldNotFound) {
				http.Error(w, "hold expired or already used", http.StatusConflict)
				return
			}
			http.Error(w, "failed to redeem hold", http.StatusInternalServerError)
			return
		}
	}

	ok, err := h.slotIsOpen(ctx, apptType, start, "")
	if err != nil {
		// Do not finalize idempotency on dependency errors; the client
		// retries later with the same key.
		status, msg := slotCheckStatus(err)
		http.Error(w, msg, status)
		return
	}
	if !ok {
		if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, idempotencyKey, http.StatusConflict, "slot is no longer available") {
			_ = tx.Commit(ctx)
			return
		}
		http.Error(w, "slot is no longer available", http.StatusConflict)
		return
	}

	booking := &model.Booking{
		AppointmentTypeID: apptType.ID,
		Persona:           string(persona),
		CustomerName:      req.CustomerName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     strings.TrimSpace(req.CustomerPhone),
		StartTime:         start.UTC(),
		EndTime:           start.Add(time.Duration(apptType.DurationMinutes) * time.Minute).UTC(),
		Status:            model.StatusConfirmed,
		PropertyAddress:   req.PropertyAddress,
		ClosingDate:       req.ClosingDate,
		AgentName:         req.AgentName,
		CompanyName:       req.CompanyName,
		Notes:             req.Notes,
	}
	booking.OccupiedStart = booking.StartTime.Add(-time.Duration(apptType.BufferBeforeMinutes) * time.Minute)
	booking.OccupiedEnd = booking.EndTime.Add(time.Duration(apptType.BufferAfterMinutes) * time.Minute)
	booking.ResolvedAddress = h.resolveAddress(ctx, req.PropertyAddress)

	id, err := h.repo.Create(ctx, tx, booking)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	if err := h.insertBookingEvent(ctx, tx, "booking.appointment.confirmed.v1", id, booking, nil); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	resp := createBookingResponse{
		AppointmentID: id,
		StartTime:     booking.StartTime.Format(time.RFC3339),
		EndTime:       booking.EndTime.Format(time.RFC3339),
		Label:         booking.StartTime.In(h.loc).Format("3:04 PM"),
	}
	respBody, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetBookingForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if booking.Status == model.StatusCancelled && booking.CancelledAt != nil {
		h.writeCancelResponse(w, booking.ID, booking.CancelledAt.UTC())
		return
	}
	if booking.Status != model.StatusConfirmed {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.CancelBooking(ctx, tx, booking.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	extra := map[string]any{
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
		"reason":       req.Reason,
	}
	if err := h.insertBookingEvent(ctx, tx, "booking.appointment.cancelled.v1", booking.ID, &booking, extra); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	h.writeCancelResponse(w, booking.ID, cancelledAt.UTC())
}

// Reschedule moves a confirmed appointment to a new slot. The old row is
// retired with a pointer to its replacement so the audit trail survives.
func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	newStart, err := time.Parse(time.RFC3339, req.NewStartTime)
	if err != nil {
		http.Error(w, "invalid new_start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, err := h.repo.GetBookingForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if old.Status != model.StatusConfirmed {
		http.Error(w, "only confirmed appointments can be rescheduled", http.StatusConflict)
		return
	}
	apptType, err := h.catalog.GetType(old.AppointmentTypeID)
	if err != nil {
		http.Error(w, "appointment type no longer exists", http.StatusConflict)
		return
	}

	if req.HoldToken != "" {
		if err := h.holds.Redeem(ctx, apptType.ID, newStart, req.HoldToken); err != nil && !errors.Is(err, holds.ErrHoldNotFound) {
			http.Error(w, "failed to redeem hold", http.StatusInternalServerError)
			return
		}
	}

	// The old booking's occupied range must not block its own replacement.
	ok, err := h.slotIsOpen(ctx, apptType, newStart, old.ID)
	if err != nil {
		status, msg := slotCheckStatus(err)
		http.Error(w, msg, status)
		return
	}
	if !ok {
		http.Error(w, "slot is no longer available", http.StatusConflict)
		return
	}

	replacement := old
	replacement.ID = ""
	replacement.StartTime = newStart.UTC()
	replacement.EndTime = newStart.Add(time.Duration(apptType.DurationMinutes) * time.Minute).UTC()
	replacement.OccupiedStart = replacement.StartTime.Add(-time.Duration(apptType.BufferBeforeMinutes) * time.Minute)
	replacement.OccupiedEnd = replacement.EndTime.Add(time.Duration(apptType.BufferAfterMinutes) * time.Minute)
	replacement.Status = model.StatusConfirmed

	newID, err := h.repo.Create(ctx, tx, &replacement)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	if err := h.repo.MarkRescheduled(ctx, tx, old.ID, newID); err != nil {
		http.Error(w, "failed to retire old appointment", http.StatusInternalServerError)
		return
	}

	extra := map[string]any{
		"previous_appointment_id": old.ID,
		"previous_start_time":     old.StartTime.UTC().Format(time.RFC3339),
	}
	if err := h.insertBookingEvent(ctx, tx, "booking.appointment.rescheduled.v1", newID, &replacement, extra); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, createBookingResponse{
		AppointmentID: newID,
		StartTime:     replacement.StartTime.Format(time.RFC3339),
		EndTime:       replacement.EndTime.Format(time.RFC3339),
		Label:         replacement.StartTime.In(h.loc).Format("3:04 PM"),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	switch status {
	case "", model.StatusConfirmed, model.StatusCancelled, model.StatusRescheduled:
	default:
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	bookings, err := h.repo.ListBookings(r.Context(), status, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listBookingItem, 0, len(bookings))
	for _, b := range bookings {
		item := listBookingItem{
			AppointmentID: b.ID,
			TypeID:        b.AppointmentTypeID,
			Persona:       b.Persona,
			CustomerName:  b.CustomerName,
			StartTime:     b.StartTime.UTC().Format(time.RFC3339),
			EndTime:       b.EndTime.UTC().Format(time.RFC3339),
			Status:        b.Status,
			Address:       b.ResolvedAddress,
			RescheduledTo: b.RescheduledTo,
			CreatedAt:     b.CreatedAt.UTC().Format(time.RFC3339),
		}
		if b.CancelledAt != nil {
			item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

var errCalendarUnavailable = errors.New("calendar provider unavailable")

// slotCheckStatus maps a slot-verification failure onto the HTTP contract:
// collaborator outages are retryable (503), everything else is a 500.
func slotCheckStatus(err error) (int, string) {
	if errors.Is(err, errCalendarUnavailable) {
		return http.StatusServiceUnavailable, "calendar provider unavailable"
	}
	return http.StatusInternalServerError, "failed to verify slot"
}

// computeSlots assembles the busy set (confirmed bookings, live holds, and
// the external calendar when configured) and runs the availability engine.
func (h *BookingHandler) computeSlots(ctx context.Context, apptType catalog.AppointmentType, day time.Time, excludeID string) ([]availability.Slot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, h.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	busyRows, err := h.repo.ListBusyIntervals(ctx, dayStart, dayEnd, excludeID)
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(busyRows))
	for _, b := range busyRows {
		busy = append(busy, availability.Interval{Start: b.Start, End: b.End})
	}

	heldStarts, err := h.holds.HeldStarts(ctx, apptType.ID, dayStart)
	if err != nil {
		return nil, err
	}
	busy = append(busy, heldBusyIntervals(apptType, heldStarts)...)

	if h.calendar != nil && apptType.CalendarID != "" {
		reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		external, err := h.calendar.ListBusy(reqCtx, apptType.CalendarID, dayStart.UTC(), dayEnd.UTC())
		cancel()
		if err != nil {
			h.logger.Warn("external calendar fetch failed", "calendar_id", apptType.CalendarID, "err", err)
			return nil, errCalendarUnavailable
		}
		for _, iv := range external {
			busy = append(busy, availability.Interval{Start: iv.StartUTC, End: iv.EndUTC})
		}
	}

	return availability.ComputeSlots(apptType, dayStart, busy, h.now(), h.opts)
}

// heldBusyIntervals converts live hold starts into the same buffer-inclusive
// occupied ranges a confirmed booking takes, so a held slot blocks its
// neighbors exactly as the eventual booking will.
func heldBusyIntervals(apptType catalog.AppointmentType, starts []time.Time) []availability.Interval {
	bufBefore := time.Duration(apptType.BufferBeforeMinutes) * time.Minute
	occupied := time.Duration(apptType.DurationMinutes+apptType.BufferAfterMinutes) * time.Minute
	out := make([]availability.Interval, 0, len(starts))
	for _, s := range starts {
		out = append(out, availability.Interval{Start: s.Add(-bufBefore), End: s.Add(occupied)})
	}
	return out
}

func (h *BookingHandler) slotIsOpen(ctx context.Context, apptType catalog.AppointmentType, start time.Time, excludeID string) (bool, error) {
	slots, err := h.computeSlots(ctx, apptType, start.In(h.loc), excludeID)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// resolveAddress is best effort: a vendor outage never blocks a booking.
func (h *BookingHandler) resolveAddress(ctx context.Context, query string) json.RawMessage {
	if h.places == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	addr, err := h.places.Resolve(reqCtx, query)
	if err != nil {
		if !errors.Is(err, places.ErrNoMatch) {
			h.logger.Warn("address resolution failed", "err", err)
		}
		return nil
	}
	raw, err := json.Marshal(addr)
	if err != nil {
		return nil
	}
	return raw
}

func (h *BookingHandler) insertBookingEvent(ctx context.Context, tx pgx.Tx, eventType, appointmentID string, b *model.Booking, extra map[string]any) error {
	payload := map[string]any{
		"appointment_id": appointmentID,
		"type_id":        b.AppointmentTypeID,
		"persona":        b.Persona,
		"customer_name":  b.CustomerName,
		"customer_email": b.CustomerEmail,
		"start_time":     b.StartTime.UTC().Format(time.RFC3339),
		"end_time":       b.EndTime.UTC().Format(time.RFC3339),
	}
	if t, err := h.catalog.GetType(b.AppointmentTypeID); err == nil {
		payload["calendar_id"] = t.CalendarID
	}
	for k, v := range extra {
		payload[k] = v
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     eventType,
		Payload:       raw,
	})
}

func (h *BookingHandler) writeCancelResponse(w http.ResponseWriter, appointmentID string, cancelledAt time.Time) {
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appointmentID,
		Status:        model.StatusCancelled,
		CancelledAt:   cancelledAt.Format(time.RFC3339),
	})
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.repo.FinalizeIdempotency(ctx, tx, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

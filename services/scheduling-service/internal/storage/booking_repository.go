package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wctitle/titlebook/libs/db"
	"github.com/wctitle/titlebook/services/scheduling-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// BusyInterval is one committed occupied range, buffers included.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, appointmentID, statusCode, response)
	return err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(appointment_type_id, persona, customer_name, customer_email, customer_phone,
			start_time, end_time, occupied_start, occupied_end, status,
			property_address, closing_date, agent_name, company_name, notes, resolved_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $15, $16)
		RETURNING id
	`, b.AppointmentTypeID, b.Persona, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
		b.StartTime, b.EndTime, b.OccupiedStart, b.OccupiedEnd, b.Status,
		b.PropertyAddress, b.ClosingDate, b.AgentName, b.CompanyName, b.Notes, b.ResolvedAddress).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

const bookingColumns = `
	id, appointment_type_id, persona, customer_name, customer_email, customer_phone,
	start_time, end_time, occupied_start, occupied_end, status,
	COALESCE(property_address, ''), COALESCE(closing_date::text, ''), COALESCE(agent_name, ''),
	COALESCE(company_name, ''), COALESCE(notes, ''), resolved_address,
	cancelled_at, COALESCE(cancellation_reason, ''), COALESCE(rescheduled_to::text, ''), created_at`

func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Booking, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID)
	return scanBooking(row)
}

func (r *BookingRepository) CancelBooking(ctx context.Context, tx pgx.Tx, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

// MarkRescheduled retires the old booking and records its replacement. The
// replacement row is created separately in the same transaction, so the
// overlap constraint sees both at commit.
func (r *BookingRepository) MarkRescheduled(ctx context.Context, tx pgx.Tx, appointmentID, newAppointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'rescheduled',
			rescheduled_to = $2
		WHERE id = $1
	`, appointmentID, newAppointmentID)
	return err
}

// ListBusyIntervals returns the occupied ranges of confirmed bookings
// overlapping [start, end). excludeID is skipped when non-empty, so a
// reschedule does not collide with the booking it replaces.
func (r *BookingRepository) ListBusyIntervals(ctx context.Context, start, end time.Time, excludeID string) ([]BusyInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT occupied_start, occupied_end
		FROM appointments
		WHERE status = 'confirmed'
			AND occupied_start < $2
			AND occupied_end > $1
			AND ($3 = '' OR id::text <> $3)
		ORDER BY occupied_start ASC
	`, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BusyInterval
	for rows.Next() {
		var iv BusyInterval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *BookingRepository) ListBookings(ctx context.Context, status string, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM appointments
		WHERE ($1 = '' OR status = $1)
		ORDER BY start_time DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bookings, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var cancelledAt *time.Time
	err := row.Scan(
		&b.ID,
		&b.AppointmentTypeID,
		&b.Persona,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.StartTime,
		&b.EndTime,
		&b.OccupiedStart,
		&b.OccupiedEnd,
		&b.Status,
		&b.PropertyAddress,
		&b.ClosingDate,
		&b.AgentName,
		&b.CompanyName,
		&b.Notes,
		&b.ResolvedAddress,
		&cancelledAt,
		&b.CancelReason,
		&b.RescheduledTo,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	b.CancelledAt = cancelledAt
	return b, nil
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

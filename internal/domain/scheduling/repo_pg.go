package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const apptCols = `id, patient_id, provider_id, appointment_date, appointment_time, duration,
	type, status, reason, notes, is_telemedicine, reminder_sent, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.ProviderID, &a.AppointmentDate, &a.AppointmentTime, &a.Duration,
		&a.Type, &a.Status, &a.Reason, &a.Notes, &a.IsTelemedicine, &a.ReminderSent,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

// Create inserts the appointment. A partial unique index on
// (provider_id, appointment_date, appointment_time) over live statuses
// backs the conflict check, so a race between two bookings still resolves
// to ErrSlotTaken for the loser.
func (r *RepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	q := fmt.Sprintf(`INSERT INTO appointments (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, apptCols)
	_, err := r.pool.Exec(ctx, q,
		a.ID, a.PatientID, a.ProviderID, a.AppointmentDate, a.AppointmentTime, a.Duration,
		a.Type, a.Status, a.Reason, a.Notes, a.IsTelemedicine, a.ReminderSent,
		a.CreatedAt, a.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrSlotTaken
	}
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	q := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", apptCols)
	return scanAppointment(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	conds := []string{"true"}
	args := []interface{}{}

	if f.ProviderID != nil {
		args = append(args, *f.ProviderID)
		conds = append(conds, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Date != nil {
		args = append(args, f.Date.Format("2006-01-02"))
		conds = append(conds, fmt.Sprintf("appointment_date = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM appointments WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM appointments WHERE %s
		ORDER BY appointment_date, appointment_time LIMIT $%d OFFSET $%d`,
		apptCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appointments []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appointments = append(appointments, a)
	}
	return appointments, total, rows.Err()
}

func (r *RepoPG) Update(ctx context.Context, a *Appointment) error {
	a.UpdatedAt = time.Now().UTC()
	q := `UPDATE appointments SET provider_id = $2, appointment_date = $3, appointment_time = $4,
		duration = $5, type = $6, status = $7, reason = $8, notes = $9,
		is_telemedicine = $10, reminder_sent = $11, updated_at = $12 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		a.ID, a.ProviderID, a.AppointmentDate, a.AppointmentTime,
		a.Duration, a.Type, a.Status, a.Reason, a.Notes,
		a.IsTelemedicine, a.ReminderSent, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrSlotTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) SlotTaken(ctx context.Context, providerID uuid.UUID, date time.Time, timeOfDay string, excludeID uuid.UUID) (bool, error) {
	q := `SELECT EXISTS (
		SELECT 1 FROM appointments
		WHERE provider_id = $1 AND appointment_date = $2 AND appointment_time = $3
		  AND status NOT IN ('CANCELLED', 'NO_SHOW') AND id <> $4)`
	var taken bool
	err := r.pool.QueryRow(ctx, q, providerID, date.Format("2006-01-02"), timeOfDay, excludeID).Scan(&taken)
	return taken, err
}

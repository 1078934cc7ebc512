package prescription

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

const prescriptionCols = `id, rx_number, patient_id, provider_id, medication_name, generic_name,
	strength, dosage_form, quantity, refills, days_supply, sig, route, frequency,
	pharmacy_name, pharmacy_phone, is_controlled, dea_schedule, notes,
	status, prescribed_date, expiry_date, created_at, updated_at`

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(
		&p.ID, &p.RXNumber, &p.PatientID, &p.ProviderID, &p.MedicationName, &p.GenericName,
		&p.Strength, &p.DosageForm, &p.Quantity, &p.Refills, &p.DaysSupply, &p.Sig, &p.Route, &p.Frequency,
		&p.PharmacyName, &p.PharmacyPhone, &p.IsControlled, &p.DEASchedule, &p.Notes,
		&p.Status, &p.PrescribedDate, &p.ExpiryDate, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *RepoPG) Create(ctx context.Context, p *Prescription) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	q := fmt.Sprintf(`INSERT INTO prescriptions (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		prescriptionCols)
	_, err := r.pool.Exec(ctx, q,
		p.ID, p.RXNumber, p.PatientID, p.ProviderID, p.MedicationName, p.GenericName,
		p.Strength, p.DosageForm, p.Quantity, p.Refills, p.DaysSupply, p.Sig, p.Route, p.Frequency,
		p.PharmacyName, p.PharmacyPhone, p.IsControlled, p.DEASchedule, p.Notes,
		p.Status, p.PrescribedDate, p.ExpiryDate, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateRX
	}
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	q := fmt.Sprintf("SELECT %s FROM prescriptions WHERE id = $1", prescriptionCols)
	return scanPrescription(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	conds := []string{"true"}
	args := []interface{}{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := strings.Join(conds, " AND ")

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM prescriptions WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM prescriptions WHERE %s
		ORDER BY prescribed_date DESC LIMIT $%d OFFSET $%d`,
		prescriptionCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, err
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, total, rows.Err()
}

func (r *RepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE prescriptions SET status = $2, updated_at = now() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

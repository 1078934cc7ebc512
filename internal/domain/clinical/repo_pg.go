package clinical

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VitalSignRepoPG struct {
	pool *pgxpool.Pool
}

func NewVitalSignRepoPG(pool *pgxpool.Pool) *VitalSignRepoPG {
	return &VitalSignRepoPG{pool: pool}
}

const vitalCols = `id, patient_id, bp_systolic, bp_diastolic, heart_rate, temperature,
	respiratory_rate, oxygen_saturation, weight, height, bmi, pain_level,
	notes, recorded_by, recorded_at`

func scanVitalSign(row pgx.Row) (*VitalSign, error) {
	var v VitalSign
	err := row.Scan(
		&v.ID, &v.PatientID, &v.BloodPressureSystolic, &v.BloodPressureDiastolic, &v.HeartRate, &v.Temperature,
		&v.RespiratoryRate, &v.OxygenSaturation, &v.Weight, &v.Height, &v.BMI, &v.PainLevel,
		&v.Notes, &v.RecordedBy, &v.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &v, err
}

func (r *VitalSignRepoPG) Insert(ctx context.Context, v *VitalSign) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.RecordedAt = time.Now().UTC()

	q := fmt.Sprintf(`INSERT INTO vital_signs (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`, vitalCols)
	_, err := r.pool.Exec(ctx, q,
		v.ID, v.PatientID, v.BloodPressureSystolic, v.BloodPressureDiastolic, v.HeartRate, v.Temperature,
		v.RespiratoryRate, v.OxygenSaturation, v.Weight, v.Height, v.BMI, v.PainLevel,
		v.Notes, v.RecordedBy, v.RecordedAt,
	)
	return err
}

func (r *VitalSignRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*VitalSign, error) {
	q := fmt.Sprintf("SELECT %s FROM vital_signs WHERE patient_id = $1 ORDER BY recorded_at DESC LIMIT $2", vitalCols)
	rows, err := r.pool.Query(ctx, q, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vitals []*VitalSign
	for rows.Next() {
		v, err := scanVitalSign(rows)
		if err != nil {
			return nil, err
		}
		vitals = append(vitals, v)
	}
	return vitals, rows.Err()
}

type AllergyRepoPG struct {
	pool *pgxpool.Pool
}

func NewAllergyRepoPG(pool *pgxpool.Pool) *AllergyRepoPG {
	return &AllergyRepoPG{pool: pool}
}

const allergyCols = `id, patient_id, allergen, reaction, severity, notes, created_at`

func (r *AllergyRepoPG) Insert(ctx context.Context, a *Allergy) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now().UTC()

	q := fmt.Sprintf("INSERT INTO allergies (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)", allergyCols)
	_, err := r.pool.Exec(ctx, q, a.ID, a.PatientID, a.Allergen, a.Reaction, a.Severity, a.Notes, a.CreatedAt)
	return err
}

func (r *AllergyRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	q := fmt.Sprintf("SELECT %s FROM allergies WHERE patient_id = $1 ORDER BY created_at DESC", allergyCols)
	rows, err := r.pool.Query(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allergies []*Allergy
	for rows.Next() {
		var a Allergy
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Allergen, &a.Reaction, &a.Severity, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		allergies = append(allergies, &a)
	}
	return allergies, rows.Err()
}

func (r *AllergyRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM allergies WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type MedicationRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicationRepoPG(pool *pgxpool.Pool) *MedicationRepoPG {
	return &MedicationRepoPG{pool: pool}
}

const medicationCols = `id, patient_id, name, dosage, frequency, start_date, end_date, active, created_at`

func (r *MedicationRepoPG) Insert(ctx context.Context, m *Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now().UTC()

	q := fmt.Sprintf("INSERT INTO medications (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)", medicationCols)
	_, err := r.pool.Exec(ctx, q,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.StartDate, m.EndDate, m.Active, m.CreatedAt)
	return err
}

func (r *MedicationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	q := fmt.Sprintf("SELECT %s FROM medications WHERE patient_id = $1", medicationCols)
	if activeOnly {
		q += " AND active"
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var medications []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency,
			&m.StartDate, &m.EndDate, &m.Active, &m.CreatedAt); err != nil {
			return nil, err
		}
		medications = append(medications, &m)
	}
	return medications, rows.Err()
}

func (r *MedicationRepoPG) Discontinue(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "UPDATE medications SET active = false, end_date = now() WHERE id = $1 AND active", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

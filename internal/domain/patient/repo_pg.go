package patient

import (
	"context"
	"errors"
	"fmt"
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

const patientCols = `id, mrn, first_name, middle_name, last_name, date_of_birth, gender, blood_group,
	email, phone_number, alternate_phone, address, city, state, zip_code,
	emergency_name, emergency_phone, insurance_carrier, insurance_policy,
	ssn, active, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.MRN, &p.FirstName, &p.MiddleName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.BloodGroup,
		&p.Email, &p.PhoneNumber, &p.AlternatePhone, &p.Address, &p.City, &p.State, &p.ZipCode,
		&p.EmergencyName, &p.EmergencyPhone, &p.InsuranceCarrier, &p.InsurancePolicy,
		&p.SSN, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *RepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	q := fmt.Sprintf(`INSERT INTO patients (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`, patientCols)
	_, err := r.pool.Exec(ctx, q,
		p.ID, p.MRN, p.FirstName, p.MiddleName, p.LastName, p.DateOfBirth, p.Gender, p.BloodGroup,
		p.Email, p.PhoneNumber, p.AlternatePhone, p.Address, p.City, p.State, p.ZipCode,
		p.EmergencyName, p.EmergencyPhone, p.InsuranceCarrier, p.InsurancePolicy,
		p.SSN, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateMRN
	}
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	q := fmt.Sprintf("SELECT %s FROM patients WHERE id = $1", patientCols)
	return scanPatient(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) FindByContact(ctx context.Context, email, phone string) (*Patient, error) {
	q := fmt.Sprintf(`SELECT %s FROM patients
		WHERE active AND (($1 <> '' AND LOWER(email) = LOWER($1)) OR ($2 <> '' AND phone_number = $2))
		ORDER BY created_at LIMIT 1`, patientCols)
	return scanPatient(r.pool.QueryRow(ctx, q, email, phone))
}

func (r *RepoPG) Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error) {
	where := "WHERE active"
	args := []interface{}{}
	if query != "" {
		where += ` AND (first_name ILIKE $1 OR last_name ILIKE $1 OR mrn ILIKE $1
			OR email ILIKE $1 OR phone_number LIKE $1)`
		args = append(args, "%"+query+"%")
	}

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM patients %s", where)
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM patients %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		patientCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *RepoPG) Update(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now().UTC()
	q := `UPDATE patients SET first_name = $2, middle_name = $3, last_name = $4, date_of_birth = $5,
		gender = $6, blood_group = $7, email = $8, phone_number = $9, alternate_phone = $10,
		address = $11, city = $12, state = $13, zip_code = $14,
		emergency_name = $15, emergency_phone = $16, insurance_carrier = $17, insurance_policy = $18,
		ssn = $19, updated_at = $20
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		p.ID, p.FirstName, p.MiddleName, p.LastName, p.DateOfBirth,
		p.Gender, p.BloodGroup, p.Email, p.PhoneNumber, p.AlternatePhone,
		p.Address, p.City, p.State, p.ZipCode,
		p.EmergencyName, p.EmergencyPhone, p.InsuranceCarrier, p.InsurancePolicy,
		p.SSN, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE patients SET active = false, updated_at = now() WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const providerCols = `id, first_name, last_name, specialty, npi_number, license_number,
	email, phone_number, accepting_new_patients, consultation_fee, active, created_at, updated_at`

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Specialty, &p.NPINumber, &p.LicenseNumber,
		&p.Email, &p.PhoneNumber, &p.AcceptingNewPatients, &p.ConsultationFee,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *RepoPG) Create(ctx context.Context, p *Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	q := fmt.Sprintf(`INSERT INTO providers (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, providerCols)
	_, err := r.pool.Exec(ctx, q,
		p.ID, p.FirstName, p.LastName, p.Specialty, p.NPINumber, p.LicenseNumber,
		p.Email, p.PhoneNumber, p.AcceptingNewPatients, p.ConsultationFee,
		p.Active, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	q := fmt.Sprintf("SELECT %s FROM providers WHERE id = $1", providerCols)
	return scanProvider(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) ListActive(ctx context.Context) ([]*Provider, error) {
	q := fmt.Sprintf("SELECT %s FROM providers WHERE active ORDER BY last_name, first_name", providerCols)
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

func (r *RepoPG) Update(ctx context.Context, p *Provider) error {
	p.UpdatedAt = time.Now().UTC()
	q := `UPDATE providers SET first_name = $2, last_name = $3, specialty = $4, npi_number = $5,
		license_number = $6, email = $7, phone_number = $8, accepting_new_patients = $9,
		consultation_fee = $10, updated_at = $11 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		p.ID, p.FirstName, p.LastName, p.Specialty, p.NPINumber,
		p.LicenseNumber, p.Email, p.PhoneNumber, p.AcceptingNewPatients,
		p.ConsultationFee, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE providers SET active = false, updated_at = now() WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

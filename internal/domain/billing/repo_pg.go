package billing

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

const invoiceCols = `id, invoice_number, patient_id, service_date, cpt_codes, cpt_descriptions,
	icd10_codes, subtotal, tax, discount, total_amount, status, notes, due_date, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.PatientID, &inv.ServiceDate, &inv.CPTCodes, &inv.CPTDescriptions,
		&inv.ICD10Codes, &inv.Subtotal, &inv.Tax, &inv.Discount, &inv.TotalAmount,
		&inv.Status, &inv.Notes, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &inv, err
}

func (r *RepoPG) Create(ctx context.Context, inv *Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	q := fmt.Sprintf(`INSERT INTO invoices (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`, invoiceCols)
	_, err := r.pool.Exec(ctx, q,
		inv.ID, inv.InvoiceNumber, inv.PatientID, inv.ServiceDate, inv.CPTCodes, inv.CPTDescriptions,
		inv.ICD10Codes, inv.Subtotal, inv.Tax, inv.Discount, inv.TotalAmount,
		inv.Status, inv.Notes, inv.DueDate, inv.CreatedAt, inv.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateInvoice
	}
	return err
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	q := fmt.Sprintf("SELECT %s FROM invoices WHERE id = $1", invoiceCols)
	return scanInvoice(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
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
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM invoices WHERE %s", where)
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

func (r *RepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package billing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("billing: invoice not found")
	ErrDuplicateInvoice = errors.New("billing: invoice number already assigned")
)

// Filter narrows invoice listings. Nil/empty fields are ignored.
type Filter struct {
	PatientID *uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

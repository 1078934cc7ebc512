package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("patient: not found")
	ErrDuplicateMRN = errors.New("patient: mrn already assigned")
)

// Repository persists patient records. Delete is soft: rows are marked
// inactive and drop out of lists, but the record and its audit trail remain.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	FindByContact(ctx context.Context, email, phone string) (*Patient, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("prescription: not found")
	ErrDuplicateRX = errors.New("prescription: rx number already assigned")
)

// Filter narrows prescription listings. Nil/empty fields are ignored.
type Filter struct {
	PatientID *uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

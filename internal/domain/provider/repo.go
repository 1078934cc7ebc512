package provider

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("provider: not found")

// Repository persists provider profiles.
type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListActive(ctx context.Context) ([]*Provider, error)
	Update(ctx context.Context, p *Provider) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("scheduling: appointment not found")
	ErrSlotTaken = errors.New("scheduling: time slot already booked")
)

// Filter narrows appointment listings. Nil/empty fields are ignored.
type Filter struct {
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	Date       *time.Time
	Status     string
}

// Repository persists appointments. Create returns ErrSlotTaken when the
// provider already has a live appointment at the same date and time.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	Update(ctx context.Context, a *Appointment) error
	SlotTaken(ctx context.Context, providerID uuid.UUID, date time.Time, timeOfDay string, excludeID uuid.UUID) (bool, error)
}

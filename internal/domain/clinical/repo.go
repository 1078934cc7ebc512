package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("clinical: not found")

// vitalsHistoryLimit caps how many readings a history query returns.
const vitalsHistoryLimit = 50

type VitalSignRepository interface {
	Insert(ctx context.Context, v *VitalSign) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*VitalSign, error)
}

type AllergyRepository interface {
	Insert(ctx context.Context, a *Allergy) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type MedicationRepository interface {
	Insert(ctx context.Context, m *Medication) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error)
	Discontinue(ctx context.Context, id uuid.UUID) error
}

package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
)

// rxRetries bounds the retry loop for RX number collisions.
const rxRetries = 3

// ValidationError carries every problem with a prescription payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "prescription: invalid input: " + strings.Join(e.Problems, "; ")
}

// Input is the prescribing payload.
type Input struct {
	PatientID      string `json:"patientId"`
	ProviderID     string `json:"providerId"`
	MedicationName string `json:"medicationName"`
	GenericName    string `json:"genericName"`
	Strength       string `json:"strength"`
	DosageForm     string `json:"dosageForm"`
	Quantity       int    `json:"quantity"`
	Refills        int    `json:"refills"`
	DaysSupply     int    `json:"daysSupply"`
	Sig            string `json:"sig"`
	Route          string `json:"route"`
	Frequency      string `json:"frequency"`
	PharmacyName   string `json:"pharmacyName"`
	PharmacyPhone  string `json:"pharmacyPhone"`
	IsControlled   bool   `json:"isControlled"`
	DEASchedule    string `json:"deaSchedule"`
	Notes          string `json:"notes"`
}

type parsedInput struct {
	patientID  uuid.UUID
	providerID uuid.UUID
}

func (in *Input) validate() ([]string, parsedInput) {
	var problems []string
	var out parsedInput
	var err error

	if out.patientID, err = uuid.Parse(in.PatientID); err != nil {
		problems = append(problems, "patient ID is required")
	}
	if out.providerID, err = uuid.Parse(in.ProviderID); err != nil {
		problems = append(problems, "provider ID is required")
	}
	if in.MedicationName == "" {
		problems = append(problems, "medication name is required")
	}
	if in.Strength == "" {
		problems = append(problems, "strength is required")
	}
	if in.DosageForm == "" {
		problems = append(problems, "dosage form is required")
	}
	if in.Quantity < 1 {
		problems = append(problems, "quantity must be at least 1")
	}
	if in.Refills < 0 || in.Refills > 11 {
		problems = append(problems, "refills must be between 0 and 11")
	}
	if in.DaysSupply < 1 {
		problems = append(problems, "days supply must be at least 1")
	}
	if in.Sig == "" {
		problems = append(problems, "instructions are required")
	}
	if in.Route == "" {
		problems = append(problems, "route is required")
	}
	if in.Frequency == "" {
		problems = append(problems, "frequency is required")
	}
	if in.IsControlled && in.DEASchedule == "" {
		problems = append(problems, "DEA schedule is required for controlled substances")
	}
	return problems, out
}

// Service implements e-prescribing: RX number assignment, the one-year
// expiry window, and status tracking through the pharmacy workflow.
type Service struct {
	repo   Repository
	audit  *audit.Service
	logger zerolog.Logger
}

func NewService(repo Repository, auditSvc *audit.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, audit: auditSvc, logger: logger}
}

// Create writes a new prescription as PENDING. The RX number carries a
// 4-digit random suffix backed by a unique constraint; on collision a fresh
// number is generated and the insert retried.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in Input, meta audit.RequestMeta) (*Prescription, error) {
	problems, parsed := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	now := time.Now().UTC()
	p := &Prescription{
		PatientID:      parsed.patientID,
		ProviderID:     parsed.providerID,
		MedicationName: in.MedicationName,
		GenericName:    in.GenericName,
		Strength:       in.Strength,
		DosageForm:     in.DosageForm,
		Quantity:       in.Quantity,
		Refills:        in.Refills,
		DaysSupply:     in.DaysSupply,
		Sig:            in.Sig,
		Route:          in.Route,
		Frequency:      in.Frequency,
		PharmacyName:   in.PharmacyName,
		PharmacyPhone:  in.PharmacyPhone,
		IsControlled:   in.IsControlled,
		DEASchedule:    in.DEASchedule,
		Notes:          in.Notes,
		Status:         StatusPending,
		PrescribedDate: now,
		ExpiryDate:     now.Add(expiryTerm),
	}

	var err error
	for attempt := 0; attempt < rxRetries; attempt++ {
		p.RXNumber = NewRXNumber(time.Now())
		err = s.repo.Create(ctx, p)
		if !errors.Is(err, ErrDuplicateRX) {
			break
		}
		s.logger.Warn().Str("rx_number", p.RXNumber).Msg("rx number collision, regenerating")
	}
	if err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionCreatePrescription, "prescription", p.ID.String(),
		fmt.Sprintf("Prescription %s: %s %s", p.RXNumber, p.MedicationName, p.Strength), meta)

	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns prescriptions matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// SetStatus moves a prescription through the pharmacy workflow.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !ValidStatus(status) {
		return &ValidationError{Problems: []string{"invalid prescription status"}}
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

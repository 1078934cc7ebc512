package billing

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

// invoiceRetries bounds the retry loop for invoice number collisions.
const invoiceRetries = 3

// ErrBadTransition marks a status change the lifecycle does not allow.
var ErrBadTransition = errors.New("billing: invalid status transition")

// ValidationError carries every problem with an invoice payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "billing: invalid input: " + strings.Join(e.Problems, "; ")
}

// Input is the invoicing payload. Amounts are passed through as billed; the
// total is recomputed as subtotal + tax - discount.
type Input struct {
	PatientID       string   `json:"patientId"`
	ServiceDate     string   `json:"serviceDate"`
	CPTCodes        []string `json:"cptCodes"`
	CPTDescriptions []string `json:"cptDescriptions"`
	ICD10Codes      []string `json:"icd10Codes"`
	Subtotal        float64  `json:"subtotal"`
	Tax             float64  `json:"tax"`
	Discount        float64  `json:"discount"`
	Notes           string   `json:"notes"`
	DueDate         string   `json:"dueDate"`
}

type parsedInput struct {
	patientID   uuid.UUID
	serviceDate time.Time
	dueDate     *time.Time
}

func (in *Input) validate() ([]string, parsedInput) {
	var problems []string
	var out parsedInput
	var err error

	if out.patientID, err = uuid.Parse(in.PatientID); err != nil {
		problems = append(problems, "patient ID is required")
	}
	if in.ServiceDate == "" {
		problems = append(problems, "service date is required")
	} else if out.serviceDate, err = time.Parse("2006-01-02", in.ServiceDate); err != nil {
		problems = append(problems, "service date must be YYYY-MM-DD")
	}
	if len(in.CPTCodes) == 0 {
		problems = append(problems, "at least one CPT code is required")
	}
	if in.Subtotal < 0 {
		problems = append(problems, "subtotal cannot be negative")
	}
	if in.Tax < 0 {
		problems = append(problems, "tax cannot be negative")
	}
	if in.Discount < 0 {
		problems = append(problems, "discount cannot be negative")
	}
	if in.DueDate != "" {
		due, err := time.Parse("2006-01-02", in.DueDate)
		if err != nil {
			problems = append(problems, "due date must be YYYY-MM-DD")
		} else {
			out.dueDate = &due
		}
	}
	return problems, out
}

// Service implements invoicing: INV number assignment, amount totals, and
// the draft/sent/paid lifecycle.
type Service struct {
	repo   Repository
	audit  *audit.Service
	logger zerolog.Logger
}

func NewService(repo Repository, auditSvc *audit.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, audit: auditSvc, logger: logger}
}

// Create writes a new invoice as DRAFT. The invoice number carries a 4-digit
// random suffix backed by a unique constraint; on collision a fresh number
// is generated and the insert retried.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in Input, meta audit.RequestMeta) (*Invoice, error) {
	problems, parsed := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	inv := &Invoice{
		PatientID:       parsed.patientID,
		ServiceDate:     parsed.serviceDate,
		CPTCodes:        in.CPTCodes,
		CPTDescriptions: in.CPTDescriptions,
		ICD10Codes:      in.ICD10Codes,
		Subtotal:        in.Subtotal,
		Tax:             in.Tax,
		Discount:        in.Discount,
		TotalAmount:     in.Subtotal + in.Tax - in.Discount,
		Status:          StatusDraft,
		Notes:           in.Notes,
		DueDate:         parsed.dueDate,
	}

	var err error
	for attempt := 0; attempt < invoiceRetries; attempt++ {
		inv.InvoiceNumber = NewInvoiceNumber(time.Now())
		err = s.repo.Create(ctx, inv)
		if !errors.Is(err, ErrDuplicateInvoice) {
			break
		}
		s.logger.Warn().Str("invoice_number", inv.InvoiceNumber).Msg("invoice number collision, regenerating")
	}
	if err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionCreateInvoice, "invoice", inv.ID.String(),
		fmt.Sprintf("Invoice %s created: %.2f", inv.InvoiceNumber, inv.TotalAmount), meta)

	return inv, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns invoices matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// SetStatus advances an invoice through its lifecycle. Transitions outside
// draft→sent→paid (or cancellation before payment) fail with
// ErrBadTransition.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) (*Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(inv.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrBadTransition, inv.Status, status)
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	inv.Status = status
	return inv, nil
}

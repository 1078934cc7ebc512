package scheduling

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/domain/patient"
)

// ValidationError carries every problem with an appointment payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "scheduling: invalid input: " + strings.Join(e.Problems, "; ")
}

// Input is the create/update payload.
type Input struct {
	PatientID       string `json:"patientId"`
	ProviderID      string `json:"providerId"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	Duration        int    `json:"duration"`
	Type            string `json:"type"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
	IsTelemedicine  bool   `json:"isTelemedicine"`
}

type parsedInput struct {
	patientID  uuid.UUID
	providerID uuid.UUID
	date       time.Time
}

func (in *Input) validate() ([]string, parsedInput) {
	var problems []string
	var out parsedInput
	var err error

	if out.patientID, err = uuid.Parse(in.PatientID); err != nil {
		problems = append(problems, "patient is required")
	}
	if out.providerID, err = uuid.Parse(in.ProviderID); err != nil {
		problems = append(problems, "provider is required")
	}
	if in.AppointmentDate == "" {
		problems = append(problems, "appointment date is required")
	} else if out.date, err = time.Parse("2006-01-02", in.AppointmentDate); err != nil {
		problems = append(problems, "appointment date must be YYYY-MM-DD")
	}
	if in.AppointmentTime == "" {
		problems = append(problems, "time is required")
	} else if _, err = time.Parse("15:04", in.AppointmentTime); err != nil {
		problems = append(problems, "time must be HH:MM")
	}
	if in.Duration < MinDuration || in.Duration > MaxDuration {
		problems = append(problems, fmt.Sprintf("duration must be between %d and %d minutes", MinDuration, MaxDuration))
	}
	if !ValidType(in.Type) {
		problems = append(problems, "invalid appointment type")
	}
	if in.Reason == "" {
		problems = append(problems, "reason is required")
	}
	return problems, out
}

// Service implements the appointment book: slot conflict detection, status
// transitions, and the public self-booking funnel.
type Service struct {
	repo     Repository
	patients *patient.Service
	audit    *audit.Service
	logger   zerolog.Logger
}

func NewService(repo Repository, patients *patient.Service, auditSvc *audit.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, patients: patients, audit: auditSvc, logger: logger}
}

// Create books an appointment. The slot is checked before the insert and the
// insert itself is guarded by a unique index, so two concurrent bookings for
// the same provider and slot cannot both succeed.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in Input, meta audit.RequestMeta) (*Appointment, error) {
	problems, parsed := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	taken, err := s.repo.SlotTaken(ctx, parsed.providerID, parsed.date, in.AppointmentTime, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	a := &Appointment{
		PatientID:       parsed.patientID,
		ProviderID:      parsed.providerID,
		AppointmentDate: parsed.date,
		AppointmentTime: in.AppointmentTime,
		Duration:        in.Duration,
		Type:            in.Type,
		Status:          StatusScheduled,
		Reason:          in.Reason,
		Notes:           in.Notes,
		IsTelemedicine:  in.IsTelemedicine || in.Type == "TELEMEDICINE",
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionCreateAppointment, "appointment", a.ID.String(),
		fmt.Sprintf("Appointment scheduled for %s at %s", in.AppointmentDate, in.AppointmentTime), meta)

	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns appointments matching the filter in calendar order.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Update reschedules or edits an appointment. Moving it to an occupied slot
// fails with ErrSlotTaken; the appointment's own slot does not count against
// itself.
func (s *Service) Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, in Input, meta audit.RequestMeta) (*Appointment, error) {
	problems, parsed := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.SlotTaken(ctx, parsed.providerID, parsed.date, in.AppointmentTime, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	existing.ProviderID = parsed.providerID
	existing.AppointmentDate = parsed.date
	existing.AppointmentTime = in.AppointmentTime
	existing.Duration = in.Duration
	existing.Type = in.Type
	existing.Reason = in.Reason
	existing.Notes = in.Notes
	existing.IsTelemedicine = in.IsTelemedicine || in.Type == "TELEMEDICINE"

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionEditAppointment, "appointment", id.String(),
		fmt.Sprintf("Appointment rescheduled to %s at %s", in.AppointmentDate, in.AppointmentTime), meta)

	return existing, nil
}

// SetStatus moves an appointment through its lifecycle.
func (s *Service) SetStatus(ctx context.Context, actorID uuid.UUID, id uuid.UUID, status string, meta audit.RequestMeta) (*Appointment, error) {
	if !ValidStatus(status) {
		return nil, &ValidationError{Problems: []string{"invalid appointment status"}}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.Status = status
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionEditAppointment, "appointment", id.String(),
		fmt.Sprintf("Appointment status changed to %s", status), meta)

	return existing, nil
}

// BookingRequest is the public funnel payload: patient contact details plus
// the desired slot.
type BookingRequest struct {
	Patient     patient.Input `json:"patient"`
	Appointment BookingSlot   `json:"appointment"`
}

type BookingSlot struct {
	ProviderID      string `json:"providerId"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	Type            string `json:"type"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

type BookingConfirmation struct {
	ConfirmationNumber string    `json:"confirmationNumber"`
	AppointmentID      uuid.UUID `json:"appointmentId"`
}

const bookingDuration = 30

// PublicBook serves unauthenticated self-scheduling. The patient is matched
// by email or phone, or registered with a fresh MRN, and the appointment is
// created as SCHEDULED with a default duration.
func (s *Service) PublicBook(ctx context.Context, req BookingRequest, meta audit.RequestMeta) (*BookingConfirmation, error) {
	slot := req.Appointment
	var problems []string
	providerID, err := uuid.Parse(slot.ProviderID)
	if err != nil {
		problems = append(problems, "provider is required")
	}
	var date time.Time
	if slot.AppointmentDate == "" {
		problems = append(problems, "appointment date is required")
	} else if date, err = time.Parse("2006-01-02", slot.AppointmentDate); err != nil {
		problems = append(problems, "appointment date must be YYYY-MM-DD")
	}
	if slot.AppointmentTime == "" {
		problems = append(problems, "time is required")
	}
	if slot.Reason == "" {
		problems = append(problems, "reason is required")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	p, err := s.patients.FindOrCreateByContact(ctx, req.Patient, meta)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.SlotTaken(ctx, providerID, date, slot.AppointmentTime, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSlotTaken
	}

	apptType := slot.Type
	if !ValidType(apptType) {
		apptType = "CONSULTATION"
	}
	a := &Appointment{
		PatientID:       p.ID,
		ProviderID:      providerID,
		AppointmentDate: date,
		AppointmentTime: slot.AppointmentTime,
		Duration:        bookingDuration,
		Type:            apptType,
		Status:          StatusScheduled,
		Reason:          slot.Reason,
		Notes:           slot.Notes,
		IsTelemedicine:  apptType == "TELEMEDICINE",
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.audit.RecordSystem(ctx, audit.ActionCreateAppointment, "appointment", a.ID.String(),
		fmt.Sprintf("Appointment self-booked for %s at %s", slot.AppointmentDate, slot.AppointmentTime), meta)

	return &BookingConfirmation{
		ConfirmationNumber: newConfirmationNumber(time.Now()),
		AppointmentID:      a.ID,
	}, nil
}

// newConfirmationNumber derives a short human-readable reference from the
// booking timestamp.
func newConfirmationNumber(now time.Time) string {
	ms := strconv.FormatInt(now.UnixMilli(), 10)
	return "APT-" + ms[len(ms)-8:]
}

package clinical

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
)

// ValidationError carries every problem with a clinical payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "clinical: invalid input: " + strings.Join(e.Problems, "; ")
}

// VitalInput is the recording payload. Absent readings stay nil.
type VitalInput struct {
	PatientID              string   `json:"patientId"`
	BloodPressureSystolic  *int     `json:"bloodPressureSystolic"`
	BloodPressureDiastolic *int     `json:"bloodPressureDiastolic"`
	HeartRate              *int     `json:"heartRate"`
	Temperature            *float64 `json:"temperature"`
	RespiratoryRate        *int     `json:"respiratoryRate"`
	OxygenSaturation       *int     `json:"oxygenSaturation"`
	Weight                 *float64 `json:"weight"`
	Height                 *float64 `json:"height"`
	PainLevel              *int     `json:"painLevel"`
	Notes                  string   `json:"notes"`
	RecordedBy             string   `json:"recordedBy"`
}

func checkRange(problems []string, name string, v, lo, hi int) []string {
	if v < lo || v > hi {
		return append(problems, fmt.Sprintf("%s must be between %d and %d", name, lo, hi))
	}
	return problems
}

func (in *VitalInput) validate() ([]string, uuid.UUID) {
	var problems []string
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		problems = append(problems, "patient ID is required")
	}
	if in.BloodPressureSystolic != nil {
		problems = checkRange(problems, "systolic pressure", *in.BloodPressureSystolic, 50, 300)
	}
	if in.BloodPressureDiastolic != nil {
		problems = checkRange(problems, "diastolic pressure", *in.BloodPressureDiastolic, 30, 200)
	}
	if in.HeartRate != nil {
		problems = checkRange(problems, "heart rate", *in.HeartRate, 30, 250)
	}
	if in.Temperature != nil && (*in.Temperature < 90 || *in.Temperature > 115) {
		problems = append(problems, "temperature must be between 90 and 115")
	}
	if in.RespiratoryRate != nil {
		problems = checkRange(problems, "respiratory rate", *in.RespiratoryRate, 8, 60)
	}
	if in.OxygenSaturation != nil {
		problems = checkRange(problems, "oxygen saturation", *in.OxygenSaturation, 70, 100)
	}
	if in.Weight != nil && (*in.Weight < 1 || *in.Weight > 1000) {
		problems = append(problems, "weight must be between 1 and 1000")
	}
	if in.Height != nil && (*in.Height < 12 || *in.Height > 96) {
		problems = append(problems, "height must be between 12 and 96")
	}
	if in.PainLevel != nil {
		problems = checkRange(problems, "pain level", *in.PainLevel, 0, 10)
	}
	return problems, patientID
}

type AllergyInput struct {
	PatientID string `json:"patientId"`
	Allergen  string `json:"allergen"`
	Reaction  string `json:"reaction"`
	Severity  string `json:"severity"`
	Notes     string `json:"notes"`
}

type MedicationInput struct {
	PatientID string `json:"patientId"`
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	StartDate string `json:"startDate"`
}

// Service covers the bedside chart: vital signs with derived BMI, the
// allergy list, and the active medication list.
type Service struct {
	vitals      VitalSignRepository
	allergies   AllergyRepository
	medications MedicationRepository
	audit       *audit.Service
	logger      zerolog.Logger
}

func NewService(vitals VitalSignRepository, allergies AllergyRepository, medications MedicationRepository,
	auditSvc *audit.Service, logger zerolog.Logger) *Service {
	return &Service{vitals: vitals, allergies: allergies, medications: medications, audit: auditSvc, logger: logger}
}

// RecordVitals stores one set of readings. BMI is derived when both weight
// and height are present; recordedBy falls back to the acting user.
func (s *Service) RecordVitals(ctx context.Context, actorID uuid.UUID, actorEmail string, in VitalInput, meta audit.RequestMeta) (*VitalSign, error) {
	problems, patientID := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	v := &VitalSign{
		PatientID:              patientID,
		BloodPressureSystolic:  in.BloodPressureSystolic,
		BloodPressureDiastolic: in.BloodPressureDiastolic,
		HeartRate:              in.HeartRate,
		Temperature:            in.Temperature,
		RespiratoryRate:        in.RespiratoryRate,
		OxygenSaturation:       in.OxygenSaturation,
		Weight:                 in.Weight,
		Height:                 in.Height,
		PainLevel:              in.PainLevel,
		Notes:                  in.Notes,
		RecordedBy:             in.RecordedBy,
	}
	if v.RecordedBy == "" {
		v.RecordedBy = actorEmail
	}
	if in.Weight != nil && in.Height != nil {
		bmi := CalculateBMI(*in.Weight, *in.Height)
		v.BMI = &bmi
	}

	if err := s.vitals.Insert(ctx, v); err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionRecordVitals, "vital_sign", v.ID.String(),
		fmt.Sprintf("Vital signs recorded for patient %s", patientID), meta)

	return v, nil
}

// VitalsHistory returns the most recent readings, newest first.
func (s *Service) VitalsHistory(ctx context.Context, patientID uuid.UUID) ([]*VitalSign, error) {
	return s.vitals.ListByPatient(ctx, patientID, vitalsHistoryLimit)
}

func (s *Service) AddAllergy(ctx context.Context, in AllergyInput) (*Allergy, error) {
	var problems []string
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		problems = append(problems, "patient ID is required")
	}
	if in.Allergen == "" {
		problems = append(problems, "allergen is required")
	}
	if !ValidSeverity(in.Severity) {
		problems = append(problems, "severity must be MILD, MODERATE, SEVERE, or LIFE_THREATENING")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	a := &Allergy{
		PatientID: patientID,
		Allergen:  in.Allergen,
		Reaction:  in.Reaction,
		Severity:  in.Severity,
		Notes:     in.Notes,
	}
	if err := s.allergies.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAllergies(ctx context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	return s.allergies.ListByPatient(ctx, patientID)
}

func (s *Service) RemoveAllergy(ctx context.Context, id uuid.UUID) error {
	return s.allergies.Delete(ctx, id)
}

func (s *Service) AddMedication(ctx context.Context, in MedicationInput) (*Medication, error) {
	var problems []string
	patientID, err := uuid.Parse(in.PatientID)
	if err != nil {
		problems = append(problems, "patient ID is required")
	}
	if in.Name == "" {
		problems = append(problems, "medication name is required")
	}
	if in.Dosage == "" {
		problems = append(problems, "dosage is required")
	}
	if in.Frequency == "" {
		problems = append(problems, "frequency is required")
	}
	start := time.Now().UTC()
	if in.StartDate != "" {
		start, err = time.Parse("2006-01-02", in.StartDate)
		if err != nil {
			problems = append(problems, "start date must be YYYY-MM-DD")
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	m := &Medication{
		PatientID: patientID,
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		StartDate: start,
		Active:    true,
	}
	if err := s.medications.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	return s.medications.ListByPatient(ctx, patientID, activeOnly)
}

func (s *Service) DiscontinueMedication(ctx context.Context, id uuid.UUID) error {
	return s.medications.Discontinue(ctx, id)
}

package clinical

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
)

type mockVitals struct {
	records []*VitalSign
}

func (m *mockVitals) Insert(_ context.Context, v *VitalSign) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.RecordedAt = time.Now()
	cp := *v
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockVitals) ListByPatient(_ context.Context, patientID uuid.UUID, limit int) ([]*VitalSign, error) {
	var out []*VitalSign
	for _, v := range m.records {
		if v.PatientID == patientID && len(out) < limit {
			out = append(out, v)
		}
	}
	return out, nil
}

type mockAllergies struct {
	records map[uuid.UUID]*Allergy
}

func (m *mockAllergies) Insert(_ context.Context, a *Allergy) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	m.records[a.ID] = &cp
	return nil
}

func (m *mockAllergies) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Allergy, error) {
	var out []*Allergy
	for _, a := range m.records {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAllergies) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

type mockMedications struct {
	records map[uuid.UUID]*Medication
}

func (m *mockMedications) Insert(_ context.Context, med *Medication) error {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	cp := *med
	m.records[med.ID] = &cp
	return nil
}

func (m *mockMedications) ListByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	var out []*Medication
	for _, med := range m.records {
		if med.PatientID != patientID {
			continue
		}
		if activeOnly && !med.Active {
			continue
		}
		out = append(out, med)
	}
	return out, nil
}

func (m *mockMedications) Discontinue(_ context.Context, id uuid.UUID) error {
	med, ok := m.records[id]
	if !ok || !med.Active {
		return ErrNotFound
	}
	med.Active = false
	return nil
}

type auditSink struct {
	entries []*audit.Entry
}

func (a *auditSink) Insert(_ context.Context, entry *audit.Entry) error {
	a.entries = append(a.entries, entry)
	return nil
}
func (a *auditSink) ListByEntity(context.Context, string, string, audit.TimeRange, int, int) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}
func (a *auditSink) ListByUser(context.Context, uuid.UUID, audit.TimeRange, int, int) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}
func (a *auditSink) List(context.Context, int, int) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}
func (a *auditSink) CountsByAction(context.Context, audit.Action, time.Time) (map[uuid.UUID]int, error) {
	return nil, nil
}
func (a *auditSink) CountByUserAction(context.Context, uuid.UUID, audit.Action, time.Time) (int, error) {
	return 0, nil
}

func newTestService() (*Service, *mockVitals, *auditSink) {
	vitals := &mockVitals{}
	sink := &auditSink{}
	svc := NewService(vitals,
		&mockAllergies{records: make(map[uuid.UUID]*Allergy)},
		&mockMedications{records: make(map[uuid.UUID]*Medication)},
		audit.NewService(sink, zerolog.Nop()), zerolog.Nop())
	return svc, vitals, sink
}

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func TestRecordVitals_DerivesBMI(t *testing.T) {
	svc, _, sink := newTestService()

	in := VitalInput{
		PatientID: uuid.New().String(),
		Weight:    floatp(150),
		Height:    floatp(65),
	}
	v, err := svc.RecordVitals(context.Background(), uuid.New(), "nurse@clinic.example", in, audit.RequestMeta{})
	if err != nil {
		t.Fatalf("RecordVitals() error: %v", err)
	}
	if v.BMI == nil || *v.BMI != 25.0 {
		t.Errorf("BMI = %v, want 25.0", v.BMI)
	}
	if v.RecordedBy != "nurse@clinic.example" {
		t.Errorf("RecordedBy = %q, want acting user's email", v.RecordedBy)
	}

	if len(sink.entries) != 1 || sink.entries[0].Action != audit.ActionRecordVitals {
		t.Errorf("expected RECORD_VITALS audit entry, got %+v", sink.entries)
	}
}

func TestRecordVitals_NoBMIWithoutHeight(t *testing.T) {
	svc, _, _ := newTestService()

	in := VitalInput{PatientID: uuid.New().String(), Weight: floatp(150)}
	v, err := svc.RecordVitals(context.Background(), uuid.New(), "", in, audit.RequestMeta{})
	if err != nil {
		t.Fatalf("RecordVitals() error: %v", err)
	}
	if v.BMI != nil {
		t.Errorf("BMI = %v, want nil when height is missing", *v.BMI)
	}
}

func TestRecordVitals_RangeValidation(t *testing.T) {
	svc, _, _ := newTestService()

	in := VitalInput{
		PatientID:             uuid.New().String(),
		BloodPressureSystolic: intp(400),
		HeartRate:             intp(10),
		PainLevel:             intp(11),
	}
	_, err := svc.RecordVitals(context.Background(), uuid.New(), "", in, audit.RequestMeta{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.Problems) != 3 {
		t.Errorf("expected 3 out-of-range problems, got %v", verr.Problems)
	}
}

func TestCalculateBMI(t *testing.T) {
	tests := []struct {
		weight, height, want float64
	}{
		{150, 65, 25.0},
		{120, 64, 20.6},
		{220, 70, 31.6},
	}
	for _, tt := range tests {
		if got := CalculateBMI(tt.weight, tt.height); got != tt.want {
			t.Errorf("CalculateBMI(%v, %v) = %v, want %v", tt.weight, tt.height, got, tt.want)
		}
	}
}

func TestBloodPressureStatus(t *testing.T) {
	tests := []struct {
		systolic, diastolic int
		want                string
	}{
		{115, 75, "Normal"},
		{125, 78, "Elevated"},
		{135, 85, "High BP Stage 1"},
		{120, 85, "High BP Stage 1"},
		{160, 100, "High BP Stage 2"},
		{185, 125, "Hypertensive Crisis"},
	}
	for _, tt := range tests {
		if got := BloodPressureStatus(tt.systolic, tt.diastolic); got != tt.want {
			t.Errorf("BloodPressureStatus(%d, %d) = %q, want %q", tt.systolic, tt.diastolic, got, tt.want)
		}
	}
}

func TestAddAllergy_SeverityValidation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.AddAllergy(context.Background(), AllergyInput{
		PatientID: uuid.New().String(),
		Allergen:  "Penicillin",
		Severity:  "CATASTROPHIC",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestMedicationLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	patientID := uuid.New()

	m, err := svc.AddMedication(context.Background(), MedicationInput{
		PatientID: patientID.String(),
		Name:      "Lisinopril",
		Dosage:    "10mg",
		Frequency: "once daily",
	})
	if err != nil {
		t.Fatalf("AddMedication() error: %v", err)
	}
	if !m.Active {
		t.Error("new medications should be active")
	}

	if err := svc.DiscontinueMedication(context.Background(), m.ID); err != nil {
		t.Fatalf("DiscontinueMedication() error: %v", err)
	}

	active, err := svc.ListMedications(context.Background(), patientID, true)
	if err != nil {
		t.Fatalf("ListMedications() error: %v", err)
	}
	if len(active) != 0 {
		t.Error("discontinued medications must not appear in the active list")
	}

	all, err := svc.ListMedications(context.Background(), patientID, false)
	if err != nil {
		t.Fatalf("ListMedications() error: %v", err)
	}
	if len(all) != 1 {
		t.Error("discontinued medications should remain in the full history")
	}
}

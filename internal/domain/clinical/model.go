package clinical

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// VitalSign is one set of readings for a patient. Optional measurements are
// pointers so an absent reading is distinguishable from zero.
type VitalSign struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patientId"`

	BloodPressureSystolic  *int     `json:"bloodPressureSystolic,omitempty"`
	BloodPressureDiastolic *int     `json:"bloodPressureDiastolic,omitempty"`
	HeartRate              *int     `json:"heartRate,omitempty"`
	Temperature            *float64 `json:"temperature,omitempty"`
	RespiratoryRate        *int     `json:"respiratoryRate,omitempty"`
	OxygenSaturation       *int     `json:"oxygenSaturation,omitempty"`
	Weight                 *float64 `json:"weight,omitempty"`
	Height                 *float64 `json:"height,omitempty"`
	BMI                    *float64 `json:"bmi,omitempty"`
	PainLevel              *int     `json:"painLevel,omitempty"`

	Notes      string    `json:"notes,omitempty"`
	RecordedBy string    `json:"recordedBy"`
	RecordedAt time.Time `json:"recordedAt"`
}

// CalculateBMI uses the imperial formula: weight in pounds over height in
// inches squared, times 703, rounded to one decimal.
func CalculateBMI(weightLbs, heightIn float64) float64 {
	bmi := weightLbs / (heightIn * heightIn) * 703
	return math.Round(bmi*10) / 10
}

// BMICategory buckets a BMI value.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal"
	case bmi < 30:
		return "Overweight"
	default:
		return "Obese"
	}
}

// BloodPressureStatus classifies a reading per the AHA tiers.
func BloodPressureStatus(systolic, diastolic int) string {
	switch {
	case systolic < 120 && diastolic < 80:
		return "Normal"
	case systolic < 130 && diastolic < 80:
		return "Elevated"
	case systolic < 140 || diastolic < 90:
		return "High BP Stage 1"
	case systolic < 180 || diastolic < 120:
		return "High BP Stage 2"
	default:
		return "Hypertensive Crisis"
	}
}

type Allergy struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patientId"`
	Allergen  string    `json:"allergen"`
	Reaction  string    `json:"reaction"`
	Severity  string    `json:"severity"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

var severities = map[string]bool{
	"MILD":             true,
	"MODERATE":         true,
	"SEVERE":           true,
	"LIFE_THREATENING": true,
}

func ValidSeverity(s string) bool { return severities[s] }

// Medication is an entry on a patient's active medication list, distinct
// from an e-prescription.
type Medication struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patientId"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}

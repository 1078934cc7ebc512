package prescription

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "PENDING"
	StatusFilled    = "FILLED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

var statuses = map[string]bool{
	StatusPending:   true,
	StatusFilled:    true,
	StatusCancelled: true,
	StatusExpired:   true,
}

func ValidStatus(s string) bool { return statuses[s] }

// NewRXNumber generates a prescription number: RX-, the millisecond
// timestamp, and a 4-digit random suffix. Uniqueness is enforced by the
// database; callers retry on collision.
func NewRXNumber(now time.Time) string {
	return fmt.Sprintf("RX-%d-%04d", now.UnixMilli(), 1000+rand.Intn(9000))
}

// expiryTerm is how long a prescription stays fillable.
const expiryTerm = 365 * 24 * time.Hour

type Prescription struct {
	ID         uuid.UUID `json:"id"`
	RXNumber   string    `json:"rxNumber"`
	PatientID  uuid.UUID `json:"patientId"`
	ProviderID uuid.UUID `json:"providerId"`

	MedicationName string `json:"medicationName"`
	GenericName    string `json:"genericName,omitempty"`
	Strength       string `json:"strength"`
	DosageForm     string `json:"dosageForm"`
	Quantity       int    `json:"quantity"`
	Refills        int    `json:"refills"`
	DaysSupply     int    `json:"daysSupply"`
	Sig            string `json:"sig"`
	Route          string `json:"route"`
	Frequency      string `json:"frequency"`

	PharmacyName  string `json:"pharmacyName,omitempty"`
	PharmacyPhone string `json:"pharmacyPhone,omitempty"`
	IsControlled  bool   `json:"isControlled"`
	DEASchedule   string `json:"deaSchedule,omitempty"`
	Notes         string `json:"notes,omitempty"`

	Status         string    `json:"status"`
	PrescribedDate time.Time `json:"prescribedDate"`
	ExpiryDate     time.Time `json:"expiryDate"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

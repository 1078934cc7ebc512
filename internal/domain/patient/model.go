package patient

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// MRNPattern matches a well-formed medical record number:
// MRN-YYYYMMDD-NNNN.
var MRNPattern = regexp.MustCompile(`^MRN-\d{8}-\d{4}$`)

// NewMRN generates a candidate medical record number. The random suffix is
// only 4 digits, so callers must be prepared for a unique-constraint
// collision and retry.
func NewMRN(now time.Time) string {
	return fmt.Sprintf("MRN-%s-%04d", now.Format("20060102"), 1000+rand.Intn(9000))
}

// Patient is a clinic patient record. SSN holds ciphertext at rest; it is
// decrypted in full only on single-record reads.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	MRN         string    `json:"mrn"`
	FirstName   string    `json:"firstName"`
	MiddleName  string    `json:"middleName,omitempty"`
	LastName    string    `json:"lastName"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	BloodGroup  string    `json:"bloodGroup,omitempty"`

	Email            string `json:"email,omitempty"`
	PhoneNumber      string `json:"phoneNumber,omitempty"`
	AlternatePhone   string `json:"alternatePhoneNumber,omitempty"`
	Address          string `json:"address,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	ZipCode          string `json:"zipCode,omitempty"`
	EmergencyName    string `json:"emergencyContactName,omitempty"`
	EmergencyPhone   string `json:"emergencyContactPhone,omitempty"`
	InsuranceCarrier string `json:"insuranceProvider,omitempty"`
	InsurancePolicy  string `json:"insurancePolicyNumber,omitempty"`

	SSN    string `json:"ssn,omitempty"`
	Active bool   `json:"active"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary is the list-view projection. It omits the long-tail demographic
// fields, and SSN appears only in masked form (XXX-XX-1234).
type Summary struct {
	ID          uuid.UUID `json:"id"`
	MRN         string    `json:"mrn"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Email       string    `json:"email,omitempty"`
	SSN         string    `json:"ssn,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Summarize projects the list view.
func (p *Patient) Summarize() Summary {
	return Summary{
		ID:          p.ID,
		MRN:         p.MRN,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth,
		Gender:      p.Gender,
		PhoneNumber: p.PhoneNumber,
		Email:       p.Email,
		CreatedAt:   p.CreatedAt,
	}
}

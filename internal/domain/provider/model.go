package provider

import (
	"time"

	"github.com/google/uuid"
)

// Provider is a clinician profile. Providers are listed on the public site,
// so the model carries a trimmed public projection alongside the full view.
type Provider struct {
	ID                   uuid.UUID `json:"id"`
	FirstName            string    `json:"firstName"`
	LastName             string    `json:"lastName"`
	Specialty            string    `json:"specialty"`
	NPINumber            string    `json:"npiNumber,omitempty"`
	LicenseNumber        string    `json:"licenseNumber,omitempty"`
	Email                string    `json:"email,omitempty"`
	PhoneNumber          string    `json:"phoneNumber,omitempty"`
	AcceptingNewPatients bool      `json:"acceptingNewPatients"`
	ConsultationFee      float64   `json:"consultationFee"`
	Active               bool      `json:"active"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// PublicView is the unauthenticated subset served to the marketing site.
type PublicView struct {
	ID                   uuid.UUID `json:"id"`
	FirstName            string    `json:"firstName"`
	LastName             string    `json:"lastName"`
	Specialty            string    `json:"specialty"`
	AcceptingNewPatients bool      `json:"acceptingNewPatients"`
	ConsultationFee      float64   `json:"consultationFee"`
}

// Public projects the unauthenticated view.
func (p *Provider) Public() PublicView {
	return PublicView{
		ID:                   p.ID,
		FirstName:            p.FirstName,
		LastName:             p.LastName,
		Specialty:            p.Specialty,
		AcceptingNewPatients: p.AcceptingNewPatients,
		ConsultationFee:      p.ConsultationFee,
	}
}

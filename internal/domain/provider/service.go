package provider

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// ValidationError carries every problem with a provider payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "provider: invalid input: " + strings.Join(e.Problems, "; ")
}

// Input is the create/update payload.
type Input struct {
	FirstName            string  `json:"firstName"`
	LastName             string  `json:"lastName"`
	Specialty            string  `json:"specialty"`
	NPINumber            string  `json:"npiNumber"`
	LicenseNumber        string  `json:"licenseNumber"`
	Email                string  `json:"email"`
	PhoneNumber          string  `json:"phoneNumber"`
	AcceptingNewPatients bool    `json:"acceptingNewPatients"`
	ConsultationFee      float64 `json:"consultationFee"`
}

func (in *Input) validate() []string {
	var problems []string
	if in.FirstName == "" {
		problems = append(problems, "first name is required")
	}
	if in.LastName == "" {
		problems = append(problems, "last name is required")
	}
	if in.Specialty == "" {
		problems = append(problems, "specialty is required")
	}
	if in.ConsultationFee < 0 {
		problems = append(problems, "consultation fee cannot be negative")
	}
	return problems
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, in Input) (*Provider, error) {
	if problems := in.validate(); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	p := &Provider{
		FirstName:            in.FirstName,
		LastName:             in.LastName,
		Specialty:            in.Specialty,
		NPINumber:            in.NPINumber,
		LicenseNumber:        in.LicenseNumber,
		Email:                strings.ToLower(strings.TrimSpace(in.Email)),
		PhoneNumber:          in.PhoneNumber,
		AcceptingNewPatients: in.AcceptingNewPatients,
		ConsultationFee:      in.ConsultationFee,
		Active:               true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every active provider, ordered by name.
func (s *Service) List(ctx context.Context) ([]*Provider, error) {
	return s.repo.ListActive(ctx)
}

// PublicList returns the unauthenticated directory for the marketing site.
func (s *Service) PublicList(ctx context.Context) ([]PublicView, error) {
	providers, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PublicView, 0, len(providers))
	for _, p := range providers {
		views = append(views, p.Public())
	}
	return views, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Provider, error) {
	if problems := in.validate(); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing.FirstName = in.FirstName
	existing.LastName = in.LastName
	existing.Specialty = in.Specialty
	existing.NPINumber = in.NPINumber
	existing.LicenseNumber = in.LicenseNumber
	existing.Email = strings.ToLower(strings.TrimSpace(in.Email))
	existing.PhoneNumber = in.PhoneNumber
	existing.AcceptingNewPatients = in.AcceptingNewPatients
	existing.ConsultationFee = in.ConsultationFee

	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

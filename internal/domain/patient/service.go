package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/platform/crypto"
)

// mrnRetries bounds the retry loop for MRN collisions. The suffix space is
// 9000 values per day, so more than a couple of retries means something is
// wrong with the table, not the generator.
const mrnRetries = 3

// ValidationError carries every problem with a patient payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "patient: invalid input: " + strings.Join(e.Problems, "; ")
}

// Input is the create/update payload.
type Input struct {
	FirstName   string `json:"firstName"`
	MiddleName  string `json:"middleName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	BloodGroup  string `json:"bloodGroup"`

	Email          string `json:"email"`
	PhoneNumber    string `json:"phoneNumber"`
	AlternatePhone string `json:"alternatePhoneNumber"`
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	ZipCode        string `json:"zipCode"`

	EmergencyName    string `json:"emergencyContactName"`
	EmergencyPhone   string `json:"emergencyContactPhone"`
	InsuranceCarrier string `json:"insuranceProvider"`
	InsurancePolicy  string `json:"insurancePolicyNumber"`

	SSN string `json:"ssn"`
}

func (in *Input) validate() ([]string, time.Time) {
	var problems []string
	if in.FirstName == "" {
		problems = append(problems, "first name is required")
	}
	if in.LastName == "" {
		problems = append(problems, "last name is required")
	}
	if in.Gender == "" {
		problems = append(problems, "gender is required")
	}
	if in.Email != "" && !strings.Contains(in.Email, "@") {
		problems = append(problems, "email is not valid")
	}

	var dob time.Time
	if in.DateOfBirth == "" {
		problems = append(problems, "date of birth is required")
	} else {
		var err error
		dob, err = time.Parse("2006-01-02", in.DateOfBirth)
		if err != nil {
			problems = append(problems, "date of birth must be YYYY-MM-DD")
		} else if dob.After(time.Now()) {
			problems = append(problems, "date of birth cannot be in the future")
		}
	}
	return problems, dob
}

// Service implements the patient registry: MRN assignment, SSN field
// encryption, search, and the audit trail for every access.
type Service struct {
	repo      Repository
	encryptor *crypto.FieldEncryptor
	audit     *audit.Service
	logger    zerolog.Logger
}

func NewService(repo Repository, encryptor *crypto.FieldEncryptor, auditSvc *audit.Service, logger zerolog.Logger) *Service {
	return &Service{repo: repo, encryptor: encryptor, audit: auditSvc, logger: logger}
}

// Create registers a patient. The MRN carries a 4-digit random suffix backed
// by a unique constraint; on collision a fresh MRN is generated and the
// insert retried.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, in Input, meta audit.RequestMeta) (*Patient, error) {
	problems, dob := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	p := s.fromInput(in)
	p.DateOfBirth = dob
	p.Active = true

	if in.SSN != "" {
		ciphertext, err := s.encryptor.Encrypt(in.SSN)
		if err != nil {
			return nil, fmt.Errorf("patient: encrypt ssn: %w", err)
		}
		p.SSN = ciphertext
	}

	var err error
	for attempt := 0; attempt < mrnRetries; attempt++ {
		p.MRN = NewMRN(time.Now())
		err = s.repo.Create(ctx, p)
		if !errors.Is(err, ErrDuplicateMRN) {
			break
		}
		s.logger.Warn().Str("mrn", p.MRN).Msg("mrn collision, regenerating")
	}
	if err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionCreatePatient, "patient", p.ID.String(),
		fmt.Sprintf("Patient created: %s %s (%s)", p.FirstName, p.LastName, p.MRN), meta)

	out := *p
	out.SSN = in.SSN
	return &out, nil
}

// Get returns a single record with the SSN decrypted for display. A
// ciphertext that no longer decrypts renders as the redaction placeholder
// rather than failing the read.
func (s *Service) Get(ctx context.Context, actorID uuid.UUID, id uuid.UUID, meta audit.RequestMeta) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.SSN = s.encryptor.DecryptOrRedact(p.SSN)

	s.audit.RecordAction(ctx, actorID, audit.ActionViewPatient, "patient", p.ID.String(),
		fmt.Sprintf("Viewed patient record: %s %s", p.FirstName, p.LastName), meta)

	return p, nil
}

// Search returns active patients matching the query (name, MRN, email, or
// phone), newest first, as list summaries. SSNs are masked to the last four
// digits; a ciphertext that no longer decrypts masks to the redaction
// placeholder.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]Summary, int, error) {
	patients, total, err := s.repo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]Summary, 0, len(patients))
	for _, p := range patients {
		sum := p.Summarize()
		sum.SSN = crypto.MaskSSN(s.encryptor.DecryptOrRedact(p.SSN))
		summaries = append(summaries, sum)
	}
	return summaries, total, nil
}

// Update overwrites a patient's demographics. A new SSN value is encrypted;
// an empty SSN in the payload leaves the stored value untouched.
func (s *Service) Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, in Input, meta audit.RequestMeta) (*Patient, error) {
	problems, dob := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p := s.fromInput(in)
	p.ID = existing.ID
	p.MRN = existing.MRN
	p.DateOfBirth = dob
	p.Active = existing.Active
	p.CreatedAt = existing.CreatedAt

	if in.SSN != "" {
		ciphertext, err := s.encryptor.Encrypt(in.SSN)
		if err != nil {
			return nil, fmt.Errorf("patient: encrypt ssn: %w", err)
		}
		p.SSN = ciphertext
	} else {
		p.SSN = existing.SSN
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionEditPatient, "patient", p.ID.String(),
		fmt.Sprintf("Updated patient record: %s %s", p.FirstName, p.LastName), meta)

	out := *p
	out.SSN = s.encryptor.DecryptOrRedact(out.SSN)
	return &out, nil
}

// Delete marks a patient inactive. The row and its audit history remain.
func (s *Service) Delete(ctx context.Context, actorID uuid.UUID, id uuid.UUID, meta audit.RequestMeta) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	s.audit.RecordAction(ctx, actorID, audit.ActionDeletePatient, "patient", id.String(), "", meta)
	return nil
}

// FindOrCreateByContact locates an existing active patient by email or
// phone, creating a minimal record when none matches. Used by the public
// booking funnel.
func (s *Service) FindOrCreateByContact(ctx context.Context, in Input, meta audit.RequestMeta) (*Patient, error) {
	if in.Email == "" && in.PhoneNumber == "" {
		return nil, &ValidationError{Problems: []string{"email or phone number is required"}}
	}

	p, err := s.repo.FindByContact(ctx, in.Email, in.PhoneNumber)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	problems, dob := in.validate()
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	created := s.fromInput(in)
	created.DateOfBirth = dob
	created.Active = true

	for attempt := 0; attempt < mrnRetries; attempt++ {
		created.MRN = NewMRN(time.Now())
		err = s.repo.Create(ctx, created)
		if !errors.Is(err, ErrDuplicateMRN) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	s.audit.RecordSystem(ctx, audit.ActionCreatePatient, "patient", created.ID.String(),
		fmt.Sprintf("Patient self-registered via booking: %s %s (%s)", created.FirstName, created.LastName, created.MRN), meta)

	return created, nil
}

func (s *Service) fromInput(in Input) *Patient {
	return &Patient{
		FirstName:        in.FirstName,
		MiddleName:       in.MiddleName,
		LastName:         in.LastName,
		Gender:           in.Gender,
		BloodGroup:       in.BloodGroup,
		Email:            strings.ToLower(strings.TrimSpace(in.Email)),
		PhoneNumber:      in.PhoneNumber,
		AlternatePhone:   in.AlternatePhone,
		Address:          in.Address,
		City:             in.City,
		State:            in.State,
		ZipCode:          in.ZipCode,
		EmergencyName:    in.EmergencyName,
		EmergencyPhone:   in.EmergencyPhone,
		InsuranceCarrier: in.InsuranceCarrier,
		InsurancePolicy:  in.InsurancePolicy,
	}
}

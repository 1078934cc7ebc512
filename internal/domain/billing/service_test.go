package billing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
)

type mockRepo struct {
	invoices   map[uuid.UUID]*Invoice
	numbers    map[string]bool
	failNums   int // reject this many creates with ErrDuplicateInvoice
	createSeen int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		numbers:  make(map[string]bool),
	}
}

func (m *mockRepo) Create(_ context.Context, inv *Invoice) error {
	m.createSeen++
	if m.failNums > 0 {
		m.failNums--
		return ErrDuplicateInvoice
	}
	if m.numbers[inv.InvoiceNumber] {
		return ErrDuplicateInvoice
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	m.numbers[inv.InvoiceNumber] = true
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if f.PatientID != nil && inv.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		cp := *inv
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	inv, ok := m.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
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

func newTestService(repo Repository) (*Service, *auditSink) {
	sink := &auditSink{}
	return NewService(repo, audit.NewService(sink, zerolog.Nop()), zerolog.Nop()), sink
}

func validInput() Input {
	return Input{
		PatientID:       uuid.New().String(),
		ServiceDate:     "2026-08-20",
		CPTCodes:        []string{"99213", "90471"},
		CPTDescriptions: []string{"Office visit", "Immunization admin"},
		Subtotal:        250,
		Tax:             20,
		Discount:        50,
	}
}

var invoicePattern = regexp.MustCompile(`^INV-\d{8}-\d{4}$`)

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	svc, sink := newTestService(repo)

	inv, err := svc.Create(context.Background(), uuid.New(), validInput(), audit.RequestMeta{})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if !invoicePattern.MatchString(inv.InvoiceNumber) {
		t.Errorf("InvoiceNumber = %q, want INV-YYYYMMDD-NNNN", inv.InvoiceNumber)
	}
	if inv.Status != StatusDraft {
		t.Errorf("Status = %q, want DRAFT", inv.Status)
	}
	if inv.TotalAmount != 220 {
		t.Errorf("TotalAmount = %v, want subtotal + tax - discount = 220", inv.TotalAmount)
	}

	if len(sink.entries) != 1 || sink.entries[0].Action != audit.ActionCreateInvoice {
		t.Errorf("expected CREATE_INVOICE audit entry, got %+v", sink.entries)
	}
}

func TestCreate_RetriesOnNumberCollision(t *testing.T) {
	repo := newMockRepo()
	repo.failNums = 2
	svc, _ := newTestService(repo)

	if _, err := svc.Create(context.Background(), uuid.New(), validInput(), audit.RequestMeta{}); err != nil {
		t.Fatalf("Create() error after collisions: %v", err)
	}
	if repo.createSeen != 3 {
		t.Errorf("createSeen = %d, want 3", repo.createSeen)
	}
}

func TestCreate_GivesUpAfterRetries(t *testing.T) {
	repo := newMockRepo()
	repo.failNums = 10
	svc, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), uuid.New(), validInput(), audit.RequestMeta{})
	if !errors.Is(err, ErrDuplicateInvoice) {
		t.Fatalf("error = %v, want ErrDuplicateInvoice after exhausting retries", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(newMockRepo())

	in := Input{Subtotal: -1}
	_, err := svc.Create(context.Background(), uuid.New(), in, audit.RequestMeta{})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if len(verr.Problems) != 4 {
		t.Errorf("expected patient, service date, CPT, and subtotal problems, got %v", verr.Problems)
	}
}

func TestStatusLifecycle(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)

	inv, err := svc.Create(context.Background(), uuid.New(), validInput(), audit.RequestMeta{})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Draft cannot jump straight to paid.
	if _, err := svc.SetStatus(context.Background(), inv.ID, StatusPaid); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("error = %v, want ErrBadTransition", err)
	}

	if _, err := svc.SetStatus(context.Background(), inv.ID, StatusSent); err != nil {
		t.Fatalf("SetStatus(SENT) error: %v", err)
	}
	paid, err := svc.SetStatus(context.Background(), inv.ID, StatusPaid)
	if err != nil {
		t.Fatalf("SetStatus(PAID) error: %v", err)
	}
	if paid.Status != StatusPaid {
		t.Errorf("Status = %q, want PAID", paid.Status)
	}

	// Paid is terminal.
	if _, err := svc.SetStatus(context.Background(), inv.ID, StatusCancelled); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("error = %v, want ErrBadTransition from PAID", err)
	}
}

func TestNewInvoiceNumber(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		n := NewInvoiceNumber(now)
		if !invoicePattern.MatchString(n) {
			t.Fatalf("NewInvoiceNumber() = %q, want INV-YYYYMMDD-NNNN", n)
		}
		if n[:12] != "INV-20260828" {
			t.Fatalf("NewInvoiceNumber() = %q, want date prefix INV-20260828", n)
		}
	}
}

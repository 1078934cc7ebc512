package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockRepo struct {
	entries   []*Entry
	insertErr error
	counts    map[Action]map[uuid.UUID]int
	lastRange TimeRange
}

func (m *mockRepo) Insert(_ context.Context, entry *Entry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockRepo) inRange(e *Entry, rng TimeRange) bool {
	if !rng.From.IsZero() && e.CreatedAt.Before(rng.From) {
		return false
	}
	if !rng.To.IsZero() && e.CreatedAt.After(rng.To) {
		return false
	}
	return true
}

func (m *mockRepo) ListByEntity(_ context.Context, entityType, entityID string, rng TimeRange, _, _ int) ([]*Entry, int, error) {
	m.lastRange = rng
	var out []*Entry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID && m.inRange(e, rng) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID uuid.UUID, rng TimeRange, _, _ int) ([]*Entry, int, error) {
	m.lastRange = rng
	var out []*Entry
	for _, e := range m.entries {
		if e.UserID != nil && *e.UserID == userID && m.inRange(e, rng) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) List(_ context.Context, _, _ int) ([]*Entry, int, error) {
	return m.entries, len(m.entries), nil
}

func (m *mockRepo) CountsByAction(_ context.Context, action Action, _ time.Time) (map[uuid.UUID]int, error) {
	if m.counts == nil {
		return map[uuid.UUID]int{}, nil
	}
	return m.counts[action], nil
}

func (m *mockRepo) CountByUserAction(_ context.Context, userID uuid.UUID, action Action, _ time.Time) (int, error) {
	if m.counts == nil {
		return 0, nil
	}
	return m.counts[action][userID], nil
}

func newTestService(repo *mockRepo) *Service {
	return NewService(repo, zerolog.Nop())
}

func TestRecordAction(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)
	userID := uuid.New()

	svc.RecordAction(context.Background(), userID, ActionViewPatient, "patient", "p-1", "", RequestMeta{IPAddress: "10.0.0.1"})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.UserID == nil || *e.UserID != userID {
		t.Errorf("unexpected actor: %v", e.UserID)
	}
	if e.Action != ActionViewPatient {
		t.Errorf("action = %q, want VIEW_PATIENT", e.Action)
	}
	if e.IPAddress != "10.0.0.1" {
		t.Errorf("ip = %q, want 10.0.0.1", e.IPAddress)
	}
}

func TestRecord_SwallowsStorageErrors(t *testing.T) {
	repo := &mockRepo{insertErr: errors.New("disk full")}
	svc := newTestService(repo)

	// Must not panic or propagate: audit is best-effort.
	svc.RecordAction(context.Background(), uuid.New(), ActionLogin, "user", "u-1", "", RequestMeta{})
}

func TestRecordFailedLogin_UnknownAccountHasNoActor(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)

	svc.RecordFailedLogin(context.Background(), nil, "ghost@clinic.example", RequestMeta{})

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.UserID != nil {
		t.Error("expected nil actor for unknown account")
	}
	if e.ActorLabel() != SystemActor {
		t.Errorf("ActorLabel() = %q, want SYSTEM", e.ActorLabel())
	}
	if e.EntityID != "ghost@clinic.example" {
		t.Errorf("entity id = %q, want the attempted email", e.EntityID)
	}
}

func TestRecordDenied(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)
	userID := uuid.New()

	svc.RecordDenied(context.Background(), userID.String(), "DELETE", "/api/v1/patients/:id", "203.0.113.7", "chart-client/2.1")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	e := repo.entries[0]
	if e.Action != ActionUnauthorized {
		t.Errorf("action = %q, want UNAUTHORIZED_ACCESS", e.Action)
	}
	if e.UserID == nil || *e.UserID != userID {
		t.Errorf("unexpected actor: %v", e.UserID)
	}
	if e.IPAddress != "203.0.113.7" {
		t.Errorf("ip = %q, want 203.0.113.7", e.IPAddress)
	}
	if e.UserAgent != "chart-client/2.1" {
		t.Errorf("user agent = %q, want chart-client/2.1", e.UserAgent)
	}
	if e.Metadata["method"] != "DELETE" || e.Metadata["path"] != "/api/v1/patients/:id" {
		t.Errorf("unexpected metadata: %v", e.Metadata)
	}
}

func TestRecordDenied_UnparseableActor(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)

	svc.RecordDenied(context.Background(), "", "GET", "/api/v1/audit", "", "")

	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.entries))
	}
	if repo.entries[0].UserID != nil {
		t.Error("expected nil actor when user id cannot be parsed")
	}
}

func TestDetectAnomalies_ExcessivePatientViews(t *testing.T) {
	heavy := uuid.New()
	normal := uuid.New()
	repo := &mockRepo{counts: map[Action]map[uuid.UUID]int{
		ActionViewPatient: {heavy: 150, normal: 30},
	}}
	svc := newTestService(repo)

	anomalies, err := svc.DetectAnomalies(context.Background())
	if err != nil {
		t.Fatalf("DetectAnomalies() error: %v", err)
	}

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.UserID != heavy || a.Action != ActionViewPatient || a.Count != 150 {
		t.Errorf("unexpected anomaly: %+v", a)
	}
}

func TestDetectAnomalies_RepeatedFailedLogins(t *testing.T) {
	target := uuid.New()
	repo := &mockRepo{counts: map[Action]map[uuid.UUID]int{
		ActionFailedLogin: {target: 8},
	}}
	svc := newTestService(repo)

	anomalies, err := svc.DetectAnomalies(context.Background())
	if err != nil {
		t.Fatalf("DetectAnomalies() error: %v", err)
	}

	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].Action != ActionFailedLogin {
		t.Errorf("action = %q, want FAILED_LOGIN", anomalies[0].Action)
	}
}

func TestDetectAnomalies_ThresholdIsExclusive(t *testing.T) {
	repo := &mockRepo{counts: map[Action]map[uuid.UUID]int{
		ActionViewPatient: {uuid.New(): ViewPatientThreshold},
		ActionFailedLogin: {uuid.New(): FailedLoginThreshold},
	}}
	svc := newTestService(repo)

	anomalies, err := svc.DetectAnomalies(context.Background())
	if err != nil {
		t.Fatalf("DetectAnomalies() error: %v", err)
	}
	if len(anomalies) != 0 {
		t.Errorf("expected no anomalies at exactly the threshold, got %d", len(anomalies))
	}
}

func TestQueryByEntity(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)
	userID := uuid.New()

	svc.RecordAction(context.Background(), userID, ActionViewPatient, "patient", "p-1", "", RequestMeta{})
	svc.RecordAction(context.Background(), userID, ActionEditPatient, "patient", "p-1", "", RequestMeta{})
	svc.RecordAction(context.Background(), userID, ActionViewPatient, "patient", "p-2", "", RequestMeta{})

	entries, total, err := svc.QueryByEntity(context.Background(), "patient", "p-1", TimeRange{}, 20, 0)
	if err != nil {
		t.Fatalf("QueryByEntity() error: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Errorf("got %d entries (total %d), want 2", len(entries), total)
	}
}

func TestQueryByEntity_TimeRange(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)

	old := &Entry{EntityType: "patient", EntityID: "p-1", Action: ActionViewPatient,
		CreatedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	recent := &Entry{EntityType: "patient", EntityID: "p-1", Action: ActionEditPatient,
		CreatedAt: time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)}
	repo.entries = []*Entry{old, recent}

	rng := TimeRange{From: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	entries, total, err := svc.QueryByEntity(context.Background(), "patient", "p-1", rng, 20, 0)
	if err != nil {
		t.Fatalf("QueryByEntity() error: %v", err)
	}
	if total != 1 || len(entries) != 1 || entries[0].Action != ActionEditPatient {
		t.Errorf("got %d entries (total %d), want only the recent edit", len(entries), total)
	}
	if !repo.lastRange.From.Equal(rng.From) {
		t.Errorf("range not passed through: %v", repo.lastRange)
	}
}

func TestDetectUserAnomalies(t *testing.T) {
	heavy := uuid.New()
	quiet := uuid.New()
	repo := &mockRepo{counts: map[Action]map[uuid.UUID]int{
		ActionViewPatient: {heavy: 180, quiet: 12},
		ActionFailedLogin: {heavy: 9},
	}}
	svc := newTestService(repo)

	suspicious, reasons, err := svc.DetectUserAnomalies(context.Background(), heavy)
	if err != nil {
		t.Fatalf("DetectUserAnomalies() error: %v", err)
	}
	if !suspicious {
		t.Error("expected heavy user to be flagged")
	}
	if len(reasons) != 2 {
		t.Errorf("expected 2 reasons, got %v", reasons)
	}

	suspicious, reasons, err = svc.DetectUserAnomalies(context.Background(), quiet)
	if err != nil {
		t.Fatalf("DetectUserAnomalies() error: %v", err)
	}
	if suspicious || len(reasons) != 0 {
		t.Errorf("expected quiet user to be clean, got suspicious=%v reasons=%v", suspicious, reasons)
	}
}

func TestDetectUserAnomalies_ThresholdIsExclusive(t *testing.T) {
	borderline := uuid.New()
	repo := &mockRepo{counts: map[Action]map[uuid.UUID]int{
		ActionViewPatient: {borderline: ViewPatientThreshold},
		ActionFailedLogin: {borderline: FailedLoginThreshold},
	}}
	svc := newTestService(repo)

	suspicious, reasons, err := svc.DetectUserAnomalies(context.Background(), borderline)
	if err != nil {
		t.Fatalf("DetectUserAnomalies() error: %v", err)
	}
	if suspicious || len(reasons) != 0 {
		t.Errorf("expected no flag at exactly the threshold, got %v", reasons)
	}
}

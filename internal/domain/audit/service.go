package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Anomaly detection thresholds.
const (
	ViewPatientThreshold = 100
	ViewPatientWindow    = 24 * time.Hour
	FailedLoginThreshold = 5
	FailedLoginWindow    = time.Hour
)

// Service writes and queries the audit trail. Writes are best-effort: a
// failed insert is logged but never surfaces to the caller, so an audit
// outage cannot take down patient care operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record appends an entry to the audit trail. Storage errors are swallowed
// after logging.
func (s *Service) Record(ctx context.Context, entry *Entry) {
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", string(entry.Action)).
			Str("entity_type", entry.EntityType).
			Str("entity_id", entry.EntityID).
			Msg("failed to write audit entry")
	}
}

// RequestMeta carries the client network details attached to audit entries.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// RecordAction appends an entry for an authenticated actor.
func (s *Service) RecordAction(ctx context.Context, userID uuid.UUID, action Action, entityType, entityID, details string, meta RequestMeta) {
	s.Record(ctx, &Entry{
		UserID:     &userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
}

// RecordSystem appends an entry with no actor, rendered as SYSTEM. Used for
// events like failed logins against unknown accounts.
func (s *Service) RecordSystem(ctx context.Context, action Action, entityType, entityID, details string, meta RequestMeta) {
	s.Record(ctx, &Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
}

// RecordFailedLogin records a failed login attempt. userID may be nil when
// the email did not match any account.
func (s *Service) RecordFailedLogin(ctx context.Context, userID *uuid.UUID, email string, meta RequestMeta) {
	s.Record(ctx, &Entry{
		UserID:     userID,
		Action:     ActionFailedLogin,
		EntityType: "user",
		EntityID:   email,
		Details:    "invalid credentials",
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
	})
}

// RecordDenied records a request rejected by a role check. It satisfies the
// auth package's DenialRecorder interface.
func (s *Service) RecordDenied(ctx context.Context, userID, method, path, ip, userAgent string) {
	entry := &Entry{
		Action:     ActionUnauthorized,
		EntityType: "endpoint",
		EntityID:   path,
		Details:    fmt.Sprintf("%s %s denied", method, path),
		Metadata:   map[string]interface{}{"method": method, "path": path},
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if uid, err := uuid.Parse(userID); err == nil {
		entry.UserID = &uid
	}
	s.Record(ctx, entry)
}

// QueryByEntity returns the audit trail for a single record, newest first,
// optionally bounded to a time range.
func (s *Service) QueryByEntity(ctx context.Context, entityType, entityID string, rng TimeRange, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByEntity(ctx, entityType, entityID, rng, limit, offset)
}

// QueryByUser returns everything a single user has done, newest first,
// optionally bounded to a time range.
func (s *Service) QueryByUser(ctx context.Context, userID uuid.UUID, rng TimeRange, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByUser(ctx, userID, rng, limit, offset)
}

// Query returns the full trail, newest first.
func (s *Service) Query(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// DetectAnomalies scans recent activity for suspicious patterns: a user
// viewing an unusually large number of patient records, or repeated failed
// logins against one account.
func (s *Service) DetectAnomalies(ctx context.Context) ([]Anomaly, error) {
	now := time.Now().UTC()
	var anomalies []Anomaly

	views, err := s.repo.CountsByAction(ctx, ActionViewPatient, now.Add(-ViewPatientWindow))
	if err != nil {
		return nil, fmt.Errorf("audit: count patient views: %w", err)
	}
	for userID, count := range views {
		if count > ViewPatientThreshold {
			anomalies = append(anomalies, Anomaly{
				UserID:      userID,
				Action:      ActionViewPatient,
				Count:       count,
				Window:      "24h",
				Description: fmt.Sprintf("user viewed %d patient records in 24 hours", count),
			})
		}
	}

	failures, err := s.repo.CountsByAction(ctx, ActionFailedLogin, now.Add(-FailedLoginWindow))
	if err != nil {
		return nil, fmt.Errorf("audit: count failed logins: %w", err)
	}
	for userID, count := range failures {
		if count > FailedLoginThreshold {
			anomalies = append(anomalies, Anomaly{
				UserID:      userID,
				Action:      ActionFailedLogin,
				Count:       count,
				Window:      "1h",
				Description: fmt.Sprintf("%d failed login attempts in 1 hour", count),
			})
		}
	}

	return anomalies, nil
}

// DetectUserAnomalies checks one user's recent activity against the same
// thresholds. It reports whether the activity looks suspicious and why.
func (s *Service) DetectUserAnomalies(ctx context.Context, userID uuid.UUID) (bool, []string, error) {
	now := time.Now().UTC()
	var reasons []string

	views, err := s.repo.CountByUserAction(ctx, userID, ActionViewPatient, now.Add(-ViewPatientWindow))
	if err != nil {
		return false, nil, fmt.Errorf("audit: count patient views: %w", err)
	}
	if views > ViewPatientThreshold {
		reasons = append(reasons, fmt.Sprintf("viewed %d patient records in the last 24 hours", views))
	}

	failures, err := s.repo.CountByUserAction(ctx, userID, ActionFailedLogin, now.Add(-FailedLoginWindow))
	if err != nil {
		return false, nil, fmt.Errorf("audit: count failed logins: %w", err)
	}
	if failures > FailedLoginThreshold {
		reasons = append(reasons, fmt.Sprintf("%d failed login attempts in the last hour", failures))
	}

	return len(reasons) > 0, reasons, nil
}

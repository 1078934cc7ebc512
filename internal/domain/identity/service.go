package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/platform/auth"
	"github.com/mediflow/mediflow/internal/platform/crypto"
	"github.com/mediflow/mediflow/internal/platform/token"
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords,
	// so responses do not leak which accounts exist.
	ErrInvalidCredentials = errors.New("identity: invalid email or password")
	ErrAccountDeactivated = errors.New("identity: account is deactivated")
	ErrMFARequired        = errors.New("identity: mfa code required")
	ErrInvalidRefresh     = errors.New("identity: invalid refresh token")
)

// LockedError is returned when a login is attempted against a locked
// account. The password is not checked and the counter is not incremented.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("identity: account locked until %s", e.Until.Format(time.RFC3339))
}

// RemainingMinutes returns how many minutes remain, rounded up, never < 1.
func (e *LockedError) RemainingMinutes() int {
	mins := int(time.Until(e.Until).Minutes()) + 1
	if mins < 1 {
		mins = 1
	}
	return mins
}

// ValidationError carries every problem with a request payload at once, so
// the client can fix them in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "identity: invalid input: " + strings.Join(e.Problems, "; ")
}

// Service implements registration, login with account lockout, token
// refresh, and logout.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	tokens   *token.Service
	revoked  *auth.TokenRevocationStore
	audit    *audit.Service
	logger   zerolog.Logger

	maxAttempts int
	lockFor     time.Duration
}

func NewService(
	users UserRepository,
	sessions SessionRepository,
	tokens *token.Service,
	revoked *auth.TokenRevocationStore,
	auditSvc *audit.Service,
	logger zerolog.Logger,
	maxAttempts int,
	lockFor time.Duration,
) *Service {
	return &Service{
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		revoked:     revoked,
		audit:       auditSvc,
		logger:      logger,
		maxAttempts: maxAttempts,
		lockFor:     lockFor,
	}
}

// AccessTTL returns the access token lifetime, for cookie max-age.
func (s *Service) AccessTTL() time.Duration { return s.tokens.AccessTTL() }

// RefreshTTL returns the refresh token lifetime, for cookie max-age.
func (s *Service) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

// RegisterInput is the payload for creating a staff account.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Validate returns every field problem at once.
func (in *RegisterInput) Validate() []string {
	var problems []string
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		problems = append(problems, "a valid email is required")
	}
	if !auth.ValidRole(in.Role) {
		problems = append(problems, fmt.Sprintf("role must be one of: %s", strings.Join(auth.AllRoles, ", ")))
	}
	if in.FirstName == "" {
		problems = append(problems, "first name is required")
	}
	if in.LastName == "" {
		problems = append(problems, "last name is required")
	}
	return problems
}

// Register creates a staff account after validating the password policy.
func (s *Service) Register(ctx context.Context, in RegisterInput, meta audit.RequestMeta) (*User, error) {
	problems := in.Validate()
	problems = append(problems, crypto.CheckPasswordStrength(in.Password)...)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	user := &User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.RecordSystem(ctx, audit.ActionCreateUser, "user", user.ID.String(),
		fmt.Sprintf("registered %s (%s)", user.Email, user.Role), meta)

	return user, nil
}

// LoginResult carries the authenticated user and the issued token pair.
type LoginResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
}

// Login verifies credentials and enforces the lockout policy:
//
//   - locked account: rejected without checking the password or touching
//     the counter
//   - wrong password: counter incremented atomically; reaching the limit
//     sets the lock
//   - success: counter and lock cleared, last_login stamped, token pair
//     issued, session row created
func (s *Service) Login(ctx context.Context, email, password, mfaCode string, meta audit.RequestMeta) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.audit.RecordFailedLogin(ctx, nil, email, meta)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if user.Locked(now) {
		return nil, &LockedError{Until: *user.LockedUntil}
	}

	if !crypto.VerifyPassword(password, user.PasswordHash) {
		attempts, lockedUntil, failErr := s.users.RecordLoginFailure(ctx, user.ID, s.maxAttempts, s.lockFor)
		if failErr != nil {
			s.logger.Error().Err(failErr).Str("user_id", user.ID.String()).Msg("failed to record login failure")
		}
		s.audit.RecordFailedLogin(ctx, &user.ID, email, meta)

		if lockedUntil != nil && lockedUntil.After(now) {
			s.logger.Warn().
				Str("user_id", user.ID.String()).
				Int("attempts", attempts).
				Time("locked_until", *lockedUntil).
				Msg("account locked after repeated failures")
		}
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrAccountDeactivated
	}

	if user.MFAEnabled && mfaCode == "" {
		return nil, ErrMFARequired
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("identity: record login: %w", err)
	}

	access, err := s.tokens.IssueAccessToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		ExpiresAt:    now.Add(s.tokens.RefreshTTL()),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("identity: create session: %w", err)
	}

	s.audit.RecordAction(ctx, user.ID, audit.ActionLogin, "user", user.ID.String(), "", meta)

	return &LoginResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes the session's tokens and deletes the session row. It is
// tolerant of partially missing state: an already-expired access token or a
// missing session still results in a clean logout.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string, meta audit.RequestMeta) {
	var userID string

	if claims, err := s.tokens.VerifyAccess(accessToken); err == nil {
		userID = claims.UserID
		s.revoked.Revoke(claims.ID, claims.UserID, claims.ExpiresAt.Time)
	}
	if claims, err := s.tokens.VerifyRefresh(refreshToken); err == nil {
		if userID == "" {
			userID = claims.UserID
		}
		s.revoked.Revoke(claims.ID, claims.UserID, claims.ExpiresAt.Time)
	}

	if accessToken != "" {
		if err := s.sessions.DeleteByAccessToken(ctx, accessToken); err != nil {
			s.logger.Error().Err(err).Msg("failed to delete session on logout")
		}
	}

	if userID != "" {
		if uid, err := uuid.Parse(userID); err == nil {
			s.audit.RecordAction(ctx, uid, audit.ActionLogout, "user", userID, "", meta)
		}
	}
}

// Refresh validates a refresh token, rotates the token pair, and updates the
// session row. The old refresh token is revoked so it cannot be replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if s.revoked.IsRevoked(claims.ID) {
		return nil, ErrInvalidRefresh
	}

	session, err := s.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	if !user.Active {
		return nil, ErrAccountDeactivated
	}

	access, err := s.tokens.IssueAccessToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID.String(), user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.tokens.RefreshTTL())
	if err := s.sessions.UpdateTokens(ctx, session.ID, access, refresh, expiresAt); err != nil {
		return nil, fmt.Errorf("identity: rotate session: %w", err)
	}

	s.revoked.Revoke(claims.ID, claims.UserID, claims.ExpiresAt.Time)

	return &LoginResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Me returns the account for the given user ID.
func (s *Service) Me(ctx context.Context, userID string) (*User, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.users.GetByID(ctx, uid)
}

// Deactivate disables an account. Outstanding tokens keep working until
// they expire or are revoked; new logins and refreshes are rejected.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ErrNotFound
	}
	return s.users.Deactivate(ctx, uid)
}

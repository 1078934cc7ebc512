package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a user or session does not exist.
var ErrNotFound = errors.New("identity: not found")

// ErrDuplicateEmail is returned when creating a user whose email is taken.
var ErrDuplicateEmail = errors.New("identity: email already registered")

// UserRepository persists staff accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	// RecordLoginFailure increments failed_login_attempts and, when the
	// count reaches maxAttempts, sets locked_until. Increment and lock
	// decision happen in a single statement so concurrent failures cannot
	// lose updates. Returns the new count and lock expiry.
	RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (int, *time.Time, error)
	// RecordLoginSuccess clears the failure counter and lock and stamps
	// last_login.
	RecordLoginSuccess(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// SessionRepository persists login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)
	UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error
	DeleteByAccessToken(ctx context.Context, accessToken string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

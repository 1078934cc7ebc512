package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres unique_violation error code.
const pgUniqueViolation = "23505"

type UserRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepoPG(pool *pgxpool.Pool) *UserRepoPG {
	return &UserRepoPG{pool: pool}
}

const userCols = `id, email, password_hash, role, first_name, last_name, active, mfa_enabled,
	failed_login_attempts, locked_until, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName,
		&u.Active, &u.MFAEnabled, &u.FailedLoginAttempts, &u.LockedUntil,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &u, err
}

func (r *UserRepoPG) Create(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	q := `INSERT INTO users (id, email, password_hash, role, first_name, last_name, active, mfa_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, q,
		user.ID, user.Email, user.PasswordHash, user.Role, user.FirstName,
		user.LastName, user.Active, user.MFAEnabled, user.CreatedAt, user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *UserRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	q := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userCols)
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

func (r *UserRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	q := fmt.Sprintf("SELECT %s FROM users WHERE LOWER(email) = LOWER($1)", userCols)
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UserRepoPG) Update(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now().UTC()
	q := `UPDATE users SET email = $2, role = $3, first_name = $4, last_name = $5,
		active = $6, mfa_enabled = $7, updated_at = $8 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		user.ID, user.Email, user.Role, user.FirstName, user.LastName,
		user.Active, user.MFAEnabled, user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepoPG) RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration) (int, *time.Time, error) {
	// Increment and lock decision in one statement; two requests failing at
	// the same moment both count.
	q := `UPDATE users SET
			failed_login_attempts = failed_login_attempts + 1,
			locked_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN now() + ($3 * interval '1 second')
				ELSE locked_until
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts, locked_until`

	var attempts int
	var lockedUntil *time.Time
	err := r.pool.QueryRow(ctx, q, id, maxAttempts, int(lockFor.Seconds())).Scan(&attempts, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	return attempts, lockedUntil, err
}

func (r *UserRepoPG) RecordLoginSuccess(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE users SET failed_login_attempts = 0, locked_until = NULL,
		last_login = now(), updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepoPG) Deactivate(ctx context.Context, id uuid.UUID) error {
	q := `UPDATE users SET active = false, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type SessionRepoPG struct {
	pool *pgxpool.Pool
}

func NewSessionRepoPG(pool *pgxpool.Pool) *SessionRepoPG {
	return &SessionRepoPG{pool: pool}
}

const sessionCols = `id, user_id, access_token, refresh_token, ip_address, user_agent, expires_at, created_at`

func (r *SessionRepoPG) Create(ctx context.Context, session *Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	q := fmt.Sprintf(`INSERT INTO sessions (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, sessionCols)
	_, err := r.pool.Exec(ctx, q,
		session.ID, session.UserID, session.AccessToken, session.RefreshToken,
		session.IPAddress, session.UserAgent, session.ExpiresAt, session.CreatedAt,
	)
	return err
}

func (r *SessionRepoPG) GetByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	q := fmt.Sprintf("SELECT %s FROM sessions WHERE refresh_token = $1", sessionCols)
	var s Session
	err := r.pool.QueryRow(ctx, q, refreshToken).Scan(
		&s.ID, &s.UserID, &s.AccessToken, &s.RefreshToken,
		&s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepoPG) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string, expiresAt time.Time) error {
	q := `UPDATE sessions SET access_token = $2, refresh_token = $3, expires_at = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, accessToken, refreshToken, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SessionRepoPG) DeleteByAccessToken(ctx context.Context, accessToken string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE access_token = $1`, accessToken)
	return err
}

func (r *SessionRepoPG) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

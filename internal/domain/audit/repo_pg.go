package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const auditCols = `id, user_id, action, entity_type, entity_id, details, metadata, ip_address, user_agent, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
		&e.Details, &e.Metadata, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
	)
	return &e, err
}

func (r *RepoPG) Insert(ctx context.Context, entry *Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	// nil metadata stores as SQL NULL rather than a JSON null.
	var metadata interface{}
	if entry.Metadata != nil {
		metadata = entry.Metadata
	}

	q := fmt.Sprintf(`INSERT INTO audit_log (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, auditCols)
	_, err := r.pool.Exec(ctx, q,
		entry.ID, entry.UserID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Details, metadata, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	return err
}

func (r *RepoPG) ListByEntity(ctx context.Context, entityType, entityID string, rng TimeRange, limit, offset int) ([]*Entry, int, error) {
	conds := []string{"entity_type = $1", "entity_id = $2"}
	args := []interface{}{entityType, entityID}
	conds, args = appendRange(conds, args, rng)
	return r.list(ctx, conds, args, limit, offset)
}

func (r *RepoPG) ListByUser(ctx context.Context, userID uuid.UUID, rng TimeRange, limit, offset int) ([]*Entry, int, error) {
	conds := []string{"user_id = $1"}
	args := []interface{}{userID}
	conds, args = appendRange(conds, args, rng)
	return r.list(ctx, conds, args, limit, offset)
}

func (r *RepoPG) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return r.list(ctx, nil, nil, limit, offset)
}

func appendRange(conds []string, args []interface{}, rng TimeRange) ([]string, []interface{}) {
	if !rng.From.IsZero() {
		args = append(args, rng.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !rng.To.IsZero() {
		args = append(args, rng.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return conds, args
}

func (r *RepoPG) list(ctx context.Context, conds []string, args []interface{}, limit, offset int) ([]*Entry, int, error) {
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", where)
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM audit_log %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		auditCols, where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, q, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *RepoPG) CountsByAction(ctx context.Context, action Action, since time.Time) (map[uuid.UUID]int, error) {
	q := `SELECT user_id, COUNT(*) FROM audit_log
		WHERE action = $1 AND created_at >= $2 AND user_id IS NOT NULL
		GROUP BY user_id`
	rows, err := r.pool.Query(ctx, q, action, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var userID uuid.UUID
		var count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		counts[userID] = count
	}
	return counts, rows.Err()
}

func (r *RepoPG) CountByUserAction(ctx context.Context, userID uuid.UUID, action Action, since time.Time) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM audit_log WHERE user_id = $1 AND action = $2 AND created_at >= $3`
	err := r.pool.QueryRow(ctx, q, userID, action, since).Scan(&count)
	return count, err
}

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TimeRange bounds a query to entries created within [From, To]. A zero
// field leaves that side unbounded.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Repository stores and queries audit entries. The table is append-only:
// there are no update or delete operations.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, entityType, entityID string, rng TimeRange, limit, offset int) ([]*Entry, int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, rng TimeRange, limit, offset int) ([]*Entry, int, error)
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
	// CountsByAction returns, per user, how many entries with the given
	// action were recorded since the given time. Entries without an actor
	// are excluded.
	CountsByAction(ctx context.Context, action Action, since time.Time) (map[uuid.UUID]int, error)
	// CountByUserAction returns how many entries one user has with the
	// given action since the given time.
	CountByUserAction(ctx context.Context, userID uuid.UUID, action Action, since time.Time) (int, error)
}

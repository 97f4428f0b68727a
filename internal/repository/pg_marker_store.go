package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

type pgMarkerStore struct {
	pool *pgxpool.Pool
}

// NewPgMarkerStore returns a MarkerStore backed by the event_markers table.
func NewPgMarkerStore(pool *pgxpool.Pool) MarkerStore {
	return &pgMarkerStore{pool: pool}
}

// CreateMarker inserts the marker row. A primary key violation means another
// invocation claimed the key first.
func (s *pgMarkerStore) CreateMarker(ctx context.Context, key string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO event_markers (id, created_at) VALUES ($1, $2)`, key, at)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return domain.ErrAlreadyClaimed
	}
	return fmt.Errorf("create marker %s: %w", key, err)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

type pgAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewPgAttemptRepository returns an AttemptRepository backed by PostgreSQL.
func NewPgAttemptRepository(pool *pgxpool.Pool) AttemptRepository {
	return &pgAttemptRepository{pool: pool}
}

// CreateAttempts inserts all records in one batch. Records are independent of
// the parent status write; no transaction spans both.
func (r *pgAttemptRepository) CreateAttempts(ctx context.Context, attempts []*domain.DeliveryAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, a := range attempts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Status == "" {
			a.Status = domain.AttemptPending
		}
		a.CreatedAt, a.UpdatedAt = now, now
		batch.Queue(`
			INSERT INTO delivery_attempts
				(id, work_item_id, channel, address, attempts, max_attempts,
				 status, last_error, next_retry_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			a.ID, a.WorkItemID, a.Channel, a.Address, a.Attempts, a.MaxAttempts,
			a.Status, a.LastError, a.NextRetryAt, a.CreatedAt, a.UpdatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range attempts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert delivery attempt: %w", err)
		}
	}
	return nil
}

func (r *pgAttemptRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.DeliveryAttempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, work_item_id, channel, address, attempts, max_attempts,
		       status, COALESCE(last_error, ''), next_retry_at, created_at, updated_at
		FROM delivery_attempts
		WHERE status = 'pending'
		  AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due attempts: %w", err)
	}
	defer rows.Close()

	var result []*domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.WorkItemID, &a.Channel, &a.Address, &a.Attempts, &a.MaxAttempts,
			&a.Status, &a.LastError, &a.NextRetryAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (r *pgAttemptRepository) MarkDelivered(ctx context.Context, id string, attempts int, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE delivery_attempts
		SET status = 'delivered', attempts = $1, last_error = NULL, updated_at = $2
		WHERE id = $3`, attempts, at, id)
	return err
}

func (r *pgAttemptRepository) Reschedule(ctx context.Context, id string, attempts int, next time.Time, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE delivery_attempts
		SET attempts = $1, next_retry_at = $2, last_error = $3, updated_at = NOW()
		WHERE id = $4`, attempts, next, errMsg, id)
	return err
}

func (r *pgAttemptRepository) MarkExhausted(ctx context.Context, id string, attempts int, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE delivery_attempts
		SET status = 'exhausted', attempts = $1, last_error = $2, updated_at = NOW()
		WHERE id = $3`, attempts, errMsg, id)
	return err
}

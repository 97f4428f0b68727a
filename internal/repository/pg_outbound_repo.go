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

const outboundColumns = `id, to_number, body, channel, status, provider,
	       provider_message_id, error, sent_at, last_tried_at, created_at, updated_at`

type pgOutboundRepository struct {
	pool *pgxpool.Pool
}

// NewPgOutboundRepository returns an OutboundRepository backed by PostgreSQL.
func NewPgOutboundRepository(pool *pgxpool.Pool) OutboundRepository {
	return &pgOutboundRepository{pool: pool}
}

func (r *pgOutboundRepository) Create(ctx context.Context, m *domain.OutboundMessage) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Channel == "" {
		m.Channel = domain.ChannelSMS
	}
	now := time.Now().UTC()
	m.Status = domain.StatusQueued
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbound_messages (id, to_number, body, channel, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.To, m.Body, m.Channel, m.Status, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbound message: %w", err)
	}
	return nil
}

func (r *pgOutboundRepository) GetByID(ctx context.Context, id string) (*domain.OutboundMessage, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+outboundColumns+` FROM outbound_messages WHERE id = $1`, id)

	m, err := scanOutbound(row)
	if isNoRow(err) {
		return nil, domain.ErrNotFound
	}
	return m, err
}

func (r *pgOutboundRepository) MarkSent(ctx context.Context, id, provider, providerMsgID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbound_messages
		SET status = 'sent', provider = $1, provider_message_id = $2,
		    sent_at = $3, last_tried_at = $3, error = NULL, updated_at = NOW()
		WHERE id = $4`, provider, providerMsgID, at, id)
	if err != nil {
		return fmt.Errorf("mark outbound sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgOutboundRepository) MarkError(ctx context.Context, id, errMsg string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outbound_messages
		SET status = 'error', error = $1, last_tried_at = $2, updated_at = NOW()
		WHERE id = $3`, errMsg, at, id)
	if err != nil {
		return fmt.Errorf("mark outbound error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgOutboundRepository) FindStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*domain.OutboundMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+outboundColumns+`
		FROM outbound_messages
		WHERE status = 'queued'
		  AND created_at <= $1
		ORDER BY created_at ASC
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("find stale outbound messages: %w", err)
	}
	defer rows.Close()

	var result []*domain.OutboundMessage
	for rows.Next() {
		m, err := scanOutbound(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanOutbound(row pgx.Row) (*domain.OutboundMessage, error) {
	var m domain.OutboundMessage
	err := row.Scan(
		&m.ID, &m.To, &m.Body, &m.Channel, &m.Status, &m.Provider,
		&m.ProviderMessageID, &m.Error, &m.SentAt, &m.LastTriedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

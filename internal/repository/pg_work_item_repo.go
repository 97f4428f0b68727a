package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

const workItemColumns = `id, targets, context, status, error, outcomes,
	       last_attempted_at, created_at, updated_at`

type pgWorkItemRepository struct {
	pool *pgxpool.Pool
}

// NewPgWorkItemRepository returns a WorkItemRepository backed by PostgreSQL.
func NewPgWorkItemRepository(pool *pgxpool.Pool) WorkItemRepository {
	return &pgWorkItemRepository{pool: pool}
}

func (r *pgWorkItemRepository) Create(ctx context.Context, w *domain.WorkItem) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Targets == nil {
		w.Targets = []domain.RawTarget{}
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	w.Status = domain.StatusQueued

	targets, err := json.Marshal(w.Targets)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	tc, err := json.Marshal(w.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notify_queue (id, targets, context, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, targets, tc, w.Status, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

func (r *pgWorkItemRepository) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+workItemColumns+` FROM notify_queue WHERE id = $1`, id)

	w, err := scanWorkItem(row)
	if isNoRow(err) {
		return nil, domain.ErrNotFound
	}
	return w, err
}

func (r *pgWorkItemRepository) List(ctx context.Context, f domain.ListFilter) ([]*domain.WorkItem, int, error) {
	where, args := buildListWhere(f)
	offset := (f.Page - 1) * f.Limit

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notify_queue"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count work items: %w", err)
	}

	args = append(args, f.Limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM notify_queue%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, workItemColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	items, err := scanWorkItems(rows)
	return items, total, err
}

func (r *pgWorkItemRepository) MarkSent(ctx context.Context, id string, outcomes []domain.TargetOutcome, at time.Time) error {
	raw, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE notify_queue
		SET status = 'sent', error = NULL, outcomes = $1,
		    last_attempted_at = $2, updated_at = NOW()
		WHERE id = $3`, raw, at, id)
	if err != nil {
		return fmt.Errorf("mark work item sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgWorkItemRepository) MarkError(ctx context.Context, id, errMsg string, outcomes []domain.TargetOutcome, at time.Time) error {
	raw, err := json.Marshal(outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE notify_queue
		SET status = 'error', error = $1, outcomes = $2,
		    last_attempted_at = $3, updated_at = NOW()
		WHERE id = $4`, errMsg, raw, at, id)
	if err != nil {
		return fmt.Errorf("mark work item error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgWorkItemRepository) FindStaleQueued(ctx context.Context, olderThan time.Time, limit int) ([]*domain.WorkItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+workItemColumns+`
		FROM notify_queue
		WHERE status = 'queued'
		  AND created_at <= $1
		ORDER BY created_at ASC
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("find stale work items: %w", err)
	}
	defer rows.Close()
	return scanWorkItems(rows)
}

// ---- helpers ----

func scanWorkItem(row pgx.Row) (*domain.WorkItem, error) {
	var (
		w                       domain.WorkItem
		targets, tc, outcomeRaw []byte
	)
	err := row.Scan(
		&w.ID, &targets, &tc, &w.Status, &w.Error, &outcomeRaw,
		&w.LastAttemptedAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(targets, &w.Targets); err != nil {
		return nil, fmt.Errorf("decode targets of %s: %w", w.ID, err)
	}
	if err := json.Unmarshal(tc, &w.Context); err != nil {
		return nil, fmt.Errorf("decode context of %s: %w", w.ID, err)
	}
	if len(outcomeRaw) > 0 {
		if err := json.Unmarshal(outcomeRaw, &w.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes of %s: %w", w.ID, err)
		}
	}
	return &w, nil
}

func scanWorkItems(rows pgx.Rows) ([]*domain.WorkItem, error) {
	var result []*domain.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// buildListWhere builds a parameterised WHERE clause from a ListFilter.
func buildListWhere(f domain.ListFilter) (string, []any) {
	var conditions []string
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.Status != nil {
		add("status = $%d", *f.Status)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nate-a11y/lrpbolt-sub001/internal/domain"
)

type pgUserDirectory struct {
	pool *pgxpool.Pool
}

// NewPgUserDirectory returns a UserDirectory backed by the user_directory table.
func NewPgUserDirectory(pool *pgxpool.Pool) UserDirectory {
	return &pgUserDirectory{pool: pool}
}

func (d *pgUserDirectory) GetUser(ctx context.Context, key string) (*domain.DirectoryUser, error) {
	var (
		u     = domain.DirectoryUser{Key: key}
		email *string
	)
	err := d.pool.QueryRow(ctx,
		`SELECT email FROM user_directory WHERE user_key = $1`, key).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", key, err)
	}
	if email != nil {
		u.Email = *email
	}
	return &u, nil
}

type pgTokenDirectory struct {
	pool *pgxpool.Pool
}

// NewPgTokenDirectory returns a TokenDirectory backed by the fcm_tokens table.
func NewPgTokenDirectory(pool *pgxpool.Pool) TokenDirectory {
	return &pgTokenDirectory{pool: pool}
}

func (d *pgTokenDirectory) FindByEmails(ctx context.Context, emails []string) ([]domain.TokenRecord, error) {
	if len(emails) > MaxInQuery {
		return nil, fmt.Errorf("find tokens: %d emails exceeds limit of %d", len(emails), MaxInQuery)
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id, email, COALESCE(token, '') FROM fcm_tokens WHERE email = ANY($1)`, emails)
	if err != nil {
		return nil, fmt.Errorf("find tokens: %w", err)
	}
	defer rows.Close()

	var records []domain.TokenRecord
	for rows.Next() {
		var rec domain.TokenRecord
		if err := rows.Scan(&rec.ID, &rec.Email, &rec.Token); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteTokens removes records whose token (or legacy ID) matches.
func (d *pgTokenDirectory) DeleteTokens(ctx context.Context, tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	tag, err := d.pool.Exec(ctx,
		`DELETE FROM fcm_tokens WHERE token = ANY($1) OR (token IS NULL AND id = ANY($1))`, tokens)
	if err != nil {
		return 0, fmt.Errorf("delete tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

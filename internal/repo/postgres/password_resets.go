package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrResetTokenNotFound = errors.New("password reset token not found")

type PasswordResetRow struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type PasswordResetsRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewPasswordResetsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PasswordResetsRepo {
	return &PasswordResetsRepo{observer: observer{prom: prom}, pool: pool}
}

func (r *PasswordResetsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

func (r *PasswordResetsRepo) Create(ctx context.Context, row PasswordResetRow) error {
	return r.observe("password_resets.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.UsedAt, row.CreatedAt)
		return err
	})
}

func (r *PasswordResetsRepo) GetByHashForUpdate(ctx context.Context, tx pgx.Tx, tokenHash string) (PasswordResetRow, error) {
	var row PasswordResetRow

	err := r.observe("password_resets.get_for_update", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, user_id, token_hash, expires_at, used_at, created_at
			FROM password_reset_tokens
			WHERE token_hash = $1
			FOR UPDATE
		`, tokenHash).Scan(
			&row.ID,
			&row.UserID,
			&row.TokenHash,
			&row.ExpiresAt,
			&row.UsedAt,
			&row.CreatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PasswordResetRow{}, ErrResetTokenNotFound
		}
		return PasswordResetRow{}, err
	}

	return row, nil
}

func (r *PasswordResetsRepo) MarkUsed(ctx context.Context, tx pgx.Tx, id string) error {
	return r.observe("password_resets.mark_used", func() error {
		_, err := tx.Exec(ctx, `UPDATE password_reset_tokens SET used_at = NOW() WHERE id = $1`, id)
		return err
	})
}

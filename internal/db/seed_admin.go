package db

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/config"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/security"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAdminUser creates the bootstrap Admin from cfg when no user with that
// email exists. An existing account is left as is.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) (created bool, err error) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return false, nil
	}

	var dummy string

	err = pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, cfg.AdminEmail).Scan(&dummy)

	if err == nil {
		return false, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return false, err
	}

	now := time.Now().UTC()

	u := user.User{
		ID:           uuid.NewString(),
		Username:     cfg.AdminName,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		IsSuperuser:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// superuser => Admin with staff access
	u.Normalize()

	_, err = pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, is_superuser, is_staff, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsSuperuser, u.IsStaff, u.CreatedAt, u.UpdatedAt,
	)

	if err != nil {
		return false, err
	}

	return true, nil
}

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userSelect = `
	SELECT id, username, email, password_hash, role, is_superuser, is_staff, created_at, updated_at
	FROM users`

type UsersRepo struct {
	observer
	pool  *pgxpool.Pool
	hooks Lifecycle
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom, hooks Lifecycle) *UsersRepo {
	return &UsersRepo{observer: observer{prom: prom}, pool: pool, hooks: orNop(hooks)}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsSuperuser,
		&u.IsStaff,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func mapUserWriteErr(err error) error {
	if IsUniqueViolation(err) {
		switch constraintName(err) {
		case "users_email_uniq":
			return user.ErrEmailTaken
		case "users_username_uniq":
			return user.ErrUsernameTaken
		}
	}
	return err
}

// Create normalizes the access flags, then inserts u with a fresh id.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()

	u.ID = uuid.NewString()
	u.Email = strings.TrimSpace(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Normalize()

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO users (id, username, email, password_hash, role, is_superuser, is_staff, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsSuperuser, u.IsStaff, u.CreatedAt, u.UpdatedAt)
		return err
	})

	if err != nil {
		return user.User{}, mapUserWriteErr(err)
	}

	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE email = $1`, strings.TrimSpace(email)))
		return
	})

	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.get", func() (err error) {
		u, err = scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE id = $1`, id))
		return
	})

	return u, err
}

// RoleOf is read on every gated request so role changes apply immediately.
func (r *UsersRepo) RoleOf(ctx context.Context, id string) (user.Role, error) {
	var role user.Role

	err := r.observe("users.role_of", func() error {
		err := r.pool.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
		if errors.Is(err, pgx.ErrNoRows) {
			return user.ErrNotFound
		}
		return err
	})

	return role, err
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := []user.User{}

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, userSelect+` ORDER BY username`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	return out, err
}

// Update writes profile and access fields of u after normalizing them.
func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	u.Email = strings.TrimSpace(u.Email)
	u.UpdatedAt = time.Now().UTC()
	u.Normalize()

	err := r.observe("users.update", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE users
			SET username = $2, email = $3, role = $4, is_superuser = $5, is_staff = $6, updated_at = $7
			WHERE id = $1
		`, u.ID, u.Username, u.Email, u.Role, u.IsSuperuser, u.IsStaff, u.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})

	if err != nil {
		return user.User{}, mapUserWriteErr(err)
	}

	return u, nil
}

func (r *UsersRepo) SetPasswordTx(ctx context.Context, tx pgx.Tx, id, passwordHash string) error {
	return r.observe("users.set_password", func() error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
		`, id, passwordHash)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

// Delete removes the user. Owned projects with their tasks and owned posts go
// with it and fire their delete hooks; tasks assigned to the user elsewhere
// are unassigned without a hook.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var (
		projects []ownedProject
		posts    []post.Post
	)

	err := r.observe("users.delete", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var found string
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&found); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return user.ErrNotFound
			}
			return err
		}

		ps, err := listProjects(ctx, tx, `WHERE p.owner_id = $1`, id)
		if err != nil {
			return err
		}

		tasks, err := listTasks(ctx, tx, `WHERE p.owner_id = $1`, id)
		if err != nil {
			return err
		}

		byProject := make(map[string][]task.Task, len(ps))
		for _, t := range tasks {
			byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
		}
		for _, p := range ps {
			projects = append(projects, ownedProject{project: p, tasks: byProject[p.ID]})
		}

		owned, err := listPosts(ctx, tx, `WHERE po.owner_id = $1`, id)
		if err != nil {
			return err
		}
		posts = owned

		if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return err
	}

	for _, op := range projects {
		fireProjectDeleted(ctx, r.hooks, op.project, op.tasks)
	}
	for _, p := range posts {
		r.hooks.PostDeleted(ctx, p)
	}

	return nil
}

func (r *UsersRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const projectSelect = `
	SELECT p.id, p.name, p.owner_id, p.created_at, p.updated_at, u.username, u.email
	FROM projects p
	JOIN users u ON u.id = p.owner_id`

type ProjectsRepo struct {
	observer
	pool  *pgxpool.Pool
	hooks Lifecycle
}

func NewProjectsRepo(pool *pgxpool.Pool, prom *observability.Prom, hooks Lifecycle) *ProjectsRepo {
	return &ProjectsRepo{observer: observer{prom: prom}, pool: pool, hooks: orNop(hooks)}
}

func scanProject(row pgx.Row) (project.Project, error) {
	var p project.Project

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.OwnerID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Owner.Username,
		&p.Owner.Email,
	)
	p.Owner.ID = p.OwnerID

	return p, err
}

func getProject(ctx context.Context, q querier, id string, lock bool) (project.Project, error) {
	sql := projectSelect + ` WHERE p.id = $1`
	if lock {
		sql += ` FOR UPDATE OF p`
	}

	p, err := scanProject(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return project.Project{}, project.ErrNotFound
		}
		return project.Project{}, err
	}
	return p, nil
}

func listProjects(ctx context.Context, q querier, where string, args ...any) ([]project.Project, error) {
	rows, err := q.Query(ctx, projectSelect+" "+where+` ORDER BY p.created_at DESC, p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []project.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *ProjectsRepo) Create(ctx context.Context, ownerID, name string) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.create", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		id := uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO projects (id, name, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
		`, id, name, ownerID, time.Now().UTC()); err != nil {
			return err
		}

		if p, err = getProject(ctx, tx, id, false); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		if IsForeignKeyViolation(err) {
			return project.Project{}, errors.Join(project.ErrOwnerNotFound, err)
		}
		return project.Project{}, err
	}

	r.hooks.ProjectSaved(ctx, p, true)
	return p, nil
}

func (r *ProjectsRepo) Update(ctx context.Context, id, name string) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.update", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx, `
			UPDATE projects SET name = $2, updated_at = $3 WHERE id = $1
		`, id, name, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return project.ErrNotFound
		}

		if p, err = getProject(ctx, tx, id, false); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return project.Project{}, err
	}

	r.hooks.ProjectSaved(ctx, p, false)
	return p, nil
}

func (r *ProjectsRepo) GetByID(ctx context.Context, id string) (project.Project, error) {
	var p project.Project

	err := r.observe("projects.get", func() (err error) {
		p, err = getProject(ctx, r.pool, id, false)
		return
	})

	return p, err
}

func (r *ProjectsRepo) List(ctx context.Context) ([]project.Project, error) {
	var out []project.Project

	err := r.observe("projects.list", func() (err error) {
		out, err = listProjects(ctx, r.pool, "")
		return
	})

	return out, err
}

// Boards returns every project with its tasks, newest project first.
func (r *ProjectsRepo) Boards(ctx context.Context) ([]task.Board, error) {
	var boards []task.Board

	err := r.observe("projects.boards", func() error {
		projects, err := listProjects(ctx, r.pool, "")
		if err != nil {
			return err
		}

		tasks, err := listTasks(ctx, r.pool, "")
		if err != nil {
			return err
		}

		byProject := make(map[string][]task.Task, len(projects))
		for _, t := range tasks {
			byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
		}

		boards = make([]task.Board, 0, len(projects))
		for _, p := range projects {
			ts := byProject[p.ID]
			if ts == nil {
				ts = []task.Task{}
			}
			boards = append(boards, task.Board{Project: p, Tasks: ts})
		}
		return nil
	})

	return boards, err
}

// Delete removes the project and, by cascade, its tasks. Hooks fire for every
// task first, then for the project.
func (r *ProjectsRepo) Delete(ctx context.Context, id string) error {
	var (
		p     project.Project
		tasks []task.Task
	)

	err := r.observe("projects.delete", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		p, err = getProject(ctx, tx, id, true)
		if err != nil {
			return err
		}

		tasks, err = listTasks(ctx, tx, `WHERE t.project_id = $1`, id)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return err
	}

	fireProjectDeleted(ctx, r.hooks, p, tasks)
	return nil
}

func fireProjectDeleted(ctx context.Context, hooks Lifecycle, p project.Project, tasks []task.Task) {
	for _, t := range tasks {
		hooks.TaskDeleted(ctx, t)
	}
	hooks.ProjectDeleted(ctx, p)
}

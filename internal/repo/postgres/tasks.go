package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskSelect = `
	SELECT t.id, t.title, t.description, t.completed, t.attachment,
	       t.project_id, t.assignee_id, t.created_at, t.updated_at,
	       p.name, o.id, o.username, o.email,
	       a.username, a.email
	FROM tasks t
	JOIN projects p ON p.id = t.project_id
	JOIN users o ON o.id = p.owner_id
	LEFT JOIN users a ON a.id = t.assignee_id`

type TasksRepo struct {
	observer
	pool  *pgxpool.Pool
	hooks Lifecycle
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom, hooks Lifecycle) *TasksRepo {
	return &TasksRepo{observer: observer{prom: prom}, pool: pool, hooks: orNop(hooks)}
}

func scanTask(row pgx.Row) (task.Task, error) {
	var (
		t                           task.Task
		assigneeName, assigneeEmail *string
	)

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Completed,
		&t.Attachment,
		&t.ProjectID,
		&t.AssigneeID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Project.Name,
		&t.Project.Owner.ID,
		&t.Project.Owner.Username,
		&t.Project.Owner.Email,
		&assigneeName,
		&assigneeEmail,
	)
	if err != nil {
		return task.Task{}, err
	}

	t.Project.ID = t.ProjectID
	if t.AssigneeID != nil && assigneeName != nil {
		t.Assignee = &user.Ref{ID: *t.AssigneeID, Username: *assigneeName}
		if assigneeEmail != nil {
			t.Assignee.Email = *assigneeEmail
		}
	}

	return t, nil
}

func getTask(ctx context.Context, q querier, projectID, taskID string, lock bool) (task.Task, error) {
	sql := taskSelect + ` WHERE t.id = $1 AND t.project_id = $2`
	if lock {
		sql += ` FOR UPDATE OF t`
	}

	t, err := scanTask(q.QueryRow(ctx, sql, taskID, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

func listTasks(ctx context.Context, q querier, where string, args ...any) ([]task.Task, error) {
	rows, err := q.Query(ctx, taskSelect+" "+where+` ORDER BY t.created_at, t.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	return out, rows.Err()
}

func projectExists(ctx context.Context, q querier, projectID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, projectID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return project.ErrNotFound
	}
	return nil
}

func mapTaskWriteErr(err error) error {
	if IsForeignKeyViolation(err) {
		switch constraintName(err) {
		case "tasks_project_id_fkey":
			return project.ErrNotFound
		default:
			return task.ErrAssigneeNotFound
		}
	}
	return err
}

func (r *TasksRepo) Create(ctx context.Context, projectID string, in task.Input) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.create", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := projectExists(ctx, tx, projectID); err != nil {
			return err
		}

		now := time.Now().UTC()
		id := uuid.NewString()

		_, err = tx.Exec(ctx, `
			INSERT INTO tasks (id, title, description, completed, attachment, project_id, assignee_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, id, in.Title, in.Description, in.Completed, in.Attachment, projectID, in.AssigneeID, now)
		if err != nil {
			return mapTaskWriteErr(err)
		}

		if t, err = getTask(ctx, tx, projectID, id, false); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return task.Task{}, err
	}

	r.hooks.TaskSaved(ctx, t, true)
	return t, nil
}

// Update rewrites the task's fields. A nil in.Attachment keeps the stored file.
func (r *TasksRepo) Update(ctx context.Context, projectID, taskID string, in task.Input) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.update", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx, `
			UPDATE tasks
			SET title = $3,
			    description = $4,
			    completed = $5,
			    assignee_id = $6,
			    attachment = COALESCE($7, attachment),
			    updated_at = $8
			WHERE id = $1 AND project_id = $2
		`, taskID, projectID, in.Title, in.Description, in.Completed, in.AssigneeID, in.Attachment, time.Now().UTC())
		if err != nil {
			return mapTaskWriteErr(err)
		}
		if tag.RowsAffected() == 0 {
			return task.ErrNotFound
		}

		if t, err = getTask(ctx, tx, projectID, taskID, false); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return task.Task{}, err
	}

	r.hooks.TaskSaved(ctx, t, false)
	return t, nil
}

func (r *TasksRepo) Get(ctx context.Context, projectID, taskID string) (task.Task, error) {
	var t task.Task

	err := r.observe("tasks.get", func() (err error) {
		t, err = getTask(ctx, r.pool, projectID, taskID, false)
		return
	})

	return t, err
}

// ListByProject returns project.ErrNotFound for an unknown project rather
// than an empty list.
func (r *TasksRepo) ListByProject(ctx context.Context, projectID string) ([]task.Task, error) {
	var out []task.Task

	err := r.observe("tasks.list_by_project", func() error {
		if err := projectExists(ctx, r.pool, projectID); err != nil {
			return err
		}

		var err error
		out, err = listTasks(ctx, r.pool, `WHERE t.project_id = $1`, projectID)
		return err
	})

	return out, err
}

func (r *TasksRepo) ListAll(ctx context.Context) ([]task.Task, error) {
	var out []task.Task

	err := r.observe("tasks.list_all", func() (err error) {
		out, err = listTasks(ctx, r.pool, "")
		return
	})

	return out, err
}

func (r *TasksRepo) Delete(ctx context.Context, projectID, taskID string) error {
	var t task.Task

	err := r.observe("tasks.delete", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		t, err = getTask(ctx, tx, projectID, taskID, true)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return err
	}

	r.hooks.TaskDeleted(ctx, t)
	return nil
}

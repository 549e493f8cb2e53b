package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Lifecycle is told about every committed create, update and delete of a
// project, task or post, including rows removed by a cascade. Delete hooks get
// the row as it was read inside the deleting transaction.
type Lifecycle interface {
	ProjectSaved(ctx context.Context, p project.Project, created bool)
	ProjectDeleted(ctx context.Context, p project.Project)
	TaskSaved(ctx context.Context, t task.Task, created bool)
	TaskDeleted(ctx context.Context, t task.Task)
	PostSaved(ctx context.Context, p post.Post, created bool)
	PostDeleted(ctx context.Context, p post.Post)
}

type NopLifecycle struct{}

func (NopLifecycle) ProjectSaved(context.Context, project.Project, bool) {}
func (NopLifecycle) ProjectDeleted(context.Context, project.Project)     {}
func (NopLifecycle) TaskSaved(context.Context, task.Task, bool)          {}
func (NopLifecycle) TaskDeleted(context.Context, task.Task)              {}
func (NopLifecycle) PostSaved(context.Context, post.Post, bool)          {}
func (NopLifecycle) PostDeleted(context.Context, post.Post)              {}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type observer struct {
	prom *observability.Prom
}

func (o observer) observe(op string, fn func() error) error {
	if o.prom != nil {
		return o.prom.ObserveDB(op, fn)
	}
	return fn()
}

func orNop(hooks Lifecycle) Lifecycle {
	if hooks == nil {
		return NopLifecycle{}
	}
	return hooks
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return true
	}
	return false
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

type ownedProject struct {
	project project.Project
	tasks   []task.Task
}

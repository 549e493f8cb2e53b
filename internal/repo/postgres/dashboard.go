package postgres

import (
	"context"

	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DashboardCounts struct {
	Projects int64 `json:"projects"`
	Tasks    int64 `json:"tasks"`
	Posts    int64 `json:"posts"`
	Users    int64 `json:"users"`
}

type DashboardRepo struct {
	observer
	pool *pgxpool.Pool
}

func NewDashboardRepo(pool *pgxpool.Pool, prom *observability.Prom) *DashboardRepo {
	return &DashboardRepo{observer: observer{prom: prom}, pool: pool}
}

func (r *DashboardRepo) Counts(ctx context.Context) (DashboardCounts, error) {
	var c DashboardCounts

	err := r.observe("dashboard.counts", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT (SELECT COUNT(*) FROM projects),
			       (SELECT COUNT(*) FROM tasks),
			       (SELECT COUNT(*) FROM posts),
			       (SELECT COUNT(*) FROM users)
		`).Scan(&c.Projects, &c.Tasks, &c.Posts, &c.Users)
	})

	return c, err
}

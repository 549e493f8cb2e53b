package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postSelect = `
	SELECT po.id, po.title, po.content, po.owner_id, po.created_at, po.updated_at,
	       u.username, u.email,
	       COALESCE((
	           SELECT array_agg(tg.name ORDER BY tg.name)
	           FROM post_tags pt
	           JOIN tags tg ON tg.id = pt.tag_id
	           WHERE pt.post_id = po.id
	       ), '{}') AS tags,
	       (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = po.id) AS likes
	FROM posts po
	JOIN users u ON u.id = po.owner_id`

type PostsRepo struct {
	observer
	pool  *pgxpool.Pool
	hooks Lifecycle
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom, hooks Lifecycle) *PostsRepo {
	return &PostsRepo{observer: observer{prom: prom}, pool: pool, hooks: orNop(hooks)}
}

func scanPost(row pgx.Row) (post.Post, error) {
	var (
		p     post.Post
		likes int64
	)

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.OwnerID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Owner.Username,
		&p.Owner.Email,
		&p.Tags,
		&likes,
	)
	p.Owner.ID = p.OwnerID
	p.Likes = int(likes)

	return p, err
}

func getPost(ctx context.Context, q querier, id string, lock bool) (post.Post, error) {
	sql := postSelect + ` WHERE po.id = $1`
	if lock {
		sql += ` FOR UPDATE OF po`
	}

	p, err := scanPost(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, err
	}
	return p, nil
}

func listPosts(ctx context.Context, q querier, where string, args ...any) ([]post.Post, error) {
	rows, err := q.Query(ctx, postSelect+" "+where+` ORDER BY po.created_at DESC, po.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []post.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// replaceTags makes names the post's exact tag set, creating missing tags.
func replaceTags(ctx context.Context, tx pgx.Tx, postID string, names []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return err
	}

	for _, name := range names {
		var tagID string

		// DO UPDATE so RETURNING yields the existing row's id on conflict
		err := tx.QueryRow(ctx, `
			INSERT INTO tags (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.NewString(), name).Scan(&tagID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, postID, tagID); err != nil {
			return err
		}
	}

	return nil
}

func (r *PostsRepo) Create(ctx context.Context, ownerID string, in post.Input) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.create", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		id := uuid.NewString()
		now := time.Now().UTC()

		if _, err := tx.Exec(ctx, `
			INSERT INTO posts (id, title, content, owner_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, id, in.Title, in.Content, ownerID, now); err != nil {
			return err
		}

		if err := replaceTags(ctx, tx, id, in.Tags); err != nil {
			return err
		}

		if p, err = getPost(ctx, tx, id, false); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return post.Post{}, err
	}

	r.hooks.PostSaved(ctx, p, true)
	return p, nil
}

// Update rewrites title and content and replaces the tag set.
func (r *PostsRepo) Update(ctx context.Context, id string, in post.Input) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.update", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx, `
			UPDATE posts SET title = $2, content = $3, updated_at = $4 WHERE id = $1
		`, id, in.Title, in.Content, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return post.ErrNotFound
		}

		if err := replaceTags(ctx, tx, id, in.Tags); err != nil {
			return err
		}

		if p, err = getPost(ctx, tx, id, false); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return post.Post{}, err
	}

	r.hooks.PostSaved(ctx, p, false)
	return p, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.get", func() (err error) {
		p, err = getPost(ctx, r.pool, id, false)
		return
	})

	return p, err
}

func (r *PostsRepo) List(ctx context.Context) ([]post.Post, error) {
	var out []post.Post

	err := r.observe("posts.list", func() (err error) {
		out, err = listPosts(ctx, r.pool, "")
		return
	})

	return out, err
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	var p post.Post

	err := r.observe("posts.delete", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		p, err = getPost(ctx, tx, id, true)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return err
	}

	r.hooks.PostDeleted(ctx, p)
	return nil
}

// ToggleLike adds userID to the post's likes or removes it if present. Likes
// are not a post change and fire no hook.
func (r *PostsRepo) ToggleLike(ctx context.Context, postID, userID string) (post.ToggleResult, error) {
	var res post.ToggleResult

	err := r.observe("posts.toggle_like", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// lock the post so concurrent toggles by the same user serialize
		var id string
		if err := tx.QueryRow(ctx, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return post.ErrNotFound
			}
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return err
		}

		res.Liked = tag.RowsAffected() == 0
		if res.Liked {
			if _, err := tx.Exec(ctx, `
				INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, postID, userID); err != nil {
				return err
			}
		}

		var likes int64
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id = $1`, postID).Scan(&likes); err != nil {
			return err
		}
		res.Likes = int(likes)

		return tx.Commit(ctx)
	})

	return res, err
}

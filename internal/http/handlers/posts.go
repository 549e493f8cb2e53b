package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type PostStore interface {
	Create(ctx context.Context, ownerID string, in post.Input) (post.Post, error)
	Update(ctx context.Context, id string, in post.Input) (post.Post, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	List(ctx context.Context) ([]post.Post, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, postID, userID string) (post.ToggleResult, error)
}

type PostsHandler struct {
	repo PostStore
}

func NewPostsHandler(repo PostStore) *PostsHandler {
	return &PostsHandler{repo: repo}
}

func (h *PostsHandler) List(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx)
	defer cancel()

	posts, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list posts")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": posts,
		"count": len(posts),
	})
}

func (h *PostsHandler) Get(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Post not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch post")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

func (h *PostsHandler) Create(ctx *gin.Context) {
	me, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req post.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := h.repo.Create(cctx, me.ID, req.ToInput())
	if err != nil {
		RespondInternal(ctx, "Could not create post")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

func (h *PostsHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Post not found")
	if !ok {
		return
	}

	var req post.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, ok := h.loadEditable(ctx, cctx, id); !ok {
		return
	}

	p, err := h.repo.Update(cctx, id, req.ToInput())
	if err != nil {
		h.respondErr(ctx, err, "Could not update post")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

func (h *PostsHandler) ConfirmDelete(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Post not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, ok := h.loadEditable(ctx, cctx, id)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"confirm": true, "post": p})
}

func (h *PostsHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Post not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, ok := h.loadEditable(ctx, cctx, id); !ok {
		return
	}

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondErr(ctx, err, "Could not delete post")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// ToggleLike flips the caller's like; calling it twice restores the original state.
func (h *PostsHandler) ToggleLike(ctx *gin.Context) {
	me, ok := currentActor(ctx)
	if !ok {
		return
	}

	id, ok := idParam(ctx, "id", "Post not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	res, err := h.repo.ToggleLike(cctx, id, me.ID)
	if err != nil {
		h.respondErr(ctx, err, "Could not update like")
		return
	}

	ctx.JSON(http.StatusOK, res)
}

// loadEditable fetches the post and checks the caller may change it: only
// its owner or an Admin can.
func (h *PostsHandler) loadEditable(ctx *gin.Context, cctx context.Context, id string) (post.Post, bool) {
	me, ok := currentActor(ctx)
	if !ok {
		return post.Post{}, false
	}

	p, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch post")
		return post.Post{}, false
	}

	if p.OwnerID != me.ID && me.Role != user.RoleAdmin {
		RespondForbidden(ctx, "You can only change your own posts")
		return post.Post{}, false
	}

	return p, true
}

func (h *PostsHandler) respondErr(ctx *gin.Context, err error, msg string) {
	if errors.Is(err, post.ErrNotFound) {
		RespondNotFound(ctx, "Post not found")
		return
	}
	RespondInternal(ctx, msg)
}

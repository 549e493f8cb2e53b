package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/gin-gonic/gin"
)

type ProjectStore interface {
	Create(ctx context.Context, ownerID, name string) (project.Project, error)
	Update(ctx context.Context, id, name string) (project.Project, error)
	GetByID(ctx context.Context, id string) (project.Project, error)
	List(ctx context.Context) ([]project.Project, error)
	Delete(ctx context.Context, id string) error
}

type ProjectsHandler struct {
	repo ProjectStore
}

func NewProjectsHandler(repo ProjectStore) *ProjectsHandler {
	return &ProjectsHandler{repo: repo}
}

func (h *ProjectsHandler) List(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx)
	defer cancel()

	projects, err := h.repo.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list projects")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": projects,
		"count": len(projects),
	})
}

func (h *ProjectsHandler) Get(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch project")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, p)
}

// Create makes the acting user the owner.
func (h *ProjectsHandler) Create(ctx *gin.Context) {
	me, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req project.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := h.repo.Create(cctx, me.ID, req.Name)
	if err != nil {
		if errors.Is(err, project.ErrOwnerNotFound) {
			RespondUnAuthorized(ctx, "unauthorized", "Account no longer exists")
			return
		}
		RespondInternal(ctx, "Could not create project")
		return
	}

	ctx.JSON(http.StatusCreated, p)
}

func (h *ProjectsHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}

	var req project.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := h.repo.Update(cctx, id, req.Name)
	if err != nil {
		h.respondErr(ctx, err, "Could not update project")
		return
	}

	ctx.JSON(http.StatusOK, p)
}

// ConfirmDelete shows what a delete would remove without removing it.
func (h *ProjectsHandler) ConfirmDelete(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	p, err := h.repo.GetByID(cctx, id)
	if err != nil {
		h.respondErr(ctx, err, "Could not fetch project")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"confirm": true,
		"project": p,
		"message": "Deleting this project also deletes all of its tasks.",
	})
}

func (h *ProjectsHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := h.repo.Delete(cctx, id); err != nil {
		h.respondErr(ctx, err, "Could not delete project")
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ProjectsHandler) respondErr(ctx *gin.Context, err error, msg string) {
	if errors.Is(err, project.ErrNotFound) {
		RespondNotFound(ctx, "Project not found")
		return
	}
	RespondInternal(ctx, msg)
}

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/storage"
	"github.com/gin-gonic/gin"
)

type TaskStore interface {
	Create(ctx context.Context, projectID string, in task.Input) (task.Task, error)
	Update(ctx context.Context, projectID, taskID string, in task.Input) (task.Task, error)
	Get(ctx context.Context, projectID, taskID string) (task.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]task.Task, error)
	Delete(ctx context.Context, projectID, taskID string) error
}

type BoardLister interface {
	Boards(ctx context.Context) ([]task.Board, error)
}

type AttachmentStore interface {
	Put(ctx context.Context, dir, name string, r io.Reader) (storage.FileInfo, error)
	Delete(ctx context.Context, rel string) error
}

const (
	attachmentField = "attachment"
	attachmentDir   = "tasks"
)

type TasksHandler struct {
	repo   TaskStore
	boards BoardLister
	files  AttachmentStore
}

func NewTasksHandler(repo TaskStore, boards BoardLister, files AttachmentStore) *TasksHandler {
	return &TasksHandler{repo: repo, boards: boards, files: files}
}

// ListAll returns every project with its tasks.
func (h *TasksHandler) ListAll(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx)
	defer cancel()

	boards, err := h.boards.Boards(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list tasks")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": boards,
		"count": len(boards),
	})
}

func (h *TasksHandler) ListByProject(ctx *gin.Context) {
	projectID, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	tasks, err := h.repo.ListByProject(cctx, projectID)
	if err != nil {
		h.respondErr(ctx, err, "Could not list tasks")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": tasks,
		"count": len(tasks),
	})
}

func (h *TasksHandler) Create(ctx *gin.Context) {
	projectID, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}

	var req task.Request
	if !Bind(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	attachment, ok := h.saveAttachment(ctx, cctx)
	if !ok {
		return
	}

	t, err := h.repo.Create(cctx, projectID, req.ToInput(attachment))
	if err != nil {
		h.discard(cctx, attachment)
		h.respondErr(ctx, err, "Could not create task")
		return
	}

	ctx.JSON(http.StatusCreated, t)
}

// Update is scoped to the project in the path: a task of another project is
// not found. Without a new upload the stored attachment is kept.
func (h *TasksHandler) Update(ctx *gin.Context) {
	projectID, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}
	taskID, ok := idParam(ctx, "taskId", "Task not found")
	if !ok {
		return
	}

	var req task.Request
	if !Bind(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	prev, err := h.repo.Get(cctx, projectID, taskID)
	if err != nil {
		h.respondErr(ctx, err, "Could not update task")
		return
	}

	attachment, ok := h.saveAttachment(ctx, cctx)
	if !ok {
		return
	}

	t, err := h.repo.Update(cctx, projectID, taskID, req.ToInput(attachment))
	if err != nil {
		h.discard(cctx, attachment)
		h.respondErr(ctx, err, "Could not update task")
		return
	}

	// the replaced file is no longer referenced
	if attachment != nil && prev.Attachment != nil {
		h.discard(cctx, prev.Attachment)
	}

	ctx.JSON(http.StatusOK, t)
}

func (h *TasksHandler) Delete(ctx *gin.Context) {
	projectID, ok := idParam(ctx, "id", "Project not found")
	if !ok {
		return
	}
	taskID, ok := idParam(ctx, "taskId", "Task not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := h.repo.Delete(cctx, projectID, taskID); err != nil {
		h.respondErr(ctx, err, "Could not delete task")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// saveAttachment stores the uploaded file of a multipart request, if any.
func (h *TasksHandler) saveAttachment(ctx *gin.Context, cctx context.Context) (*string, bool) {
	if !strings.HasPrefix(ctx.ContentType(), "multipart/") {
		return nil, true
	}

	fh, err := ctx.FormFile(attachmentField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		RespondBadRequest(ctx, "Invalid attachment", gin.H{"field": attachmentField})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		RespondBadRequest(ctx, "Invalid attachment", gin.H{"field": attachmentField})
		return nil, false
	}
	defer f.Close()

	info, err := h.files.Put(cctx, attachmentDir, fh.Filename, f)
	if err != nil {
		slog.Default().ErrorContext(cctx, "tasks.attachment_store_failed", "err", err)
		RespondInternal(ctx, "Could not store attachment")
		return nil, false
	}

	return &info.Path, true
}

func (h *TasksHandler) discard(ctx context.Context, path *string) {
	if path == nil {
		return
	}
	if err := h.files.Delete(context.WithoutCancel(ctx), *path); err != nil {
		slog.Default().WarnContext(ctx, "tasks.attachment_delete_failed", "path", *path, "err", err)
	}
}

func (h *TasksHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		RespondNotFound(ctx, "Project not found")
	case errors.Is(err, task.ErrNotFound):
		RespondNotFound(ctx, "Task not found")
	case errors.Is(err, task.ErrAssigneeNotFound):
		RespondBadRequest(ctx, "Invalid request body", gin.H{
			"fields": []FieldError{{Field: "assigneeId", Rule: "exists", Message: "must be an existing user"}},
		})
	default:
		RespondInternal(ctx, msg)
	}
}

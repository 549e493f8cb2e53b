package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
)

type CountsReader interface {
	Counts(ctx context.Context) (postgres.DashboardCounts, error)
}

type TaskLister interface {
	ListAll(ctx context.Context) ([]task.Task, error)
}

type DashboardHandler struct {
	counts CountsReader
	boards BoardLister
	tasks  TaskLister
}

func NewDashboardHandler(counts CountsReader, boards BoardLister, tasks TaskLister) *DashboardHandler {
	return &DashboardHandler{counts: counts, boards: boards, tasks: tasks}
}

func (h *DashboardHandler) Dashboard(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx)
	defer cancel()

	c, err := h.counts.Counts(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not load dashboard")
		return
	}

	ctx.JSON(http.StatusOK, c)
}

// Reports is the manager view: every project with its tasks plus the flat task list.
func (h *DashboardHandler) Reports(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx)
	defer cancel()

	boards, err := h.boards.Boards(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not load reports")
		return
	}

	tasks, err := h.tasks.ListAll(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not load reports")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"boards": boards,
		"tasks":  tasks,
	})
}

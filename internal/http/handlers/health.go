package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis Pinger // nil when running with the in-process bus
}

func NewHealthHandler(db Pinger, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 500*time.Millisecond)
	defer cancel()

	if err := h.db.Ping(cctx); err != nil {
		RespondUnavailable(ctx, "db not ready")
		return
	}

	if h.redis != nil {
		if err := h.redis.Ping(cctx); err != nil {
			RespondUnavailable(ctx, "redis not ready")
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

package handlers

import (
	"context"
	"time"

	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/middlewares"
	"github.com/geocoder89/insighthub/internal/utils"
	"github.com/gin-gonic/gin"
)

const opTimeout = 5 * time.Second

// withTimeout bounds store work by opTimeout and by the client staying connected.
func withTimeout(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), opTimeout)
}

// idParam reads a UUID path parameter. Anything that is not a UUID cannot
// name a row, so it is answered as not found.
func idParam(ctx *gin.Context, name, notFound string) (string, bool) {
	id := ctx.Param(name)
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, notFound)
		return "", false
	}
	return id, true
}

type actor struct {
	ID   string
	Role user.Role
}

func currentActor(ctx *gin.Context) (actor, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return actor{}, false
	}

	role, ok := middlewares.RoleFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return actor{}, false
	}

	return actor{ID: id, Role: role}, true
}

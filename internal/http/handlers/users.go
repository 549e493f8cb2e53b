package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserAdminStore interface {
	List(ctx context.Context) ([]user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Update(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	users UserAdminStore
}

func NewUsersHandler(users UserAdminStore) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := withTimeout(ctx)
	defer cancel()

	users, err := h.users.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": users,
		"count": len(users),
	})
}

// ToggleRole flips a Manager to Staff and back. Admin accounts are refused
// with an error notice and left untouched.
func (h *UsersHandler) ToggleRole(ctx *gin.Context) {
	id, ok := idParam(ctx, "id", "User not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)
	if err != nil {
		h.respondErr(ctx, err, "Could not update role")
		return
	}

	if err := u.ToggleRole(); err != nil {
		RespondNotice(ctx, NoticeError, "Admin roles cannot be changed here.", nil)
		return
	}

	updated, err := h.users.Update(cctx, u)
	if err != nil {
		h.respondErr(ctx, err, "Could not update role")
		return
	}

	RespondNotice(ctx, NoticeSuccess, "Role for "+updated.Username+" is now "+string(updated.Role)+".", gin.H{"user": updated})
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	me, ok := currentActor(ctx)
	if !ok {
		return
	}

	id, ok := idParam(ctx, "id", "User not found")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	u, err := h.users.GetByID(cctx, id)
	if err != nil {
		h.respondErr(ctx, err, "Could not delete user")
		return
	}

	if err := u.CanBeDeletedBy(me.ID); err != nil {
		switch {
		case errors.Is(err, user.ErrCannotDeleteSelf):
			RespondNotice(ctx, NoticeError, "You cannot delete your own account.", nil)
		default:
			RespondNotice(ctx, NoticeError, "Admin accounts cannot be deleted.", nil)
		}
		return
	}

	if err := h.users.Delete(cctx, id); err != nil {
		h.respondErr(ctx, err, "Could not delete user")
		return
	}

	RespondNotice(ctx, NoticeSuccess, "User "+u.Username+" deleted.", nil)
}

func (h *UsersHandler) respondErr(ctx *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case errors.Is(err, user.ErrUsernameTaken):
		RespondConflict(ctx, "username_taken", "Username is already in use.")
	default:
		RespondInternal(ctx, msg)
	}
}

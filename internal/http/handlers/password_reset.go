package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/geocoder89/insighthub/internal/auth"
	"github.com/geocoder89/insighthub/internal/config"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/mailer"
	"github.com/geocoder89/insighthub/internal/repo/postgres"
	"github.com/geocoder89/insighthub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ResetTokenStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, row postgres.PasswordResetRow) error
	GetByHashForUpdate(ctx context.Context, tx pgx.Tx, tokenHash string) (postgres.PasswordResetRow, error)
	MarkUsed(ctx context.Context, tx pgx.Tx, id string) error
}

type PasswordSetter interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	SetPasswordTx(ctx context.Context, tx pgx.Tx, id, passwordHash string) error
}

type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) error
}

type PasswordResetHandler struct {
	users    PasswordSetter
	resets   ResetTokenStore
	sessions SessionRevoker
	jwt      *auth.Manager
	mail     mailer.Mailer
	cfg      config.Config
}

func NewPasswordResetHandler(users PasswordSetter, resets ResetTokenStore, sessions SessionRevoker, jwtManager *auth.Manager, mail mailer.Mailer, cfg config.Config) *PasswordResetHandler {
	return &PasswordResetHandler{
		users:    users,
		resets:   resets,
		sessions: sessions,
		jwt:      jwtManager,
		mail:     mail,
		cfg:      cfg,
	}
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

const resetTokenBytes = 32

// Request always answers 202 so the endpoint does not reveal which emails
// have accounts.
func (h *PasswordResetHandler) Request(ctx *gin.Context) {
	var req PasswordResetRequest

	if !BindJSON(ctx, &req) {
		return
	}

	accepted := func() {
		ctx.JSON(http.StatusAccepted, gin.H{"status": "If the account exists, a reset link has been sent."})
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			slog.Default().ErrorContext(cctx, "password_reset.lookup_failed", "err", err)
		}
		accepted()
		return
	}

	raw, err := security.NewToken(resetTokenBytes)
	if err != nil {
		RespondInternal(ctx, "Could not start password reset")
		return
	}

	now := time.Now().UTC()
	row := postgres.PasswordResetRow{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: h.jwt.HashToken(raw),
		ExpiresAt: now.Add(time.Duration(h.cfg.PasswordResetTTLMinutes) * time.Minute),
		CreatedAt: now,
	}

	if err := h.resets.Create(cctx, row); err != nil {
		RespondInternal(ctx, "Could not start password reset")
		return
	}

	link := h.cfg.BaseURL + "/reset-password?token=" + url.QueryEscape(raw)

	err = h.mail.Send(context.WithoutCancel(cctx), mailer.Message{
		From:    h.cfg.Mail.From,
		To:      []string{u.Email},
		Subject: "[InsightHub] Password reset",
		Body: fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in %d minutes.\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
			u.Username, h.cfg.PasswordResetTTLMinutes, link),
	})
	if err != nil {
		slog.Default().WarnContext(cctx, "password_reset.mail_failed", "user_id", u.ID, "err", err)
	}

	accepted()
}

// Confirm sets the new password, burns the token and ends every session of
// the user, all in one transaction.
func (h *PasswordResetHandler) Confirm(ctx *gin.Context) {
	var req PasswordResetConfirmRequest

	if !BindJSON(ctx, &req) {
		return
	}

	invalid := func() {
		RespondBadRequest(ctx, "Reset link is invalid or has expired", gin.H{"token": "invalid"})
	}

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	tx, err := h.resets.BeginTx(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.resets.GetByHashForUpdate(cctx, tx, h.jwt.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, postgres.ErrResetTokenNotFound) {
			invalid()
			return
		}
		RespondInternal(ctx, "Could not reset password")
		return
	}

	if row.UsedAt != nil || time.Now().UTC().After(row.ExpiresAt) {
		invalid()
		return
	}

	if err := h.users.SetPasswordTx(cctx, tx, row.UserID, hash); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			invalid()
			return
		}
		RespondInternal(ctx, "Could not reset password")
		return
	}

	if err := h.resets.MarkUsed(cctx, tx, row.ID); err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	if err := h.sessions.RevokeAllForUser(cctx, tx, row.UserID); err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not reset password")
		return
	}

	RespondNotice(ctx, NoticeSuccess, "Your password has been changed. Please log in again.", nil)
}

package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/geocoder89/insighthub/internal/storage"
	"github.com/gin-gonic/gin"
)

type MediaStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, storage.FileInfo, error)
}

// MediaHandler serves stored attachments to signed in users.
type MediaHandler struct {
	files MediaStore
}

func NewMediaHandler(files MediaStore) *MediaHandler {
	return &MediaHandler{files: files}
}

func (h *MediaHandler) Get(ctx *gin.Context) {
	key := strings.TrimPrefix(ctx.Param("path"), "/")

	cctx, cancel := withTimeout(ctx)
	defer cancel()

	rc, info, err := h.files.Open(cctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			RespondNotFound(ctx, "File not found")
			return
		}
		RespondInternal(ctx, "Could not read file")
		return
	}
	defer rc.Close()

	ctx.Header("Cache-Control", "private, no-cache")
	ctx.Header("Content-Disposition", `attachment; filename="`+path.Base(info.Path)+`"`)
	ctx.Header("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	ctx.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, nil)
}

// Package storage files uploaded task attachments in a blob store under
// <dir>/<uuid>_<safe name> keys.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	blob "github.com/dalemusser/waffle/pantry/storage"
	"github.com/geocoder89/insighthub/internal/utils"
)

var (
	ErrInvalidPath = blob.ErrInvalidPath
	ErrNotFound    = blob.ErrNotFound
)

type FileInfo struct {
	Path        string // store key, slash separated
	Size        int64
	ContentType string
	ModTime     time.Time
}

func fileInfo(key string, o *blob.ObjectInfo) FileInfo {
	return FileInfo{Path: key, Size: o.Size, ContentType: o.ContentType, ModTime: o.LastModified}
}

type Attachments struct {
	store blob.Store
}

func NewAttachments(store blob.Store) *Attachments {
	return &Attachments{store: store}
}

// NewLocal keeps attachments on disk below root, creating it when missing.
func NewLocal(root string) (*Attachments, error) {
	store, err := blob.NewLocal(blob.LocalConfig{BasePath: root})
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	return NewAttachments(store), nil
}

// Put stores r as dir/<uuid>_<sanitized name>.
func (a *Attachments) Put(ctx context.Context, dir, name string, r io.Reader) (FileInfo, error) {
	key := path.Join(dir, utils.AttachmentName(name))

	err := a.store.Put(ctx, key, r, &blob.PutOptions{
		ContentType: blob.DetectContentType(name, nil),
		IfNotExists: true,
	})
	if err != nil {
		return FileInfo{}, fmt.Errorf("store attachment: %w", err)
	}

	info, err := a.store.Head(ctx, key)
	if err != nil {
		_ = a.store.Delete(ctx, key)
		return FileInfo{}, fmt.Errorf("stat attachment: %w", err)
	}

	return fileInfo(key, info), nil
}

// Open returns the stored file with its metadata. The caller closes it.
func (a *Attachments) Open(ctx context.Context, key string) (io.ReadCloser, FileInfo, error) {
	if !validKey(key) {
		return nil, FileInfo{}, ErrInvalidPath
	}

	rc, info, err := a.store.GetWithInfo(ctx, key)
	if err != nil {
		return nil, FileInfo{}, err
	}
	return rc, fileInfo(key, info), nil
}

// Delete removes a stored file. A missing file is not an error.
func (a *Attachments) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidPath
	}

	if err := a.store.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return err
	}
	return nil
}

// validKey refuses keys that would resolve to the store root itself.
func validKey(key string) bool {
	clean := blob.NormalizePath(key)
	return clean != "" && clean != "." && blob.ValidatePath(clean) == nil
}

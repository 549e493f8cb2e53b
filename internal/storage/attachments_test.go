package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	blob "github.com/dalemusser/waffle/pantry/storage"
)

func TestPutOpenAndDelete(t *testing.T) {
	root := t.TempDir()
	a, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	info, err := a.Put(ctx, "tasks", "../../evil name.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if !strings.HasPrefix(info.Path, "tasks/") || !strings.HasSuffix(info.Path, "_evil_name.txt") {
		t.Fatalf("path = %q", info.Path)
	}
	if info.Size != 5 {
		t.Fatalf("size = %d", info.Size)
	}

	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(info.Path)))
	if err != nil || string(b) != "hello" {
		t.Fatalf("read back = %q, %v", b, err)
	}

	rc, meta, err := a.Open(ctx, info.Path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "hello" || meta.ContentType != "text/plain" {
		t.Fatalf("open = %q %q", got, meta.ContentType)
	}

	if err := a.Delete(ctx, info.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// second delete is a no-op
	if err := a.Delete(ctx, info.Path); err != nil {
		t.Fatalf("delete again: %v", err)
	}

	if _, _, err := a.Open(ctx, info.Path); !errors.Is(err, ErrNotFound) {
		t.Fatalf("open after delete err = %v, want ErrNotFound", err)
	}
}

func TestKeysCannotEscapeOrHitTheRoot(t *testing.T) {
	root := t.TempDir()
	a, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	for _, p := range []string{"../outside.txt", "tasks/../../x", "", "/", "."} {
		if err := a.Delete(context.Background(), p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Delete(%q) err = %v, want ErrInvalidPath", p, err)
		}
		if _, _, err := a.Open(context.Background(), p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Open(%q) err = %v, want ErrInvalidPath", p, err)
		}
	}

	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root removed: %v", err)
	}
}

func TestPutHonoursCanceledContext(t *testing.T) {
	a := NewAttachments(blob.NewMemory(blob.MemoryConfig{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Put(ctx, "tasks", "a.txt", strings.NewReader("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
}

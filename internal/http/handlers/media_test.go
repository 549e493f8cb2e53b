package handlers_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	blob "github.com/dalemusser/waffle/pantry/storage"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/handlers"
	"github.com/geocoder89/insighthub/internal/storage"
)

func TestMediaHandler(t *testing.T) {
	files := storage.NewAttachments(blob.NewMemory(blob.MemoryConfig{}))
	info, err := files.Put(context.Background(), "tasks", "notes.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	h := handlers.NewMediaHandler(files)
	r := setupRouter(http.MethodGet, "/media/*path", asActor(newUUID(), user.RoleStaff), h.Get)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"stored file", "/media/" + info.Path, http.StatusOK, "hello"},
		{"unknown file", "/media/tasks/missing.txt", http.StatusNotFound, ""},
		{"traversal", "/media/tasks/..%2F..%2Fetc/passwd", http.StatusNotFound, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodGet, tc.path, "")
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantBody != "" {
				if w.Body.String() != tc.wantBody {
					t.Fatalf("body = %q", w.Body.String())
				}
				if ct := w.Header().Get("Content-Type"); ct != "text/plain" {
					t.Fatalf("Content-Type = %q", ct)
				}
			}
		})
	}
}

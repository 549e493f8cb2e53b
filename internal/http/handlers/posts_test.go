package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/geocoder89/insighthub/internal/domain/post"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/handlers"
)

type fakePostsRepo struct {
	createFn func(ctx context.Context, ownerID string, in post.Input) (post.Post, error)
	updateFn func(ctx context.Context, id string, in post.Input) (post.Post, error)
	getFn    func(ctx context.Context, id string) (post.Post, error)
	listFn   func(ctx context.Context) ([]post.Post, error)
	deleteFn func(ctx context.Context, id string) error
	likeFn   func(ctx context.Context, postID, userID string) (post.ToggleResult, error)
}

func (f *fakePostsRepo) Create(ctx context.Context, ownerID string, in post.Input) (post.Post, error) {
	if f.createFn != nil {
		return f.createFn(ctx, ownerID, in)
	}
	return post.Post{}, nil
}

func (f *fakePostsRepo) Update(ctx context.Context, id string, in post.Input) (post.Post, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, in)
	}
	return post.Post{ID: id, Title: in.Title, Tags: in.Tags}, nil
}

func (f *fakePostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return post.Post{}, post.ErrNotFound
}

func (f *fakePostsRepo) List(ctx context.Context) ([]post.Post, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []post.Post{}, nil
}

func (f *fakePostsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakePostsRepo) ToggleLike(ctx context.Context, postID, userID string) (post.ToggleResult, error) {
	if f.likeFn != nil {
		return f.likeFn(ctx, postID, userID)
	}
	return post.ToggleResult{}, nil
}

func TestCreatePostHandler_ParsesTagsAndSetsOwner(t *testing.T) {
	me := newUUID()
	var gotOwner string
	var got post.Input

	repo := &fakePostsRepo{
		createFn: func(ctx context.Context, ownerID string, in post.Input) (post.Post, error) {
			gotOwner, got = ownerID, in
			return post.Post{ID: newUUID(), OwnerID: ownerID, Title: in.Title, Tags: in.Tags}, nil
		},
	}

	h := handlers.NewPostsHandler(repo)
	r := setupRouter(http.MethodPost, "/posts", asActor(me, user.RoleStaff), h.Create)

	w := doJSON(t, r, http.MethodPost, "/posts", `{"title":"Hello","content":"<b>a < b & c</b><script>x</script>","tags":"go, backend, go, "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	if gotOwner != me {
		t.Fatalf("owner = %q, want %q", gotOwner, me)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "backend" {
		t.Fatalf("tags = %v", got.Tags)
	}
	if got.Content != "a < b & c" {
		t.Fatalf("content = %q, want plain text", got.Content)
	}
}

func TestEditPostPermissions(t *testing.T) {
	owner := newUUID()
	postID := newUUID()

	stored := post.Post{ID: postID, OwnerID: owner, Title: "Mine"}

	tests := []struct {
		name       string
		actorID    string
		role       user.Role
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"owner updates", owner, user.RoleStaff, http.MethodPut, "/posts/" + postID, `{"title":"T","content":"c"}`, http.StatusOK},
		{"stranger cannot update", newUUID(), user.RoleManager, http.MethodPut, "/posts/" + postID, `{"title":"T","content":"c"}`, http.StatusForbidden},
		{"admin updates", newUUID(), user.RoleAdmin, http.MethodPut, "/posts/" + postID, `{"title":"T","content":"c"}`, http.StatusOK},
		{"stranger cannot see delete confirmation", newUUID(), user.RoleStaff, http.MethodGet, "/posts/" + postID + "/delete", "", http.StatusForbidden},
		{"owner sees delete confirmation", owner, user.RoleStaff, http.MethodGet, "/posts/" + postID + "/delete", "", http.StatusOK},
		{"stranger cannot delete", newUUID(), user.RoleStaff, http.MethodPost, "/posts/" + postID + "/delete", "", http.StatusForbidden},
		{"admin deletes", newUUID(), user.RoleAdmin, http.MethodPost, "/posts/" + postID + "/delete", "", http.StatusNoContent},
		{"unknown post", owner, user.RoleStaff, http.MethodPost, "/posts/" + newUUID() + "/delete", "", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deleted := false
			repo := &fakePostsRepo{
				getFn: func(ctx context.Context, id string) (post.Post, error) {
					if id != postID {
						return post.Post{}, post.ErrNotFound
					}
					return stored, nil
				},
				deleteFn: func(ctx context.Context, id string) error {
					deleted = true
					return nil
				},
			}

			h := handlers.NewPostsHandler(repo)
			actor := asActor(tc.actorID, tc.role)

			handler, route := h.Update, "/posts/:id"
			switch tc.method {
			case http.MethodGet:
				handler, route = h.ConfirmDelete, "/posts/:id/delete"
			case http.MethodPost:
				handler, route = h.Delete, "/posts/:id/delete"
			}

			r := setupRouter(tc.method, route, actor, handler)
			w := doJSON(t, r, tc.method, tc.path, tc.body)

			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantStatus == http.StatusForbidden && deleted {
				t.Fatalf("forbidden request must not delete")
			}
		})
	}
}

func TestToggleLikeHandler(t *testing.T) {
	me := newUUID()
	postID := newUUID()
	liked := map[string]bool{}

	repo := &fakePostsRepo{
		likeFn: func(ctx context.Context, pid, uid string) (post.ToggleResult, error) {
			if pid != postID {
				return post.ToggleResult{}, post.ErrNotFound
			}
			liked[uid] = !liked[uid]
			n := 0
			for _, v := range liked {
				if v {
					n++
				}
			}
			return post.ToggleResult{Liked: liked[uid], Likes: n}, nil
		},
	}

	h := handlers.NewPostsHandler(repo)
	r := setupRouter(http.MethodPost, "/posts/:id/like", asActor(me, user.RoleStaff), h.ToggleLike)

	want := []post.ToggleResult{{Liked: true, Likes: 1}, {Liked: false, Likes: 0}}
	for i, exp := range want {
		w := doJSON(t, r, http.MethodPost, "/posts/"+postID+"/like", "")
		if w.Code != http.StatusOK {
			t.Fatalf("toggle %d: status %d", i, w.Code)
		}
		var got post.ToggleResult
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != exp {
			t.Fatalf("toggle %d: got %+v, want %+v", i, got, exp)
		}
	}

	w := doJSON(t, r, http.MethodPost, "/posts/"+newUUID()+"/like", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown post status %d, want 404", w.Code)
	}
}

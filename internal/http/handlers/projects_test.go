package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/geocoder89/insighthub/internal/domain/project"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/handlers"
)

type fakeProjectsRepo struct {
	createFn func(ctx context.Context, ownerID, name string) (project.Project, error)
	updateFn func(ctx context.Context, id, name string) (project.Project, error)
	getFn    func(ctx context.Context, id string) (project.Project, error)
	listFn   func(ctx context.Context) ([]project.Project, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakeProjectsRepo) Create(ctx context.Context, ownerID, name string) (project.Project, error) {
	if f.createFn != nil {
		return f.createFn(ctx, ownerID, name)
	}
	return project.Project{}, nil
}

func (f *fakeProjectsRepo) Update(ctx context.Context, id, name string) (project.Project, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, name)
	}
	return project.Project{}, nil
}

func (f *fakeProjectsRepo) GetByID(ctx context.Context, id string) (project.Project, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return project.Project{}, nil
}

func (f *fakeProjectsRepo) List(ctx context.Context) ([]project.Project, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return []project.Project{}, nil
}

func (f *fakeProjectsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func TestCreateProjectHandler(t *testing.T) {
	me := newUUID()

	tests := []struct {
		name       string
		body       string
		repoErr    error
		wantStatus int
	}{
		{"owner is the acting user", `{"name":"Apollo"}`, nil, http.StatusCreated},
		{"missing name", `{}`, nil, http.StatusBadRequest},
		{"name too long", `{"name":"` + strings.Repeat("x", 201) + `"}`, nil, http.StatusBadRequest},
		{"repo failure", `{"name":"Apollo"}`, errors.New("db down"), http.StatusInternalServerError},
		{"owner vanished", `{"name":"Apollo"}`, project.ErrOwnerNotFound, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotOwner string
			repo := &fakeProjectsRepo{
				createFn: func(ctx context.Context, ownerID, name string) (project.Project, error) {
					gotOwner = ownerID
					if tc.repoErr != nil {
						return project.Project{}, tc.repoErr
					}
					return project.Project{ID: newUUID(), Name: name, OwnerID: ownerID}, nil
				},
			}

			h := handlers.NewProjectsHandler(repo)
			r := setupRouter(http.MethodPost, "/projects", asActor(me, user.RoleManager), h.Create)

			w := doJSON(t, r, http.MethodPost, "/projects", tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantStatus == http.StatusCreated {
				if gotOwner != me {
					t.Fatalf("owner = %q, want acting user %q", gotOwner, me)
				}
				var p project.Project
				if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if p.Name != "Apollo" {
					t.Fatalf("name = %q", p.Name)
				}
			}
		})
	}
}

func TestGetProjectHandler(t *testing.T) {
	known := newUUID()

	repo := &fakeProjectsRepo{
		getFn: func(ctx context.Context, id string) (project.Project, error) {
			if id == known {
				return project.Project{ID: id, Name: "Apollo"}, nil
			}
			return project.Project{}, project.ErrNotFound
		},
	}
	h := handlers.NewProjectsHandler(repo)
	r := setupRouter(http.MethodGet, "/projects/:id", nil, h.Get)

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"found", known, http.StatusOK},
		{"unknown", newUUID(), http.StatusNotFound},
		{"not a uuid", "42", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodGet, "/projects/"+tc.id, "")
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
		})
	}
}

func TestDeleteProjectNeedsConfirmationStep(t *testing.T) {
	id := newUUID()
	deleted := 0

	repo := &fakeProjectsRepo{
		getFn: func(ctx context.Context, got string) (project.Project, error) {
			return project.Project{ID: got, Name: "Apollo"}, nil
		},
		deleteFn: func(ctx context.Context, got string) error {
			if got != id {
				return project.ErrNotFound
			}
			deleted++
			return nil
		},
	}
	h := handlers.NewProjectsHandler(repo)

	confirm := setupRouter(http.MethodGet, "/projects/:id/delete", nil, h.ConfirmDelete)
	w := doJSON(t, confirm, http.MethodGet, "/projects/"+id+"/delete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("confirm status %d body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Confirm bool            `json:"confirm"`
		Project project.Project `json:"project"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Confirm || body.Project.ID != id {
		t.Fatalf("unexpected confirmation body: %s", w.Body.String())
	}
	if deleted != 0 {
		t.Fatalf("confirmation must not delete")
	}

	del := setupRouter(http.MethodPost, "/projects/:id/delete", nil, h.Delete)
	w = doJSON(t, del, http.MethodPost, "/projects/"+id+"/delete", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status %d body=%s", w.Code, w.Body.String())
	}
	if deleted != 1 {
		t.Fatalf("deleted %d times, want 1", deleted)
	}

	w = doJSON(t, del, http.MethodPost, "/projects/"+newUUID()+"/delete", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown project status %d, want 404", w.Code)
	}
}

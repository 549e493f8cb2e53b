package handlers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/handlers"
)

func TestUpdateProfileHandler(t *testing.T) {
	meID := newUUID()

	tests := []struct {
		name       string
		body       string
		updateErr  error
		wantStatus int
		wantCode   string
	}{
		{"valid", `{"username":"grace","email":"grace@example.com"}`, nil, http.StatusOK, ""},
		{"bad email", `{"username":"grace","email":"nope"}`, nil, http.StatusBadRequest, "invalid_request"},
		{"short username", `{"username":"g","email":"g@example.com"}`, nil, http.StatusBadRequest, "invalid_request"},
		{"email taken", `{"username":"grace","email":"taken@example.com"}`, user.ErrEmailTaken, http.StatusConflict, "email_taken"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeUsers(user.User{ID: meID, Username: "old", Email: "old@example.com", Role: user.RoleManager, IsStaff: true})
			if tc.updateErr != nil {
				repo.updateFn = func(ctx context.Context, u user.User) (user.User, error) {
					return user.User{}, tc.updateErr
				}
			}

			h := handlers.NewProfileHandler(repo)
			r := setupRouter(http.MethodPut, "/profile", asActor(meID, user.RoleManager), h.Update)

			w := doJSON(t, r, http.MethodPut, "/profile", tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}

			if tc.wantCode != "" {
				if got := errorCode(t, w); got != tc.wantCode {
					t.Fatalf("error code = %q, want %q", got, tc.wantCode)
				}
				return
			}

			resp := decodeNotice(t, w)
			if resp.Notice.Level != handlers.NoticeSuccess || resp.User == nil {
				t.Fatalf("unexpected response: %s", w.Body.String())
			}
			// role and flags are not editable from the profile
			if resp.User.Role != user.RoleManager || !resp.User.IsStaff {
				t.Fatalf("access fields changed: %+v", resp.User)
			}
			if resp.User.Email != "grace@example.com" {
				t.Fatalf("email = %q", resp.User.Email)
			}
		})
	}
}

func TestGetProfileHandler_DeletedUser(t *testing.T) {
	h := handlers.NewProfileHandler(newFakeUsers())
	r := setupRouter(http.MethodGet, "/profile", asActor(newUUID(), user.RoleStaff), h.Get)

	w := doJSON(t, r, http.MethodGet, "/profile", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", w.Code)
	}
}

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/insighthub/internal/auth"
	"github.com/geocoder89/insighthub/internal/config"
	"github.com/geocoder89/insighthub/internal/db"
	"github.com/geocoder89/insighthub/internal/domain/task"
	"github.com/geocoder89/insighthub/internal/domain/user"
	apphttp "github.com/geocoder89/insighthub/internal/http"
	"github.com/geocoder89/insighthub/internal/http/middlewares"
	"github.com/geocoder89/insighthub/internal/mailer"
	"github.com/geocoder89/insighthub/internal/notifications"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/geocoder89/insighthub/internal/realtime"
	"github.com/geocoder89/insighthub/internal/repo/postgres"
	"github.com/geocoder89/insighthub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Env:                 "test",
		JWTSecret:           "test-secret-key",
		JWTAccessTTLMinutes: 60,
		JWTRefreshTTLDays:   7,
		AdminEmail:          "admin@example.com",
		AdminPassword:       "admin-password",
		AdminName:           "admin",
		Mail:                config.MailConfig{Backend: "console", From: "InsightHub <no-reply@example.com>", Timeout: time.Second},
		AdminAlertEmails:    []string{"alerts@example.com"},
		UploadDir:           t.TempDir(),
		MaxUploadBytes:      1 << 20,
		BaseURL:             "http://localhost:8080",

		PasswordResetTTLMinutes: 60,
	}
}

// brokenBus fails every publish, as a down redis would.
type brokenBus struct{}

func (brokenBus) Publish(context.Context, string, realtime.Envelope) error {
	return errors.New("connection refused")
}

// outbox records every mail instead of sending it.
type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

// withSubject returns the recorded mails whose subject is subject.
func (o *outbox) withSubject(subject string) []mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []mailer.Message
	for _, m := range o.msgs {
		if m.Subject == subject {
			out = append(out, m)
		}
	}
	return out
}

type app struct {
	router http.Handler
	outbox *outbox
	pool   *pgxpool.Pool
	users  *postgres.UsersRepo
	prom   *observability.Prom
}

func setupApp(t *testing.T) app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		TRUNCATE post_likes, post_tags, posts, tags, tasks, projects,
		         password_reset_tokens, refresh_tokens, users
		CASCADE
	`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	cfg := testConfig(t)
	if _, err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	jwtManager := auth.NewManager(cfg.JWTSecret, time.Hour, 24*time.Hour)
	hub := realtime.NewHub(jwtManager.UserIDFromAccessToken, nil, logger)
	mail := &outbox{}

	files, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		t.Fatalf("upload storage: %v", err)
	}

	dispatcher := notifications.NewDispatcher(brokenBus{}, mail, notifications.Config{
		From:        cfg.Mail.From,
		AdminEmails: cfg.AdminAlertEmails,
	}, logger, prom)

	users := postgres.NewUsersRepo(pool, prom, dispatcher)
	projects := postgres.NewProjectsRepo(pool, prom, dispatcher)
	tasks := postgres.NewTasksRepo(pool, prom, dispatcher)

	router := apphttp.NewRouter(apphttp.Deps{
		Config:      cfg,
		Prom:        prom,
		Gatherer:    reg,
		DB:          pool,
		JWT:         jwtManager,
		Mail:        mail,
		Files:       files,
		Hub:         hub,
		Users:       users,
		Projects:    projects,
		Tasks:       tasks,
		Posts:       postgres.NewPostsRepo(pool, prom, dispatcher),
		Dashboard:   postgres.NewDashboardRepo(pool, prom),
		Refresh:     postgres.NewRefreshTokensRepo(pool, prom),
		Resets:      postgres.NewPasswordResetsRepo(pool, prom),
		AuthLimiter: middlewares.NewRateLimiter(1000, time.Minute),
		APILimiter:  middlewares.NewRateLimiter(1000, time.Minute),
	})

	return app{router: router, outbox: mail, pool: pool, users: users, prom: prom}
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()
	err := json.Unmarshal(w.Body.Bytes(), out)
	if err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

type session struct {
	AccessToken string    `json:"accessToken"`
	User        user.User `json:"user"`
}

func signUp(t *testing.T, a app, name string) session {
	t.Helper()

	w := doRequest(a.router, http.MethodPost, "/signup", "",
		`{"username":"`+name+`","email":"`+name+`@example.com","password":"password123"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body=%s", name, w.Code, w.Body.String())
	}

	var s session
	mustReadJSON(t, w, &s)
	return s
}

func login(t *testing.T, a app, email, password string) session {
	t.Helper()

	w := doRequest(a.router, http.MethodPost, "/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, w.Code, w.Body.String())
	}

	var s session
	mustReadJSON(t, w, &s)
	return s
}

func setRole(t *testing.T, a app, id string, role user.Role) {
	t.Helper()

	u, err := a.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	u.Role = role
	if _, err := a.users.Update(context.Background(), u); err != nil {
		t.Fatalf("update user: %v", err)
	}
}

type notice struct {
	Notice struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notice"`
}

func TestRoleChangesApplyWithoutNewToken(t *testing.T) {
	a := setupApp(t)
	alice := signUp(t, a, "alice")

	w := doRequest(a.router, http.MethodPost, "/projects", alice.AccessToken, `{"name":"Apollo"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("staff create project: status %d, want 403", w.Code)
	}

	setRole(t, a, alice.User.ID, user.RoleManager)

	w = doRequest(a.router, http.MethodPost, "/projects", alice.AccessToken, `{"name":"Apollo"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("manager create project: status %d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(a.router, http.MethodGet, "/admin/users", alice.AccessToken, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("manager on admin route: status %d, want 403", w.Code)
	}

	w = doRequest(a.router, http.MethodGet, "/projects", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d, want 401", w.Code)
	}
}

func TestTaskCompletedFlipSurvivesBrokenRealtime(t *testing.T) {
	a := setupApp(t)
	alice := signUp(t, a, "alice")
	setRole(t, a, alice.User.ID, user.RoleManager)

	w := doRequest(a.router, http.MethodPost, "/projects", alice.AccessToken, `{"name":"Apollo"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create project: status %d body=%s", w.Code, w.Body.String())
	}
	var p struct {
		ID string `json:"id"`
	}
	mustReadJSON(t, w, &p)

	w = doRequest(a.router, http.MethodPost, "/projects/"+p.ID+"/tasks", alice.AccessToken,
		`{"title":"Ship","assigneeId":"`+alice.User.ID+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status %d body=%s", w.Code, w.Body.String())
	}
	var tk task.Task
	mustReadJSON(t, w, &tk)

	w = doRequest(a.router, http.MethodPut, "/projects/"+p.ID+"/tasks/"+tk.ID, alice.AccessToken,
		`{"title":"Ship","completed":true,"assigneeId":"`+alice.User.ID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update task: status %d body=%s", w.Code, w.Body.String())
	}

	w = doRequest(a.router, http.MethodGet, "/projects/"+p.ID+"/tasks", alice.AccessToken, "")
	var list struct {
		Items []task.Task `json:"items"`
	}
	mustReadJSON(t, w, &list)
	if len(list.Items) != 1 || !list.Items[0].Completed {
		t.Fatalf("completed not persisted: %s", w.Body.String())
	}

	if n := testutil.ToFloat64(a.prom.NotifyDispatchTotal.WithLabelValues("realtime", "task", "error")); n == 0 {
		t.Fatalf("failed publishes were not counted")
	}
}

func TestAdminRefusals(t *testing.T) {
	a := setupApp(t)
	admin := login(t, a, "admin@example.com", "admin-password")
	if admin.User.Role != user.RoleAdmin {
		t.Fatalf("seeded admin role = %s", admin.User.Role)
	}

	bob := signUp(t, a, "bob")

	tests := []struct {
		name      string
		path      string
		wantLevel string
	}{
		{"toggle admin", "/admin/users/" + admin.User.ID + "/toggle-role", "error"},
		{"delete self", "/admin/users/" + admin.User.ID + "/delete", "error"},
		{"toggle staff", "/admin/users/" + bob.User.ID + "/toggle-role", "success"},
		{"delete staff", "/admin/users/" + bob.User.ID + "/delete", "success"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(a.router, http.MethodPost, tc.path, admin.AccessToken, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status %d body=%s", w.Code, w.Body.String())
			}
			var n notice
			mustReadJSON(t, w, &n)
			if n.Notice.Level != tc.wantLevel {
				t.Fatalf("notice = %+v, want level %s", n.Notice, tc.wantLevel)
			}
		})
	}

	got, err := a.users.GetByID(context.Background(), admin.User.ID)
	if err != nil {
		t.Fatalf("admin must still exist: %v", err)
	}
	if got.Role != user.RoleAdmin || !got.IsSuperuser {
		t.Fatalf("admin was modified: %+v", got)
	}
}

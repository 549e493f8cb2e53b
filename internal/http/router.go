package http

import (
	"github.com/geocoder89/insighthub/internal/auth"
	"github.com/geocoder89/insighthub/internal/config"
	"github.com/geocoder89/insighthub/internal/domain/user"
	"github.com/geocoder89/insighthub/internal/http/handlers"
	"github.com/geocoder89/insighthub/internal/http/middlewares"
	"github.com/geocoder89/insighthub/internal/mailer"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/geocoder89/insighthub/internal/realtime"
	"github.com/geocoder89/insighthub/internal/repo/postgres"
	"github.com/geocoder89/insighthub/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	serviceName  = "insighthub-api"
	maxJSONBytes = 1 << 20
)

type Deps struct {
	Config   config.Config
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer

	DB    handlers.Pinger
	Redis handlers.Pinger // nil without redis

	JWT   *auth.Manager
	Mail  mailer.Mailer
	Files *storage.Attachments
	Hub   *realtime.Hub

	Users     *postgres.UsersRepo
	Projects  *postgres.ProjectsRepo
	Tasks     *postgres.TasksRepo
	Posts     *postgres.PostsRepo
	Dashboard *postgres.DashboardRepo
	Refresh   *postgres.RefreshTokensRepo
	Resets    *postgres.PasswordResetsRepo

	AuthLimiter *middlewares.RateLimiter
	APILimiter  *middlewares.RateLimiter
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(d.Prom.GinHandleMiddleware())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSOrigins))
	r.Use(middlewares.SecurityHeaders())

	jsonBody := []gin.HandlerFunc{middlewares.MaxBodyBytes(maxJSONBytes), middlewares.RequireJSON()}
	uploadBody := []gin.HandlerFunc{
		middlewares.MaxBodyBytes(d.Config.MaxUploadBytes),
		middlewares.RequireContentType("application/json", "multipart/form-data"),
	}

	// health and metrics
	health := handlers.NewHealthHandler(d.DB, d.Redis)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	// the socket authenticates with its first frame, not a header
	r.GET("/ws/notifications", gin.WrapF(d.Hub.ServeWS))

	authMW := middlewares.NewAuthMiddleware(d.JWT, d.Users)
	managers := authMW.RequireRole(user.RoleManager, user.RoleAdmin)
	admins := authMW.RequireRole(user.RoleAdmin)

	// public
	authH := handlers.NewAuthHandler(d.Users, d.JWT, d.Refresh, d.Config)
	resetH := handlers.NewPasswordResetHandler(d.Users, d.Resets, d.Refresh, d.JWT, d.Mail, d.Config)

	public := r.Group("/")
	public.Use(d.AuthLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	public.Use(jsonBody...)

	public.POST("/signup", authH.SignUp)
	public.POST("/login", authH.Login)
	public.POST("/auth/refresh", authH.Refresh)
	public.POST("/auth/logout", authH.Logout)
	// browsers only send the refresh cookie under /auth, so this alias just answers 204
	public.POST("/logout", authH.Logout)
	public.POST("/auth/password-reset", resetH.Request)
	public.POST("/auth/password-reset/confirm", resetH.Confirm)

	projectsH := handlers.NewProjectsHandler(d.Projects)
	tasksH := handlers.NewTasksHandler(d.Tasks, d.Projects, d.Files)
	postsH := handlers.NewPostsHandler(d.Posts)
	usersH := handlers.NewUsersHandler(d.Users)
	profileH := handlers.NewProfileHandler(d.Users)
	dashH := handlers.NewDashboardHandler(d.Dashboard, d.Projects, d.Tasks)
	mediaH := handlers.NewMediaHandler(d.Files)

	api := r.Group("/")
	api.Use(authMW.RequireAuth())
	api.Use(d.APILimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	withJSON := api.Group("", jsonBody...)
	mgr := api.Group("", managers)
	mgrJSON := mgr.Group("", jsonBody...)
	mgrUpload := mgr.Group("", uploadBody...)
	admin := api.Group("/admin", admins)

	api.GET("/dashboard", dashH.Dashboard)
	api.GET("/profile", profileH.Get)
	withJSON.PUT("/profile", profileH.Update)

	api.GET("/projects", projectsH.List)
	api.GET("/projects/:id", projectsH.Get)
	mgrJSON.POST("/projects", projectsH.Create)
	mgrJSON.PUT("/projects/:id", projectsH.Update)
	mgr.GET("/projects/:id/delete", projectsH.ConfirmDelete)
	mgr.POST("/projects/:id/delete", projectsH.Delete)

	api.GET("/projects/:id/tasks", tasksH.ListByProject)
	mgrUpload.POST("/projects/:id/tasks", tasksH.Create)
	mgrUpload.PUT("/projects/:id/tasks/:taskId", tasksH.Update)
	mgr.DELETE("/projects/:id/tasks/:taskId", tasksH.Delete)
	mgr.POST("/projects/:id/tasks/:taskId/delete", tasksH.Delete)
	api.GET("/tasks", tasksH.ListAll)

	api.GET("/posts", postsH.List)
	api.GET("/posts/:id", postsH.Get)
	withJSON.POST("/posts", postsH.Create)
	withJSON.PUT("/posts/:id", postsH.Update)
	api.GET("/posts/:id/delete", postsH.ConfirmDelete)
	api.POST("/posts/:id/delete", postsH.Delete)
	api.POST("/posts/:id/like", postsH.ToggleLike)

	mgr.GET("/manager/reports", dashH.Reports)

	admin.GET("/users", usersH.List)
	admin.POST("/users/:id/toggle-role", usersH.ToggleRole)
	admin.POST("/users/:id/delete", usersH.Delete)

	// uploaded attachments, readable by any signed in user
	api.GET("/media/*path", mediaH.Get)

	return r
}

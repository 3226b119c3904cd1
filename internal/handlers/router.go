package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/kraman82351/Task-management/internal/auth"
	"github.com/kraman82351/Task-management/internal/metrics"
	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/types"
)

const requestTimeout = 60 * time.Second

// Deps are the collaborators the router is built from. Limiter, Metrics and
// Health are optional.
type Deps struct {
	Users     *services.UserService
	Tasks     *services.TaskService
	Sessions  *auth.Sessions
	Cookie    CookieConfig
	ClientURL string
	Limiter   Limiter
	Metrics   *metrics.Metrics
	Health    HealthCheck
	Logger    *slog.Logger
}

// NewRouter builds the HTTP routing table.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authn := NewAuthenticator(d.Sessions, d.Users, d.Cookie.Name, logger)
	authHandler := NewAuthHandler(d.Users, d.Sessions, authn, d.Cookie, logger)
	taskHandler := NewTaskHandler(d.Tasks, logger)
	adminHandler := NewAdminHandler(d.Users, logger)

	limit := func(name string) func(http.Handler) http.Handler {
		return RateLimit(d.Limiter, name, d.Metrics, logger)
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(logger),
		Recoverer(logger),
		d.Metrics.Middleware,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{d.ClientURL},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.Timeout(requestTimeout),
	)
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Get("/healthz", Healthz(d.Health, logger))
	if d.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.With(limit("register")).Post("/register", authHandler.Register)
		r.With(limit("login")).Post("/login", authHandler.Login)
		r.Get("/logout", authHandler.Logout)
		r.Get("/login-status", authHandler.LoginStatus)
		r.Post("/verify-user/{verificationToken}", authHandler.VerifyUser)
		r.With(limit("forgot-password")).Post("/forgot-password", authHandler.ForgotPassword)
		r.With(limit("reset-password")).Post("/reset-password/{resetPasswordToken}", authHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)

			r.Get("/user", authHandler.GetUser)
			r.Patch("/user", authHandler.UpdateUser)
			r.Post("/verify-email", authHandler.VerifyEmail)
			r.Patch("/change-password", authHandler.ChangePassword)

			r.With(RequireRole(types.RoleAdmin, types.RoleCreator)).Get("/admin/users", adminHandler.ListUsers)
			r.With(RequireRole(types.RoleAdmin)).Delete("/admin/users/{id}", adminHandler.DeleteUser)

			r.Post("/task/create", taskHandler.CreateTask)
			r.Get("/tasks", taskHandler.ListTasks)
			for _, path := range []string{"/task", "/task/"} {
				r.Get(path, taskHandler.MissingTaskID)
				r.Patch(path, taskHandler.MissingTaskID)
				r.Delete(path, taskHandler.MissingTaskID)
			}
			r.Get("/task/{id}", taskHandler.GetTask)
			r.Patch("/task/{id}", taskHandler.UpdateTask)
			r.Delete("/task/{id}", taskHandler.DeleteTask)
			if d.Tasks.AttachmentsEnabled() {
				r.Post("/task/{id}/attachment", taskHandler.UploadAttachment)
				r.Get("/task/{id}/attachment", taskHandler.DownloadAttachment)
			}
		})
	})

	return router
}

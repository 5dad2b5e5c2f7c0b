package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"oncoscan/internal/audit"
	"oncoscan/internal/auth"
	"oncoscan/internal/httpserver/handlers"
	"oncoscan/internal/inference"
	"oncoscan/internal/metrics"
	"oncoscan/internal/pipeline"
	"oncoscan/internal/users"
)

// Deps are the process-wide services the routes are built from.
type Deps struct {
	DB       *gorm.DB
	Auth     *auth.Service
	Users    *users.Repository
	Audit    *audit.Log
	Pipeline *pipeline.Pipeline
	Manager  *inference.Manager
	Metrics  *metrics.Metrics
	Logger   *zap.SugaredLogger

	CORSOrigins         []string
	MaxUploadBytes      int64
	ReloadRequiresAdmin bool
	StaticDir           string
}

func NewRouter(d Deps) http.Handler {
	lg := d.Logger
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(lg), middleware.Recoverer, cors(d.CORSOrigins))

	login := handlers.Login(d.Auth, d.Audit, d.Metrics, lg)
	r.Post("/login", login)
	r.Post("/token", login)
	r.Get("/status", handlers.Status(d.Manager))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(d.Auth, lg))
		protected.Get("/users/me", handlers.Me())
		protected.Post("/predict", handlers.Predict(d.Pipeline, d.MaxUploadBytes, lg))
		protected.Get("/predictions", handlers.MyPredictions(d.Audit, lg))

		protected.Group(func(reload chi.Router) {
			if d.ReloadRequiresAdmin {
				reload.Use(auth.RequireAdmin())
			}
			reload.Post("/models/reload", handlers.Reload(d.Manager, d.Audit, d.Metrics, lg))
		})

		protected.Route("/admin", func(admin chi.Router) {
			admin.Use(auth.RequireAdmin())
			admin.Get("/users", handlers.ListUsers(d.Users, lg))
			admin.Post("/users", handlers.CreateUser(d.Users, d.Audit, lg))
			admin.Patch("/users/{username}", handlers.UpdateUser(d.Users, d.Audit, lg))
			admin.Get("/company", handlers.GetCompany(d.DB, lg))
			admin.Post("/company", handlers.SaveCompany(d.DB, d.Audit, lg))
			admin.Get("/audits", handlers.Audits(d.Audit, lg))
			admin.Get("/events", handlers.Events(d.Audit, lg))
		})
	})

	if d.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(d.StaticDir)))
	}
	return r
}

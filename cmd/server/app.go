package main

import (
	"net/http"

	"github.com/diewo77/go-echeancier/httpx"
	"github.com/diewo77/go-echeancier/internal/config"
	"github.com/diewo77/go-echeancier/internal/db"
	"github.com/diewo77/go-echeancier/internal/handlers"
	"github.com/diewo77/go-echeancier/internal/metrics"
	"github.com/diewo77/go-echeancier/internal/middleware"
	"github.com/diewo77/go-echeancier/internal/schedule"
	"github.com/diewo77/go-echeancier/internal/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	db      *gorm.DB
	cfg     *config.Config
	metrics *metrics.Schedule
	handler http.Handler
}

// NewApp creates a new application with all routes configured.
func NewApp(dbConn *gorm.DB, cfg *config.Config, log *zap.Logger, m *metrics.Schedule) *App {
	app := &App{
		mux:     http.NewServeMux(),
		db:      dbConn,
		cfg:     cfg,
		metrics: m,
	}
	store := db.NewQuoteStore(dbConn)
	svc := services.NewScheduleService(store, store, schedule.NewEngine(), log, m)

	app.mux.HandleFunc("GET /health", app.health)
	app.mux.Handle("GET /metrics", m.Handler())
	handlers.NewQuoteHandler(dbConn, store, cfg.App.DefaultVATRate).Register(app.mux)
	handlers.NewScheduleHandler(svc).Register(app.mux)

	app.handler = middleware.Prefs(cfg.App.DefaultLang)(app.mux)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// health reports liveness and a lightweight database check.
func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package api

import (
	"net/http"
	"time"

	"github.com/athebyme/market-repricer/pkg/auth"
	"github.com/athebyme/market-repricer/pkg/interfaces"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/api/handlers"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/api/middleware"
	"github.com/athebyme/market-repricer/services/repricer-service/internal/security"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// SetupRouter настраивает маршрутизатор API статуса.
// authPort == nil отключает проверку токенов.
func SetupRouter(
	history handlers.HistoryReader,
	cache interfaces.CachePort,
	logger interfaces.LoggerPort,
	corsAllowedOrigins []string,
	authPort interfaces.AuthPort,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.CORS(corsAllowedOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RateLimit(50, 100))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var storage interfaces.StoragePort
	if s, ok := history.(interfaces.StoragePort); ok {
		storage = s
	}
	r.Get("/health/ready", handlers.NewReadinessHandler(storage, logger).Ready)

	r.Route("/api/v1", func(r chi.Router) {
		if authPort != nil {
			r.Use(auth.AuthMiddleware(authPort, logger))
			r.Use(auth.RequireAnyRole(authPort, security.RoleViewer))
		}

		h := handlers.NewCycleHandler(history, cache, logger)

		r.Get("/cycles", h.ListCycles)
		r.Get("/cycles/{id}", h.GetCycle)
		r.Get("/ranges/{name}/last", h.LastRangeRun)
	})

	return r
}

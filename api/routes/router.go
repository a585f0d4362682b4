package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/domeo/backoffice/api/controllers"
	documentcontrollers "github.com/domeo/backoffice/api/controllers/documents"
	"github.com/domeo/backoffice/api/middleware"
	"github.com/domeo/backoffice/internal/documents"
	"github.com/domeo/backoffice/internal/notifications"
	"github.com/domeo/backoffice/pkg/config"
	"github.com/domeo/backoffice/pkg/logger"
	pkgredis "github.com/domeo/backoffice/pkg/redis"
)

// Deps bundles what the HTTP surface needs. Redis and Idempotency may be nil.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	Documents     documents.Service
	Notifications notifications.Service
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "database", Pinger: deps.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: deps.Redis},
		))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, logg))

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", documentcontrollers.List(deps.Documents, logg))
			r.Post("/create-batch", documentcontrollers.CreateBatch(deps.Documents, logg))
			r.Get("/{documentId}", documentcontrollers.Get(deps.Documents, logg))
			r.Get("/{documentId}/chain", documentcontrollers.Chain(deps.Documents, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}

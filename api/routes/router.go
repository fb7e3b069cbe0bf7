package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablebird/tablebird-backend/api/controllers"
	cartcontrollers "github.com/tablebird/tablebird-backend/api/controllers/cart"
	ordercontrollers "github.com/tablebird/tablebird-backend/api/controllers/orders"
	webhookcontrollers "github.com/tablebird/tablebird-backend/api/controllers/webhooks"
	"github.com/tablebird/tablebird-backend/api/middleware"
	cartsvc "github.com/tablebird/tablebird-backend/internal/cart"
	ordersvc "github.com/tablebird/tablebird-backend/internal/orders"
	"github.com/tablebird/tablebird-backend/internal/payments"
	"github.com/tablebird/tablebird-backend/pkg/config"
	"github.com/tablebird/tablebird-backend/pkg/enums"
	"github.com/tablebird/tablebird-backend/pkg/logger"
	"github.com/tablebird/tablebird-backend/pkg/metrics"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Pingers map[string]controllers.Pinger

	CartService    cartsvc.Service
	OrderService   ordersvc.Service
	PaymentService payments.Service
	WebhookGuard   *payments.IdempotencyGuard
	WebhookMetrics *metrics.WebhookMetrics
	RateLimiter    middleware.RateLimiterStore

	MetricsHandler http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(middleware.RateLimit(
			middleware.NewRateLimitPolicy("webhooks", cfg.Payments.WebhookRateWindow, cfg.Payments.WebhookRateLimit),
			deps.RateLimiter,
			logg,
		))
		r.Post("/payments/{gateway}", webhookcontrollers.PaymentWebhook(
			deps.PaymentService,
			deps.WebhookGuard,
			cfg.Payments.AcceptedGateways,
			deps.WebhookMetrics,
			logg,
		))
	})

	// Cart routes serve signed-in customers and anonymous guests alike.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Get("/", cartcontrollers.Fetch(deps.CartService, logg))
		r.Post("/items", cartcontrollers.AddItem(deps.CartService, logg))
		r.Patch("/lines/{lineID}", cartcontrollers.UpdateLine(deps.CartService, logg))
		r.Delete("/", cartcontrollers.Clear(deps.CartService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(cfg.JWT, logg))
			r.Post("/", ordercontrollers.Place(deps.OrderService, logg))
			r.Get("/{orderID}", ordercontrollers.Fetch(deps.OrderService, logg))
			r.Get("/{orderID}/history", ordercontrollers.History(deps.OrderService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Get("/", ordercontrollers.ListMine(deps.OrderService, logg))
			r.Post("/{orderID}/cancel", ordercontrollers.Cancel(deps.OrderService, logg))
		})
	})

	r.Route("/api/v1/staff/orders", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRoles(logg, string(enums.ActorRoleStaff)),
		)
		r.Get("/", ordercontrollers.ListForRestaurant(deps.OrderService, logg))
		r.Post("/{orderID}/status", ordercontrollers.Transition(deps.OrderService, logg))
		r.Patch("/{orderID}", ordercontrollers.UpdateOperational(deps.OrderService, logg))
	})

	return r
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/lifecycle"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/notify"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/observability"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/purchaseorder"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/render"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/rfi"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/summary"
)

// Dependencies carries the process-level resources the router wires together.
type Dependencies struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	Sender  notify.Sender
}

// NewRouter builds the HTTP surface: platform middleware, operational
// endpoints and the versioned API with every document domain mounted.
func NewRouter(deps Dependencies) chi.Router {
	cfg := deps.Config
	logger := deps.Logger

	audit := shared.NewAuditLogger(deps.Pool, logger)
	idem := shared.NewIdempotencyStore(deps.Pool)
	numbers := docnum.New(docnum.NewPGStore(deps.Pool))

	rfiService := rfi.NewService(rfi.NewRepository(deps.Pool), numbers, audit, deps.Metrics, deps.Sender, logger)
	quotationService := quotation.NewService(quotation.NewRepository(deps.Pool), numbers, audit, deps.Metrics, deps.Sender, logger)
	orderService := purchaseorder.NewService(purchaseorder.NewRepository(deps.Pool), numbers, audit, deps.Metrics, logger)
	invoiceService := invoice.NewService(invoice.NewRepository(deps.Pool), numbers, audit, deps.Metrics, deps.Sender, idem, logger)

	conversions := lifecycle.NewService(lifecycle.NewStore(deps.Pool), numbers, audit, deps.Metrics, logger)

	summaryService := summary.NewService(summary.NewCollector(deps.Pool), deps.Redis, cfg.SummaryCacheTTL, logger)

	rfiHandler := rfi.NewHandler(logger, rfiService, conversions)
	quotationHandler := quotation.NewHandler(logger, quotationService, conversions)
	orderHandler := purchaseorder.NewHandler(logger, orderService, conversions)
	invoiceHandler := invoice.NewHandler(logger, invoiceService)
	summaryHandler := summary.NewHandler(logger, summaryService)
	renderHandler := render.NewHandler(logger, quotationService, invoiceService, render.NewGotenberg(cfg.GotenbergURL))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(SecureHeaders())
	r.Use(RateLimiter(cfg.RateLimit))
	r.Use(deps.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(TenantContext)
		rfi.MountRoutes(api, rfiHandler)
		quotation.MountRoutes(api, quotationHandler)
		purchaseorder.MountRoutes(api, orderHandler)
		invoice.MountRoutes(api, invoiceHandler)
		summary.MountRoutes(api, summaryHandler)
		render.MountRoutes(api, renderHandler)
	})

	return r
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/circularlabs/rfid-trace/api/controllers"
	"github.com/circularlabs/rfid-trace/api/middleware"
	scansvc "github.com/circularlabs/rfid-trace/internal/scan"
	"github.com/circularlabs/rfid-trace/pkg/config"
	"github.com/circularlabs/rfid-trace/pkg/logger"
)

// NewRouter assembles the HTTP surface: health probes, metrics, and one
// endpoint per lifecycle transition plus discard and the batch read path.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	scanService scansvc.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/scan", func(r chi.Router) {
		r.Post("/out", controllers.ScanOut(scanService, logg))
		r.Post("/in", controllers.ScanIn(scanService, logg))
		r.Post("/return", controllers.ScanReturn(scanService, logg))
		r.Post("/clean", controllers.ScanClean(scanService, logg))
		r.Post("/discard", controllers.ScanDiscard(scanService, logg))
		r.Get("/batches", controllers.ScanBatches(scanService, logg))
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"canmlio/internal/middleware"
	"canmlio/internal/websocket"
)

// RouterConfig carries everything the router wires together.
type RouterConfig struct {
	Logger     *slog.Logger
	Convert    ConvertServiceInterface
	Dictionary DictionaryServiceInterface
	Hub        *websocket.Hub
	// Metrics is the Prometheus scrape handler. Nil disables /metrics.
	Metrics http.Handler
	// RateRPS limits request throughput. Zero disables limiting.
	RateRPS   float64
	RateBurst int
}

// NewRouter builds the HTTP surface: /api/convert, /api/dictionary,
// /healthz, /metrics, and the /ws progress feed.
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	if cfg.RateRPS > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateRPS)
		}
		r.Use(middleware.NewRateLimiter(cfg.RateRPS, burst, logger).Handler)
	}

	health := NewHealthHandler()
	r.Get("/healthz", health.Health)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeWS)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Convert != nil {
			r.Mount("/convert", NewConvertHandler(cfg.Convert, cfg.Hub, logger).Routes())
		}
		if cfg.Dictionary != nil {
			r.Mount("/dictionary", NewDictionaryHandler(cfg.Dictionary, logger).Routes())
		}
	})

	return r
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"goflare.io/estore"
	"goflare.io/estore/api/handler"
	"goflare.io/estore/api/middleware"
)

type Options struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// Registry 為 nil 時不提供 /metrics 也不收集 HTTP 指標
	Registry    *prometheus.Registry
	MetricsPath string
	// HealthCheck 為 /healthz 額外檢查依賴，例如資料庫連線
	HealthCheck func(ctx context.Context) error
}

func NewRouter(svc estore.Service, opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID, chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(middleware.DefaultLoggingConfig(opts.Logger)))
	r.Use(chiMiddleware.Recoverer)
	if opts.Registry != nil {
		cfg := middleware.DefaultMetricsConfig()
		cfg.SkipPaths = []string{"/healthz", opts.MetricsPath}
		r.Use(middleware.NewMetrics(opts.Registry, cfg).Middleware)
		r.Handle(opts.MetricsPath, promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.HealthCheck != nil {
			if err := opts.HealthCheck(r.Context()); err != nil {
				opts.Logger.Warn("Health check failed", zap.Error(err))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
		handler.New(svc, opts.Logger).Register(r)
	})
	return r
}

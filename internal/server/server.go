package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/dyike/CryptoViewer/internal/logger"
	"github.com/dyike/CryptoViewer/internal/metrics"
	"github.com/dyike/CryptoViewer/internal/models"
)

// Version is reported by the status route.
const Version = "1.0.0"

// Exchange serves the crypto routes.
type Exchange interface {
	FetchPortfolio(ctx context.Context) []models.Holding
	FetchPrice(ctx context.Context, pairID string) models.PriceSnapshot
	FetchHistorical(ctx context.Context, pairID string) ([]models.CandlePoint, error)
}

// Recommendations serves the recommendation routes.
type Recommendations interface {
	Recommend(ctx context.Context) string
	Analyze(ctx context.Context) string
}

type Config struct {
	Addr          string
	AllowedOrigin string
	Exchange      Exchange
	Recommender   Recommendations
}

// Server is the HTTP API in front of the exchange and the advisor.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      *zap.Logger
	exchange Exchange
	recs     Recommendations
}

func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      logger.Log.With(zap.String("component", "server")),
		exchange: cfg.Exchange,
		recs:     cfg.Recommender,
	}

	s.setupMiddleware(cfg.AllowedOrigin)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(allowedOrigin string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	origins := []string{"*"}
	if allowedOrigin != "" {
		origins = []string{allowedOrigin}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/api/crypto", func(r chi.Router) {
		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/price/{pairId}", s.handlePrice)
		r.Get("/historical/{pairId}", s.handleHistorical)
	})

	s.router.Route("/api/recommendations", func(r chi.Router) {
		r.Get("/", s.handleRecommendations)
		r.Get("/analysis", s.handleAnalysis)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	contractx "github.com/kalpit-S/ai-support-agent/agent/contract"
	repox "github.com/kalpit-S/ai-support-agent/agent/repository"
	metricsx "github.com/kalpit-S/ai-support-agent/pkg/metrics"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Addr         string        `envconfig:"ADDR" default:":8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"10s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"30s"`
}

type Deps struct {
	Store   *repox.Repository
	Batches contractx.BatchRepository
	Metrics *metricsx.Metrics
}

// NewRouter mounts the inbound webhooks, the read-only debug routes and the
// ops endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/webhook", func(r chi.Router) {
		r.Post("/sms", handleSMS(deps))
		r.Post("/email", handleEmail(deps))
	})

	r.Get("/customers", handleListCustomers(deps))
	r.Get("/customers/{id}", handleGetCustomer(deps))
	r.Get("/messages/{customerID}", handleListMessages(deps))
	r.Get("/articles", handleListArticles(deps))
	r.Get("/articles/{id}", handleGetArticle(deps))
	r.Get("/tickets/{customerID}", handleListTickets(deps))

	return r
}

// NewOpsRouter serves only health and metrics, for processes that do not
// host the API.
func NewOpsRouter(m *metricsx.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	return r
}

// Serve runs the API until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("http api shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

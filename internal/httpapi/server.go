package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"TradePulse/internal/eventstore"
	"TradePulse/internal/ingest"
	"TradePulse/internal/ledger"
	"TradePulse/internal/market"
)

// Server exposes the ingestion, poll, price, and ledger boundaries.
type Server struct {
	router *mux.Router
	server *http.Server
	log    zerolog.Logger

	ingestor *ingest.Ingestor
	events   *eventstore.Store
	feed     *market.Feed
	ledger   *ledger.Ledger
}

// NewServer wires the HTTP boundary over the given components.
func NewServer(addr string, ingestor *ingest.Ingestor, events *eventstore.Store, feed *market.Feed, lg *ledger.Ledger, logger zerolog.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		log:      logger.With().Str("component", "http").Logger(),
		ingestor: ingestor,
		events:   events,
		feed:     feed,
		ledger:   lg,
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/", s.handleIngest).Methods(http.MethodPost)

	s.router.HandleFunc("/dashboard/data", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/dashboard/data/poll", s.handlePoll).Methods(http.MethodGet)

	s.router.HandleFunc("/price", s.handlePrice).Methods(http.MethodGet)
	s.router.HandleFunc("/advice", s.handleAdvice).Methods(http.MethodGet)
	s.router.HandleFunc("/user-info", s.handleUserInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/balance", s.handleBalance).Methods(http.MethodGet)

	s.router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/buy", s.handleBuy).Methods(http.MethodPost)
	s.router.HandleFunc("/sell", s.handleSell).Methods(http.MethodPost)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server listening")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(withRequestID(r.Context(), id)))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", requestIDFrom(r.Context())).
			Dur("elapsed", time.Since(start)).
			Msg("request handled")
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

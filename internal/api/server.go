// Package api exposes the helpdesk over HTTP.
//
// Endpoints:
//
//	POST /api/chat/prompt                   authenticated chat (streamed)
//	POST /api/chat/public/prompt            anonymous chat (streamed)
//	POST /api/chat/store                    persist a completed exchange
//	POST /api/conversations                 create + name a conversation
//	GET  /api/conversations                 list the caller's conversations
//	GET  /api/conversations/{uid}/messages  full transcript
//	POST /api/documents                     upload a knowledge document
//	POST /api/documents/{uid}/retry         re-run a failed ingestion
//	POST /api/questions                     escalate a question (authenticated)
//	POST /api/questions/public              escalate a question (anonymous)
//	GET  /api/questions                     list escalations (staff)
//	POST /api/questions/{uid}/answer        answer and embed (staff)
//	DELETE /api/questions/{uid}             drop an escalation (staff)
//	GET  /health, GET /ready                probes
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, logging, per-IP rate limiting
//   - identity.go: trusted identity headers
//   - chat.go, conversations.go, documents.go, questions.go, health.go: handlers
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilzarachman/chatbot-helpdesk/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because responses stream token by token.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig carries the handler dependencies.
type ServerConfig struct {
	Responder     Responder
	Turns         TurnWriter
	Conversations ConversationReader
	Titler        Titler
	Documents     DocumentStore
	Ingest        Enqueuer
	Questions     QuestionStore
	Pool          *pgxpool.Pool
	RateLimit     float64
	RateBurst     int
	Logger        log.Logger
}

// Server is the helpdesk HTTP server.
type Server struct {
	mux     *http.ServeMux
	limiter *rateLimiter
	logger  log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}

	mux := http.NewServeMux()
	NewHealthHandler(cfg.Pool, logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Responder, cfg.Turns, logger).RegisterRoutes(mux)
	NewConversationHandler(cfg.Conversations, cfg.Titler, logger).RegisterRoutes(mux)
	NewDocumentHandler(cfg.Documents, cfg.Ingest, logger).RegisterRoutes(mux)
	NewQuestionHandler(cfg.Questions, logger).RegisterRoutes(mux)

	return &Server{
		mux:     mux,
		limiter: newRateLimiter(limit, burst),
		logger:  logger,
	}
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → rate limit → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.logger),
	)
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

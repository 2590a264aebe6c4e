// Package api exposes the assistant over HTTP.
//
// Endpoints:
//
//	POST /api/chat          one conversation turn
//	POST /api/chat/history  index a finished conversation for retrieval
//	POST /api/ingest        trigger a document ingestion run
//	GET  /healthz           liveness probe
//	GET  /readyz            readiness probe (checks the index backend)
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/mrady9280/asfoor/internal/ingest"
	"github.com/mrady9280/asfoor/internal/model"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to keep slow-request attacks
	// from pinning connections.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout = 60 * time.Second

	// WriteTimeout is generous: a chat turn can spend minutes in model
	// calls before the response starts.
	WriteTimeout = 5 * time.Minute

	IdleTimeout = 120 * time.Second

	// maxRequestBytes bounds the request body; attachments ride inside it
	// base64-encoded.
	maxRequestBytes = 32 << 20
)

// ChatService is the slice of chat.Service the server needs.
type ChatService interface {
	ProcessChatTurn(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error)
}

// Ingester is the slice of ingest.Service the server needs.
type Ingester interface {
	IngestAll(ctx context.Context, dir, pattern string) (*ingest.Report, error)
	IngestThread(ctx context.Context, conversationID string, messages []*ai.Message) error
}

// Config holds the dependencies for NewServer.
type Config struct {
	Chat   ChatService
	Ingest Ingester

	// Ready reports whether the storage backend is reachable; nil means
	// the readiness probe only checks the process.
	Ready func(ctx context.Context) error

	// Defaults for ingestion requests that omit them.
	DocPath       string
	IngestPattern string

	Logger *slog.Logger
}

// Server is the HTTP front of the assistant.
type Server struct {
	mux    *http.ServeMux
	chat   ChatService
	ingest Ingester
	ready  func(ctx context.Context) error

	docPath       string
	ingestPattern string
	logger        *slog.Logger
}

// NewServer creates the server with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat service is required")
	}
	if cfg.Ingest == nil {
		return nil, fmt.Errorf("ingest service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:           http.NewServeMux(),
		chat:          cfg.Chat,
		ingest:        cfg.Ingest,
		ready:         cfg.Ready,
		docPath:       cfg.DocPath,
		ingestPattern: cfg.IngestPattern,
		logger:        logger,
	}

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/chat/history", s.handleChatHistory)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)

	return s, nil
}

// Handler returns the routed handler with middleware applied.
// Middleware order: recovery, then logging, then the mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, s.recoveryMiddleware, s.loggingMiddleware)
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
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
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
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

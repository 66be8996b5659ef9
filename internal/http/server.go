// Package http exposes the ledger and scheduler as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
)

// Server wraps http.Server with the application handlers, a rate
// limiter and a read cache for month summaries.
type Server struct {
	http.Server
	svc         *services.Service
	logger      *log.Logger
	rateLimiter *rateLimiter

	summaryCache *cache.LRUCache[core.MonthSummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, svc *services.Service, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:          svc,
		logger:       logger.WithComponent(log.ComponentHTTP),
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRUCache[core.MonthSummary](100, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.withMiddleware(s.handleGetTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/balance", s.withMiddleware(s.handleBalance))
	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleMonthSummary))

	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withMiddleware(s.handleAddCategory))
	mux.HandleFunc("DELETE /api/categories", s.withMiddleware(s.handleRemoveCategory))

	mux.HandleFunc("POST /api/recurring", s.withMiddleware(s.handleCreateTemplate))
	mux.HandleFunc("GET /api/recurring", s.withMiddleware(s.handleListTemplates))
	mux.HandleFunc("GET /api/recurring/summary", s.withMiddleware(s.handleRecurringSummary))
	mux.HandleFunc("GET /api/recurring/upcoming", s.withMiddleware(s.handleUpcoming))
	mux.HandleFunc("GET /api/recurring/pending", s.withMiddleware(s.handlePending))
	mux.HandleFunc("POST /api/recurring/catchup", s.withMiddleware(s.handleCatchUp))
	mux.HandleFunc("GET /api/recurring/{id}", s.withMiddleware(s.handleGetTemplate))
	mux.HandleFunc("PUT /api/recurring/{id}", s.withMiddleware(s.handleUpdateTemplate))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.withMiddleware(s.handleDeleteTemplate))
	mux.HandleFunc("POST /api/recurring/{id}/active", s.withMiddleware(s.handleSetTemplateActive))
	mux.HandleFunc("POST /api/recurring/{id}/process", s.withMiddleware(s.handleProcessTemplate))

	mux.HandleFunc("POST /api/backup", s.withMiddleware(s.handleBackup))

	return s
}

// Shutdown stops the cleanup goroutines and drains the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting on writes, and
// request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientAddr(r)
		requestID := generateRequestID()

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
			)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldClientIP, clientIP,
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

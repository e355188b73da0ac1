// Package http exposes the gift tracker over a JSON API: gift CRUD with
// undo, name and budget registries, year management, precomputed
// statistics and the raw blob surface used by remote peers.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	applog "darky/internal/log"
	"darky/internal/storage"
	"darky/internal/tracker"
)

type Server struct {
	http.Server
	tracker     *tracker.Tracker
	blobs       storage.BlobStore
	rateLimiter *rateLimiter
	secMetrics  *securityMetrics
	structured  *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. blobs may be nil, in which case the /api/blobs surface is
// disabled.
func NewServer(addr string, tr *tracker.Tracker, blobs storage.BlobStore) *Server {
	mux := http.NewServeMux()
	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           applog.Middleware(logger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		tracker:     tr,
		blobs:       blobs,
		rateLimiter: newRateLimiter(),
		secMetrics:  &securityMetrics{},
		structured:  applog.NewStructuredLogger(logger),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/gifts", s.secure("/api/gifts", s.handleListGifts))
	mux.HandleFunc("POST /api/gifts", s.secure("/api/gifts", s.handleCreateGift))
	mux.HandleFunc("GET /api/gifts/{id}", s.secure("/api/gifts/{id}", s.handleGetGift))
	mux.HandleFunc("PUT /api/gifts/{id}", s.secure("/api/gifts/{id}", s.handleUpdateGift))
	mux.HandleFunc("PATCH /api/gifts/{id}", s.secure("/api/gifts/{id}", s.handleUpdateGift))
	mux.HandleFunc("DELETE /api/gifts/{id}", s.secure("/api/gifts/{id}", s.handleDeleteGift))
	mux.HandleFunc("POST /api/gifts/undo-delete", s.secure("/api/gifts/undo-delete", s.handleUndoDelete))

	mux.HandleFunc("GET /api/names", s.secure("/api/names", s.handleListNames))
	mux.HandleFunc("POST /api/names", s.secure("/api/names", s.handleAddName))
	mux.HandleFunc("DELETE /api/names/{name}", s.secure("/api/names/{name}", s.handleRemoveName))
	mux.HandleFunc("POST /api/names/undo-delete", s.secure("/api/names/undo-delete", s.handleUndoNameDelete))

	mux.HandleFunc("GET /api/years", s.secure("/api/years", s.handleListYears))
	mux.HandleFunc("POST /api/years", s.secure("/api/years", s.handleAddYear))
	mux.HandleFunc("GET /api/years/{year}/names", s.secure("/api/years/{year}/names", s.handleYearNames))
	mux.HandleFunc("POST /api/years/{year}/unlock", s.secure("/api/years/{year}/unlock", s.handleUnlockYear))
	mux.HandleFunc("POST /api/years/{year}/lock", s.secure("/api/years/{year}/lock", s.handleLockYear))

	mux.HandleFunc("PUT /api/budgets/{year}", s.secure("/api/budgets/{year}", s.handleSetBudget))

	mux.HandleFunc("GET /api/statistics/yearly", s.secure("/api/statistics/yearly", s.handleYearlyTotals))
	mux.HandleFunc("GET /api/statistics/by-person", s.secure("/api/statistics/by-person", s.handlePersonTotals))
	mux.HandleFunc("GET /api/statistics/year/{year}", s.secure("/api/statistics/year/{year}", s.handleYearOverview))

	mux.HandleFunc("GET /api/pending", s.secure("/api/pending", s.handlePending))

	mux.HandleFunc("GET /api/blobs/{key}", s.secure("/api/blobs/{key}", s.handleGetBlob))
	mux.HandleFunc("PUT /api/blobs/{key}", s.secure("/api/blobs/{key}", s.handlePutBlob))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// secure adds security headers, rate limiting on mutations, a request id
// and structured request logging. pattern is the route shape used as the
// metrics label, keeping cardinality bounded.
func (s *Server) secure(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)
		logger := applog.FromContext(ctx).With(applog.FieldRequestID, requestID)

		if detectSuspiciousRequest(r, s.secMetrics) {
			logger.WarnContext(ctx, "Suspicious request",
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path,
				applog.FieldClientIP, clientIP)
		}

		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP, s.secMetrics) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			rateLimitRejections.Inc()
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(duration.Seconds())

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

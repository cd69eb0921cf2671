// Package api implements the REST surface for web push notifications.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaharia-lab/cloudcli-push/internal/service"
)

const errInvalidJSONBody = "Invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	pushSvc   service.PushService
	jwtSecret []byte
	logger    *slog.Logger
}

// New creates a new API Server. Requests are authenticated with HS256 bearer
// tokens signed by jwtSecret; an empty secret leaves every request anonymous.
func New(pushSvc service.PushService, jwtSecret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pushSvc:   pushSvc,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	r.Get("/version", s.handleVersion)

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/public-key", s.handleGetPublicKey)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.jwtSecret, s.logger))
			r.Post("/subscriptions", s.handleSubscribe)
			r.Delete("/subscriptions", s.handleUnsubscribe)
			r.Post("/test", s.handleSendTest)
			r.Post("/events", s.handlePublishEvent)
			r.Get("/log", s.handleListDeliveries)
		})
	})
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// writeServiceError maps typed service errors to a status code. Anything
// unrecognised is logged and reported as a 500 with fallback as the message.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var (
		unauthorized *service.UnauthorizedError
		validation   *service.ValidationError
	)
	switch {
	case errors.As(err, &unauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, service.ErrEventDropped):
		writeError(w, http.StatusServiceUnavailable, "Event queue is full")
	default:
		s.logger.Error(fallback, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/hacknation/dataset-announcer/internal/announcer"
	"github.com/hacknation/dataset-announcer/internal/catalog"
	"github.com/hacknation/dataset-announcer/internal/session"
)

// UserHeader names the catalog user a request acts for
const UserHeader = "X-Catalog-User"

// Handler contains all HTTP handlers
type Handler struct {
	coordinator *announcer.Coordinator
	sessions    *session.Registry
}

// NewHandler creates a new handler instance
func NewHandler(coordinator *announcer.Coordinator, sessions *session.Registry) *Handler {
	return &Handler{
		coordinator: coordinator,
		sessions:    sessions,
	}
}

// NewRouter configures all routes and middleware
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(recoveryMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/datasets/{id}/suitable", h.SuitableHandler).Methods("GET")
	api.HandleFunc("/sessions/{session}/datasets/{id}/updated", h.UpdatedHandler).Methods("POST")
	api.HandleFunc("/sessions/{session}/datasets/{id}/announcement", h.AnnouncementHandler).Methods("POST")
	api.HandleFunc("/sessions/{session}", h.EndSessionHandler).Methods("DELETE")

	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	return r
}

// SuitableHandler reports whether a dataset can be announced. It never
// touches session state.
func (h *Handler) SuitableHandler(w http.ResponseWriter, r *http.Request) {
	datasetID := mux.Vars(r)["id"]

	suitable, err := h.coordinator.CheckSuitable(actionContext(r), datasetID, nil)
	if err != nil {
		log.Error().Err(err).Str("dataset_id", datasetID).Msg("Suitability check failed")
		respondError(w, http.StatusBadGateway, "catalog request failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"suitable":   suitable,
	})
}

// UpdatedHandler is the update hook: it flags a suitable dataset in the session
func (h *Handler) UpdatedHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	datasetID := vars["id"]
	store := h.sessions.Get(vars["session"])

	flagged, err := h.coordinator.MarkIfSuitable(actionContext(r), store, datasetID)
	if err != nil {
		log.Error().Err(err).Str("dataset_id", datasetID).Msg("Update hook failed")
		respondError(w, http.StatusBadGateway, "catalog request failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": datasetID,
		"flagged":    flagged,
	})
}

// AnnouncementHandler consumes the session flag and returns the announcement
// text. It answers 204 when there is nothing to announce.
func (h *Handler) AnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	datasetID := vars["id"]
	store := h.sessions.Get(vars["session"])

	announcement, err := h.coordinator.Announce(actionContext(r), store, datasetID)
	if err != nil {
		log.Error().Err(err).Str("dataset_id", datasetID).Msg("Announcement failed")
		respondError(w, http.StatusBadGateway, "announcement failed")
		return
	}
	if announcement == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"dataset_id": announcement.DatasetID,
		"text":       announcement.Text,
		"is_new":     announcement.IsNew,
	})
}

// EndSessionHandler drops all state of a session
func (h *Handler) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(mux.Vars(r)["session"])
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheckHandler returns service health
func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"sessions":  h.sessions.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func actionContext(r *http.Request) context.Context {
	return catalog.WithActionContext(r.Context(), catalog.ActionContext{
		User:     r.Header.Get(UserHeader),
		APIToken: r.Header.Get("Authorization"),
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration_ms", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered")

				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

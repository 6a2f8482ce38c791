// Package api exposes the cache administration operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/lms-tenant-cache/pkg/manager"
	"github.com/Sternrassler/lms-tenant-cache/pkg/metrics"
)

// Admin is the subset of *manager.Manager served over HTTP.
type Admin interface {
	ClearTenantCache(ctx context.Context, tenantID int64)
	WarmUpTenantCache(ctx context.Context, tenantID int64) bool
	FlushAll(ctx context.Context) error
	GetCacheStats(ctx context.Context) manager.Stats
	GetCacheKeysByPattern(ctx context.Context, pattern string) []string
	GetCacheValue(ctx context.Context, key string) (json.RawMessage, bool)
	SetCacheValue(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) bool
	DeleteCacheKey(ctx context.Context, key string) bool
	ClearExpiredCache(ctx context.Context) manager.ExpiredSummary
}

// Pinger reports cache backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the admin endpoints.
type Handler struct {
	admin    Admin
	health   Pinger
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(admin Admin, health Pinger, logger zerolog.Logger) *Handler {
	return &Handler{
		admin:    admin,
		health:   health,
		validate: validator.New(),
		logger:   logger,
	}
}

// NewRouter builds the router with all routes and middleware attached.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID, AccessLog(h.logger))
	SetupRoutes(router, h)
	return router
}

// SetupRoutes registers the admin routes on router.
func SetupRoutes(router *mux.Router, h *Handler) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	admin := router.PathPrefix("/admin/cache").Subrouter()
	admin.HandleFunc("/clear", h.Clear).Methods("POST")
	admin.HandleFunc("/warm/{tenantID:[0-9]+}", h.Warm).Methods("POST")
	admin.HandleFunc("/stats", h.Stats).Methods("GET")
	admin.HandleFunc("/flush", h.Flush).Methods("POST")
	admin.HandleFunc("/keys", h.Keys).Methods("GET")
	admin.HandleFunc("/expired", h.Expired).Methods("POST")
	admin.HandleFunc("/value", h.GetValue).Methods("GET")
	admin.HandleFunc("/value", h.SetValue).Methods("PUT")
	admin.HandleFunc("/value", h.DeleteValue).Methods("DELETE")
}

// Health reports whether the cache backend answers. A degraded cache still
// serves reads from the data store, so the status code stays 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "degraded", "cache": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Clear drops one tenant's cache, or the whole namespace when no tenant_id
// is given.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("tenant_id")
	if raw == "" {
		h.flush(w, r)
		return
	}
	tenantID, err := parseID(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "tenant_id must be a positive integer")
		return
	}
	h.admin.ClearTenantCache(r.Context(), tenantID)
	respondJSON(w, http.StatusOK, map[string]interface{}{"cleared": true, "tenant_id": tenantID})
}

// Flush empties the whole cache namespace.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	h.flush(w, r)
}

func (h *Handler) flush(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.FlushAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Cache flush failed")
		respondError(w, http.StatusServiceUnavailable, "cache flush failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// Warm precomputes a tenant's dashboard.
func (h *Handler) Warm(w http.ResponseWriter, r *http.Request) {
	tenantID, err := parseID(mux.Vars(r)["tenantID"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "tenantID must be a positive integer")
		return
	}
	warmed := h.admin.WarmUpTenantCache(r.Context(), tenantID)
	respondJSON(w, http.StatusOK, map[string]interface{}{"warmed": warmed, "tenant_id": tenantID})
}

// Stats returns backend statistics and the cache hit rate.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.admin.GetCacheStats(r.Context()))
}

// Keys lists namespace keys matching the glob in ?pattern (default "*").
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	keys := h.admin.GetCacheKeysByPattern(r.Context(), pattern)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pattern": pattern,
		"keys":    keys,
		"count":   len(keys),
	})
}

// Expired sweeps the namespace for keys without a TTL and returns the
// sweep summary.
func (h *Handler) Expired(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.admin.ClearExpiredCache(r.Context()))
}

// GetValue returns the raw value under ?key, or 404 when it is not cached.
func (h *Handler) GetValue(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	value, ok := h.admin.GetCacheValue(r.Context(), key)
	if !ok {
		respondError(w, http.StatusNotFound, "key not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": value})
}

// SetValueRequest is the body of PUT /admin/cache/value. A zero TTL stores
// the value for the very long tier.
type SetValueRequest struct {
	Key        string          `json:"key" validate:"required"`
	Value      json.RawMessage `json:"value" validate:"required"`
	TTLSeconds int             `json:"ttl_seconds,omitempty" validate:"omitempty,min=1,max=86400"`
}

// SetValue stores a raw JSON value. A failed write answers 503.
func (h *Handler) SetValue(w http.ResponseWriter, r *http.Request) {
	var req SetValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if !h.admin.SetCacheValue(r.Context(), req.Key, req.Value, ttl) {
		respondError(w, http.StatusServiceUnavailable, "cache write failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"key": req.Key, "stored": true})
}

// DeleteValue removes ?key from the cache.
func (h *Handler) DeleteValue(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	if !h.admin.DeleteCacheKey(r.Context(), key) {
		respondError(w, http.StatusServiceUnavailable, "cache delete failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"key": key, "deleted": true})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Package v0 provides the REST API handlers for catalog access.
package v0

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/service"
	"github.com/compose-market/connector/internal/versions"
)

// ServerListResponse is the paginated server list payload
type ServerListResponse struct {
	Servers []catalog.UnifiedRecord `json:"servers"`
	Count   int                     `json:"count"`
	Offset  int                     `json:"offset"`
	Limit   int                     `json:"limit"`
}

// CatalogInfoResponse is the catalog metadata payload
type CatalogInfoResponse struct {
	Source       string `json:"source"`
	BuiltAt      string `json:"builtAt"`
	TotalServers int    `json:"totalServers"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the catalog API with dependency injection
type Routes struct {
	service service.CatalogService
}

// NewRoutes creates a new Routes instance with the provided service
func NewRoutes(svc service.CatalogService) *Routes {
	return &Routes{service: svc}
}

// Router creates a new router for the catalog API
func Router(svc service.CatalogService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/servers", routes.listServers)
	r.Get("/servers/{id}", routes.getServer)
	r.Get("/categories", routes.listCategories)
	r.Get("/tags", routes.listTags)
	r.Get("/stats", routes.getStats)
	r.Get("/info", routes.getCatalogInfo)
	r.Post("/reload", routes.reload)

	return r
}

// listServers handles GET /v0/servers
func (rr *Routes) listServers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := []service.ListOption{}
	if search := query.Get("q"); search != "" {
		opts = append(opts, service.WithSearch(search))
	}
	if origin := query.Get("origin"); origin != "" {
		opts = append(opts, service.WithOrigin(origin))
	}
	if category := query.Get("category"); category != "" {
		opts = append(opts, service.WithCategory(category))
	}
	if available := query.Get("available"); available != "" {
		parsed, err := strconv.ParseBool(available)
		if err != nil {
			rr.writeErrorResponse(w, "Invalid available filter", http.StatusBadRequest)
			return
		}
		opts = append(opts, service.WithAvailable(parsed))
	}

	offset := parseIntOrDefault(query.Get("offset"), 0)
	limit := parseIntOrDefault(query.Get("limit"), 0)
	if offset < 0 {
		offset = 0
	}
	opts = append(opts, service.WithPagination(offset, limit))

	servers, err := rr.service.ListServers(r.Context(), opts...)
	if err != nil {
		slog.Error("Failed to list servers", "error", err)
		rr.writeErrorResponse(w, "Failed to list servers", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, ServerListResponse{
		Servers: servers,
		Count:   len(servers),
		Offset:  offset,
		// Report the page size actually applied, not the raw request.
		Limit: service.EffectiveLimit(limit),
	})
}

// getServer handles GET /v0/servers/{id}
func (rr *Routes) getServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	server, err := rr.service.GetServer(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			rr.writeErrorResponse(w, "Server not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get server", "id", id, "error", err)
		rr.writeErrorResponse(w, "Failed to get server", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, server)
}

// listCategories handles GET /v0/categories
func (rr *Routes) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := rr.service.ListCategories(r.Context())
	if err != nil {
		slog.Error("Failed to list categories", "error", err)
		rr.writeErrorResponse(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, map[string][]string{"categories": categories})
}

// listTags handles GET /v0/tags
func (rr *Routes) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := rr.service.ListTags(r.Context())
	if err != nil {
		slog.Error("Failed to list tags", "error", err)
		rr.writeErrorResponse(w, "Failed to list tags", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, map[string][]string{"tags": tags})
}

// getStats handles GET /v0/stats
func (rr *Routes) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rr.service.GetStats(r.Context())
	if err != nil {
		slog.Error("Failed to get stats", "error", err)
		rr.writeErrorResponse(w, "Failed to get catalog stats", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, stats)
}

// getCatalogInfo handles GET /v0/info
func (rr *Routes) getCatalogInfo(w http.ResponseWriter, r *http.Request) {
	cat, source, err := rr.service.GetCatalog(r.Context())
	if err != nil {
		slog.Error("Failed to get catalog", "error", err)
		rr.writeErrorResponse(w, "Failed to get catalog information", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, CatalogInfoResponse{
		Source:       source,
		BuiltAt:      cat.BuiltAt.Format("2006-01-02T15:04:05Z07:00"),
		TotalServers: len(cat.Records),
	})
}

// reload handles POST /v0/reload
func (rr *Routes) reload(w http.ResponseWriter, r *http.Request) {
	if err := rr.service.Reload(r.Context()); err != nil {
		slog.Error("Failed to reload catalog", "error", err)
		rr.writeErrorResponse(w, "Failed to reload catalog", http.StatusInternalServerError)
		return
	}

	rr.writeJSONResponse(w, map[string]string{"status": "reloaded"})
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc service.CatalogService) http.Handler {
	routes := NewRoutes(svc)

	r := chi.NewRouter()

	r.Get("/health", routes.getHealth)
	r.Get("/readiness", routes.getReadiness)
	r.Get("/version", routes.getVersion)

	return r
}

// getHealth handles GET /health
func (rr *Routes) getHealth(w http.ResponseWriter, _ *http.Request) {
	rr.writeJSONResponse(w, map[string]string{"status": "ok"})
}

// getReadiness handles GET /readiness
func (rr *Routes) getReadiness(w http.ResponseWriter, r *http.Request) {
	if err := rr.service.CheckReadiness(r.Context()); err != nil {
		slog.Warn("Readiness check failed", "error", err)
		rr.writeErrorResponse(w, "Catalog not ready", http.StatusServiceUnavailable)
		return
	}

	rr.writeJSONResponse(w, map[string]string{"status": "ready"})
}

// getVersion handles GET /version
func (rr *Routes) getVersion(w http.ResponseWriter, _ *http.Request) {
	rr.writeJSONResponse(w, versions.GetVersionInfo())
}

// writeJSONResponse writes a JSON response with proper headers
func (rr *Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (rr *Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

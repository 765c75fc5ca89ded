package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/reframe-journal/internal/api/response"
	"github.com/Rrens/reframe-journal/internal/llm"
)

// Pinger is a dependency that can report its connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheFlusher drops every cached session
type CacheFlusher interface {
	FlushAll(ctx context.Context) (int64, error)
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including backend connectivity
func ReadyCheck(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failed := []string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				failed = append(failed, name)
			}
		}

		if len(failed) > 0 {
			response.Error(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "not ready",
				"unhealthy": failed,
			})
			return
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns the registered LLM providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}

// FlushCache clears every cached session
func FlushCache(cache CacheFlusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := cache.FlushAll(r.Context())
		if err != nil {
			response.InternalError(w, "failed to flush cache")
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}

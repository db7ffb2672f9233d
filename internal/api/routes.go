package api

import (
	"net/http"

	"github.com/metricshour/metricshour/internal/middleware"
)

// Routes registers the feed and probe endpoints on mux. Follow and
// interaction endpoints require an authenticated user; OptionalAuth must run
// before the mux.
func Routes(mux *http.ServeMux, feedHandlers *FeedHandlers, healthHandlers *HealthHandlers) {
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}

	mux.HandleFunc("GET /api/feed", feedHandlers.GetFeed)
	mux.Handle("POST /api/feed/{id}/interact", authed(feedHandlers.RecordInteraction))
	mux.Handle("GET /api/feed/follows", authed(feedHandlers.ListFollows))
	mux.Handle("POST /api/feed/follows", authed(feedHandlers.AddFollow))
	mux.Handle("DELETE /api/feed/follows/{entity_type}/{entity_id}", authed(feedHandlers.RemoveFollow))

	mux.HandleFunc("GET /health", healthHandlers.Health)
	mux.HandleFunc("GET /ready", healthHandlers.Ready)
}

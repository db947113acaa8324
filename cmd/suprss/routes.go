package main

import (
	"net/http"

	"suprss"
)

// newRouter sets up all routes using Go 1.22+ enhanced routing. Every /api
// route except the healthcheck sits behind the JWT middleware.
func newRouter(engine *suprss.Engine, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{engine: engine}
	auth := requireAuth(jwtSecret)

	mux.HandleFunc("GET /api/health", h.handleHealth)

	// Feeds
	mux.Handle("POST /api/feeds", auth(http.HandlerFunc(h.handleFeedCreate)))
	mux.Handle("GET /api/feeds", auth(http.HandlerFunc(h.handleFeedList)))
	mux.Handle("PATCH /api/feeds/{id}", auth(http.HandlerFunc(h.handleFeedUpdate)))
	mux.Handle("DELETE /api/feeds/{id}", auth(http.HandlerFunc(h.handleFeedDelete)))
	mux.Handle("POST /api/feeds/{id}/refresh", auth(http.HandlerFunc(h.handleFeedRefresh)))
	mux.Handle("POST /api/feeds/import/json", auth(http.HandlerFunc(h.handleImportJSON)))
	mux.Handle("POST /api/feeds/import/opml", auth(http.HandlerFunc(h.handleImportOPML)))
	mux.Handle("GET /api/feeds/export/opml", auth(http.HandlerFunc(h.handleExportOPML)))

	// Articles
	mux.Handle("GET /api/articles", auth(http.HandlerFunc(h.handleArticleList)))
	mux.Handle("POST /api/articles/{id}/mark-read", auth(http.HandlerFunc(h.handleArticleMarkRead)))
	mux.Handle("POST /api/articles/{id}/favorite", auth(http.HandlerFunc(h.handleArticleFavorite)))

	// Collections
	mux.Handle("POST /api/collections", auth(http.HandlerFunc(h.handleCollectionCreate)))
	mux.Handle("GET /api/collections", auth(http.HandlerFunc(h.handleCollectionList)))
	mux.Handle("GET /api/collections/{id}", auth(http.HandlerFunc(h.handleCollectionGet)))
	mux.Handle("GET /api/collections/{id}/feeds", auth(http.HandlerFunc(h.handleCollectionFeeds)))
	mux.Handle("POST /api/collections/{id}/feeds", auth(http.HandlerFunc(h.handleCollectionFeedCreate)))

	return mux
}

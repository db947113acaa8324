package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"suprss"
)

// handlers holds dependencies for all HTTP handler methods.
type handlers struct {
	engine *suprss.Engine
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Feeds ---

var (
	validFrequencies = map[string]bool{"": true, "hourly": true, "6h": true, "daily": true}
	validStatuses    = map[string]bool{"": true, "active": true, "inactive": true}
)

// ownedFeed loads a feed and checks it belongs to the user. Missing and
// foreign feeds both come back as not-found so ids are not probeable.
func (h *handlers) ownedFeed(w http.ResponseWriter, r *http.Request) (*suprss.Feed, bool) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Not found")
		return nil, false
	}
	feed, err := h.engine.GetFeed(id)
	if errors.Is(err, sql.ErrNoRows) {
		errorJSON(w, http.StatusNotFound, "Not found")
		return nil, false
	}
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to load feed")
		return nil, false
	}
	if feed.OwnerID != userIDFromContext(r.Context()) {
		errorJSON(w, http.StatusNotFound, "Not found")
		return nil, false
	}
	return feed, true
}

func (h *handlers) handleFeedCreate(w http.ResponseWriter, r *http.Request) {
	var in suprss.FeedInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid body")
		return
	}
	if in.URL == "" {
		errorJSON(w, http.StatusBadRequest, "url required")
		return
	}
	if !validFrequencies[in.Frequency] || !validStatuses[in.Status] {
		errorJSON(w, http.StatusBadRequest, "invalid frequency or status")
		return
	}

	userID := userIDFromContext(r.Context())
	if in.CollectionID != nil {
		ok, err := h.engine.IsCollectionMember(*in.CollectionID, userID)
		if err != nil || !ok {
			errorJSON(w, http.StatusNotFound, "Not found")
			return
		}
	}

	feed, _, err := h.engine.CreateFeed(r.Context(), userID, in)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to create feed")
		return
	}
	writeJSON(w, http.StatusCreated, feed)
}

func (h *handlers) handleFeedList(w http.ResponseWriter, r *http.Request) {
	var collectionID *int64
	if raw := r.URL.Query().Get("collectionId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid collectionId")
			return
		}
		collectionID = &id
	}

	feeds, err := h.engine.ListFeeds(userIDFromContext(r.Context()), collectionID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to list feeds")
		return
	}
	if feeds == nil {
		feeds = []suprss.Feed{}
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (h *handlers) handleFeedUpdate(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.ownedFeed(w, r)
	if !ok {
		return
	}

	var edit suprss.FeedEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid body")
		return
	}
	if edit.Frequency != nil && !validFrequencies[*edit.Frequency] {
		errorJSON(w, http.StatusBadRequest, "invalid frequency")
		return
	}
	if edit.Status != nil && !validStatuses[*edit.Status] {
		errorJSON(w, http.StatusBadRequest, "invalid status")
		return
	}
	if edit.CollectionID != nil {
		ok, err := h.engine.IsCollectionMember(*edit.CollectionID, userIDFromContext(r.Context()))
		if err != nil || !ok {
			errorJSON(w, http.StatusNotFound, "Not found")
			return
		}
	}

	updated, err := h.engine.UpdateFeed(feed.ID, edit)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to update feed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handlers) handleFeedDelete(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.ownedFeed(w, r)
	if !ok {
		return
	}
	if err := h.engine.DeleteFeed(feed.ID); err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to delete feed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) handleFeedRefresh(w http.ResponseWriter, r *http.Request) {
	feed, ok := h.ownedFeed(w, r)
	if !ok {
		return
	}

	// A fetch failure is a result, not an HTTP error; only persistence
	// problems surface as 500.
	result, err := h.engine.RefreshFeed(r.Context(), feed.ID)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to refresh feed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Import / export ---

func (h *handlers) handleImportJSON(w http.ResponseWriter, r *http.Request) {
	// Accept either {"feeds": [...]} or a bare array.
	var body struct {
		Feeds []suprss.FeedInput `json:"feeds"`
	}
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		if err := json.Unmarshal(raw, &body.Feeds); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	if len(body.Feeds) == 0 {
		errorJSON(w, http.StatusBadRequest, "feeds required")
		return
	}

	result := h.engine.ImportFeeds(r.Context(), userIDFromContext(r.Context()), body.Feeds)
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OPML string `json:"opml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OPML == "" {
		errorJSON(w, http.StatusBadRequest, "opml required")
		return
	}

	result, err := h.engine.ImportOPML(r.Context(), userIDFromContext(r.Context()), body.OPML)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid OPML document")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handlers) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	data, err := h.engine.ExportOPML(userIDFromContext(r.Context()))
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to export feeds")
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="suprss_feeds.opml"`)
	w.Write(data)
}

// --- Articles ---

func (h *handlers) handleArticleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var query suprss.ArticleQuery

	if raw := q.Get("feedId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid feedId")
			return
		}
		query.FeedID = &id
	}
	if raw := q.Get("collectionId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid collectionId")
			return
		}
		query.CollectionID = &id
	}
	query.Status = q.Get("status")
	query.FavoriteOnly = q.Get("favorite") == "true"
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			query.Limit = n
		}
	}

	articles, err := h.engine.ListArticles(userIDFromContext(r.Context()), query)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to list articles")
		return
	}
	if articles == nil {
		articles = []suprss.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *handlers) handleArticleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Not found")
		return
	}
	if err := h.engine.MarkArticleRead(userIDFromContext(r.Context()), id); err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to mark read")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) handleArticleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Not found")
		return
	}
	if err := h.engine.FavoriteArticle(userIDFromContext(r.Context()), id); err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to favorite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --- Collections ---

// memberCollection checks the {id} collection exists and the user belongs
// to it.
func (h *handlers) memberCollection(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathID(r)
	if !ok {
		errorJSON(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	member, err := h.engine.IsCollectionMember(id, userIDFromContext(r.Context()))
	if err != nil || !member {
		errorJSON(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	return id, true
}

func (h *handlers) handleCollectionCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		errorJSON(w, http.StatusBadRequest, "name required")
		return
	}

	col, err := h.engine.CreateCollection(body.Name, body.Description, userIDFromContext(r.Context()))
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to create collection")
		return
	}
	writeJSON(w, http.StatusCreated, col)
}

func (h *handlers) handleCollectionList(w http.ResponseWriter, r *http.Request) {
	cols, err := h.engine.ListCollections(userIDFromContext(r.Context()))
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to list collections")
		return
	}
	if cols == nil {
		cols = []suprss.Collection{}
	}
	writeJSON(w, http.StatusOK, cols)
}

func (h *handlers) handleCollectionGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberCollection(w, r)
	if !ok {
		return
	}
	cols, err := h.engine.ListCollections(userIDFromContext(r.Context()))
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to load collection")
		return
	}
	for _, c := range cols {
		if c.ID == id {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	errorJSON(w, http.StatusNotFound, "Not found")
}

func (h *handlers) handleCollectionFeeds(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberCollection(w, r)
	if !ok {
		return
	}
	feeds, err := h.engine.ListCollectionFeeds(id)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to list feeds")
		return
	}
	if feeds == nil {
		feeds = []suprss.Feed{}
	}
	writeJSON(w, http.StatusOK, feeds)
}

// handleCollectionFeedCreate attaches a new feed to a shared collection.
// Same create-then-ingest path as a personal feed.
func (h *handlers) handleCollectionFeedCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.memberCollection(w, r)
	if !ok {
		return
	}

	var in suprss.FeedInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid body")
		return
	}
	if in.URL == "" {
		errorJSON(w, http.StatusBadRequest, "url required")
		return
	}
	if !validFrequencies[in.Frequency] || !validStatuses[in.Status] {
		errorJSON(w, http.StatusBadRequest, "invalid frequency or status")
		return
	}
	in.CollectionID = &id

	feed, _, err := h.engine.CreateFeed(r.Context(), userIDFromContext(r.Context()), in)
	if err != nil {
		errorJSON(w, http.StatusInternalServerError, "Failed to create feed")
		return
	}
	writeJSON(w, http.StatusCreated, feed)
}

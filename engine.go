// Package suprss is the feed aggregation core of the suprss reader: feed
// subscriptions, article ingestion with per-feed deduplication, and a
// background scheduler that keeps feeds fresh at their configured cadence.
package suprss

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"suprss/internal/feeds"
	"suprss/internal/refresh"
	"suprss/internal/scheduler"
	"suprss/internal/storage"
)

// Engine is the public API over the store, fetcher, refresher, and
// scheduler. Route handlers and CLI commands talk only to the Engine.
//
// The Engine performs no authorization; callers pass only feeds and
// collections the acting user is entitled to touch (see the ownership
// helpers below).
type Engine struct {
	store     storage.Store
	refresher *refresh.Refresher
	scheduler *scheduler.Scheduler
}

// NewEngine opens the database and wires the aggregation pipeline.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	timeout := cfg.FetchTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	fetcher := feeds.NewFetcher(timeout)
	refresher := refresh.NewRefresher(store, fetcher)
	sched := scheduler.New(store, refresher, cfg.SchedulerBatch, cfg.SchedulerDelay)

	return &Engine{
		store:     store,
		refresher: refresher,
		scheduler: sched,
	}, nil
}

// StartScheduler launches the background refresh loop. Call at most once.
func (e *Engine) StartScheduler(ctx context.Context) error {
	return e.scheduler.Start(ctx)
}

// StopScheduler halts the background loop, waiting out an in-flight tick.
func (e *Engine) StopScheduler() {
	e.scheduler.Stop()
}

// RunDuePass runs a single scheduler pass immediately (the `refresh` CLI
// command); it shares the tick's selection and gap rules.
func (e *Engine) RunDuePass(ctx context.Context) {
	e.scheduler.Tick(ctx)
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	return e.store.Close()
}

// --- Feeds ---

// CreateFeed creates the feed record first — a failed initial fetch leaves a
// visible, retryable feed rather than silently dropping the request — then
// runs one refresh through the shared path with the creation item bound.
func (e *Engine) CreateFeed(ctx context.Context, ownerID int64, in FeedInput) (*Feed, RefreshResult, error) {
	if in.URL == "" {
		return nil, RefreshResult{}, errors.New("url required")
	}

	record := &storage.Feed{
		URL:          in.URL,
		Title:        in.Title,
		Description:  in.Description,
		Tags:         in.Tags,
		OwnerID:      ownerID,
		CollectionID: in.CollectionID,
		Frequency:    in.Frequency,
		Status:       in.Status,
	}
	if _, err := e.store.CreateFeed(record); err != nil {
		return nil, RefreshResult{}, err
	}

	res, err := e.refresher.Refresh(ctx, record, refresh.CreateItemLimit)
	if err != nil {
		// The feed exists; the scheduler will retry it. Surface the feed.
		log.Printf("suprss: initial refresh of feed %d failed to persist: %v", record.ID, err)
	}

	feed := feedFromInternal(*record)
	return &feed, resultFromInternal(res), nil
}

// RefreshFeed refreshes one feed synchronously and returns the outcome.
func (e *Engine) RefreshFeed(ctx context.Context, feedID int64) (RefreshResult, error) {
	res, err := e.refresher.RefreshByID(ctx, feedID)
	if err != nil {
		return RefreshResult{}, err
	}
	return resultFromInternal(res), nil
}

// GetFeed returns one feed by id.
func (e *Engine) GetFeed(feedID int64) (*Feed, error) {
	f, err := e.store.GetFeed(feedID)
	if err != nil {
		return nil, err
	}
	feed := feedFromInternal(*f)
	return &feed, nil
}

// ListFeeds returns the owner's feeds, optionally scoped to one collection.
func (e *Engine) ListFeeds(ownerID int64, collectionID *int64) ([]Feed, error) {
	ff, err := e.store.ListFeeds(ownerID, collectionID)
	if err != nil {
		return nil, err
	}
	return feedsFromInternal(ff), nil
}

// UpdateFeed applies user edits to a feed. Sync-state fields are not
// editable through this path.
func (e *Engine) UpdateFeed(feedID int64, edit FeedEdit) (*Feed, error) {
	f, err := e.store.GetFeed(feedID)
	if err != nil {
		return nil, err
	}

	if edit.Title != nil {
		f.Title = *edit.Title
	}
	if edit.Description != nil {
		f.Description = *edit.Description
	}
	if edit.Tags != nil {
		f.Tags = *edit.Tags
	}
	if edit.Frequency != nil {
		f.Frequency = *edit.Frequency
	}
	if edit.Status != nil {
		f.Status = *edit.Status
	}
	if edit.CollectionID != nil {
		f.CollectionID = edit.CollectionID
	}

	if err := e.store.UpdateFeed(f); err != nil {
		return nil, err
	}
	feed := feedFromInternal(*f)
	return &feed, nil
}

// DeleteFeed removes a feed and all of its articles.
func (e *Engine) DeleteFeed(feedID int64) error {
	return e.store.DeleteFeed(feedID)
}

// --- Bulk import / export ---

// ImportFeeds creates each described feed and ingests it through the shared
// refresh path. One entry's failure never aborts the rest; the report
// carries the aggregate counts.
func (e *Engine) ImportFeeds(ctx context.Context, ownerID int64, entries []FeedInput) ImportResult {
	var result ImportResult
	for _, entry := range entries {
		if _, _, err := e.CreateFeed(ctx, ownerID, entry); err != nil {
			log.Printf("suprss: import: failed to create feed %q: %v", entry.URL, err)
			result.Failed++
			continue
		}
		result.Created++
	}
	return result
}

// ImportOPML extracts feed sources from an OPML document and imports them.
func (e *Engine) ImportOPML(ctx context.Context, ownerID int64, doc string) (ImportResult, error) {
	outlines, err := feeds.ParseOPML(doc)
	if err != nil {
		return ImportResult{}, err
	}

	entries := make([]FeedInput, len(outlines))
	for i, o := range outlines {
		entries[i] = FeedInput{URL: o.URL, Title: o.Title}
	}
	return e.ImportFeeds(ctx, ownerID, entries), nil
}

// ExportOPML renders the owner's feeds as an OPML 2.0 document.
func (e *Engine) ExportOPML(ownerID int64) ([]byte, error) {
	ff, err := e.store.ListFeeds(ownerID, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]feeds.OutlineFeed, len(ff))
	for i, f := range ff {
		entries[i] = feeds.OutlineFeed{URL: f.URL, Title: f.Title}
	}
	return feeds.ExportOPML("suprss feeds", entries)
}

// --- Articles ---

// ListArticles returns articles for the user, newest first.
func (e *Engine) ListArticles(userID int64, q ArticleQuery) ([]Article, error) {
	aa, err := e.store.ListArticles(userID, storage.ArticleFilter{
		FeedID:       q.FeedID,
		CollectionID: q.CollectionID,
		Status:       q.Status,
		FavoriteOnly: q.FavoriteOnly,
		Limit:        q.Limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]Article, len(aa))
	for i, a := range aa {
		out[i] = articleFromInternal(a)
	}
	return out, nil
}

// MarkArticleRead adds the article to the user's read set.
func (e *Engine) MarkArticleRead(userID, articleID int64) error {
	return e.store.MarkArticleRead(userID, articleID)
}

// FavoriteArticle adds the article to the user's favorite set.
func (e *Engine) FavoriteArticle(userID, articleID int64) error {
	return e.store.FavoriteArticle(userID, articleID)
}

// --- Collections ---

// CreateCollection creates a collection owned (and joined) by the user.
func (e *Engine) CreateCollection(name, description string, ownerID int64) (*Collection, error) {
	id, err := e.store.CreateCollection(name, description, ownerID)
	if err != nil {
		return nil, err
	}
	c, err := e.store.GetCollection(id)
	if err != nil {
		return nil, err
	}
	col := collectionFromInternal(*c)
	return &col, nil
}

// ListCollections returns collections the user owns or belongs to.
func (e *Engine) ListCollections(userID int64) ([]Collection, error) {
	cc, err := e.store.ListCollections(userID)
	if err != nil {
		return nil, err
	}
	out := make([]Collection, len(cc))
	for i, c := range cc {
		out[i] = collectionFromInternal(c)
	}
	return out, nil
}

// ListCollectionFeeds returns every feed attached to the collection.
func (e *Engine) ListCollectionFeeds(collectionID int64) ([]Feed, error) {
	ff, err := e.store.ListCollectionFeeds(collectionID)
	if err != nil {
		return nil, err
	}
	return feedsFromInternal(ff), nil
}

// IsCollectionMember reports whether the user owns or belongs to the
// collection. Handlers use this for access checks before acting.
func (e *Engine) IsCollectionMember(collectionID, userID int64) (bool, error) {
	return e.store.IsCollectionMember(collectionID, userID)
}

// --- Users ---

// CreateUser registers a user identity. Credential handling lives outside
// this module.
func (e *Engine) CreateUser(email, name string) (int64, error) {
	return e.store.CreateUser(email, name)
}

// GetUser returns the user with the given id.
func (e *Engine) GetUser(id int64) (*User, error) {
	u, err := e.store.GetUser(id)
	if err != nil {
		return nil, err
	}
	return &User{ID: u.ID, Email: u.Email, Name: u.Name, CreatedAt: u.CreatedAt}, nil
}

// --- internal type conversion helpers ---

func feedFromInternal(f storage.Feed) Feed {
	return Feed{
		ID:           f.ID,
		URL:          f.URL,
		Title:        f.Title,
		Description:  f.Description,
		Tags:         f.Tags,
		OwnerID:      f.OwnerID,
		CollectionID: f.CollectionID,
		Frequency:    f.Frequency,
		Status:       f.Status,
		LastFetched:  f.LastFetched,
		LastError:    f.LastError,
		ETag:         f.ETag,
		LastModified: f.LastModified,
		CreatedAt:    f.CreatedAt,
	}
}

func feedsFromInternal(ff []storage.Feed) []Feed {
	out := make([]Feed, len(ff))
	for i, f := range ff {
		out[i] = feedFromInternal(f)
	}
	return out
}

func articleFromInternal(a storage.Article) Article {
	return Article{
		ID:        a.ID,
		FeedID:    a.FeedID,
		GUID:      a.GUID,
		Title:     a.Title,
		Link:      a.Link,
		Published: a.Published,
		Author:    a.Author,
		Summary:   a.Summary,
		Snippet:   a.Snippet,
		FetchedAt: a.FetchedAt,
		Read:      a.Read,
		Favorite:  a.Favorite,
	}
}

func collectionFromInternal(c storage.Collection) Collection {
	return Collection{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt,
	}
}

func resultFromInternal(r refresh.Result) RefreshResult {
	return RefreshResult{OK: r.OK, Inserted: r.Inserted, Error: r.Err}
}

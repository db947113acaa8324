// Package refresh implements the single refresh code path shared by the
// scheduler, manual refresh, feed creation, and bulk import, so every
// trigger gets the same failure semantics.
package refresh

import (
	"context"
	"log"
	"strconv"
	"time"

	"suprss/internal/feeds"
	"suprss/internal/storage"
)

const (
	// CreateItemLimit bounds ingestion on interactive creation paths.
	CreateItemLimit = 50
	// RefreshItemLimit bounds ingestion on scheduled and manual refreshes.
	RefreshItemLimit = 100

	maxErrorLen  = 500
	fetchTimeout = 30 * time.Second
)

// Result reports one refresh attempt. A fetch failure is not an error at
// this level: OK is false and Err carries the recorded message. Errors
// returned alongside a zero Result are persistence failures.
type Result struct {
	OK       bool   `json:"ok"`
	Inserted int    `json:"inserted"`
	Err      string `json:"error,omitempty"`
}

// Refresher orchestrates one feed's refresh: fetch, upsert, sync-state save.
type Refresher struct {
	store  storage.Store
	source feeds.Source

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewRefresher creates a refresher over the given store and feed source.
func NewRefresher(store storage.Store, source feeds.Source) *Refresher {
	return &Refresher{store: store, source: source, now: time.Now}
}

// Refresh fetches the feed with its stored validators, upserts up to limit
// items, and persists the updated sync-state as one write. On fetch failure
// the attempt still counts: last_fetched advances and a bounded error
// message is recorded, so the scheduler does not hammer a broken feed every
// tick. Validators and articles are left untouched on failure.
func (r *Refresher) Refresh(ctx context.Context, feed *storage.Feed, limit int) (Result, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	result, err := r.source.Fetch(fetchCtx, feed.URL, feed.ETag, feed.LastModified)
	now := r.now()
	feed.LastFetched = &now

	if err != nil {
		msg := truncate(err.Error(), maxErrorLen)
		feed.LastError = &msg
		if saveErr := r.store.SaveFeedSyncState(feed); saveErr != nil {
			return Result{}, saveErr
		}
		return Result{OK: false, Err: msg}, nil
	}

	items := result.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	inserted := 0
	for _, item := range items {
		article := &storage.Article{
			FeedID:    feed.ID,
			GUID:      articleGUID(item, feed.ID),
			Title:     item.Title,
			Link:      item.Link,
			Published: item.Published,
			Author:    item.Author,
			Summary:   item.Summary,
			Snippet:   item.Snippet,
		}
		ok, err := r.store.InsertArticleIfAbsent(article)
		if err != nil {
			return Result{}, err
		}
		if ok {
			inserted++
		}
	}

	// Fill in metadata only where the user left it empty; never overwrite
	// user-provided titles or descriptions.
	if feed.Title == "" {
		if result.Title != "" {
			feed.Title = result.Title
		} else {
			feed.Title = feed.URL
		}
	}
	if feed.Description == "" {
		feed.Description = result.Description
	}
	if result.ETag != "" {
		feed.ETag = result.ETag
	}
	if result.LastModified != "" {
		feed.LastModified = result.LastModified
	}
	feed.LastError = nil

	if err := r.store.SaveFeedSyncState(feed); err != nil {
		return Result{}, err
	}

	if inserted > 0 {
		log.Printf("suprss: feed %d (%s): %d new articles", feed.ID, feed.URL, inserted)
	}
	return Result{OK: true, Inserted: inserted}, nil
}

// RefreshByID loads the feed and refreshes it with the standard limit.
func (r *Refresher) RefreshByID(ctx context.Context, feedID int64) (Result, error) {
	feed, err := r.store.GetFeed(feedID)
	if err != nil {
		return Result{}, err
	}
	return r.Refresh(ctx, feed, RefreshItemLimit)
}

// articleGUID computes the stable per-feed identity for an item: upstream
// guid, else link, else title concatenated with the feed id. The feed id
// suffix keeps the title fallback scoped to one feed so identical titles in
// different feeds never collide.
func articleGUID(item feeds.Item, feedID int64) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	return item.Title + strconv.FormatInt(feedID, 10)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

package suprss

import "time"

// EngineConfig configures the suprss aggregation engine.
type EngineConfig struct {
	DBPath         string
	FetchTimeout   time.Duration // per-feed HTTP timeout; 0 means 30s
	SchedulerBatch int           // feeds per tick; 0 means 10
	SchedulerDelay time.Duration // pause between refreshes in a tick; 0 means 400ms
}

// User is a registered account. Authentication happens outside this module;
// the engine only needs identities for ownership and read/favorite state.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Collection groups feeds shared between its members.
type Collection struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Feed is a subscription to one external RSS/Atom source.
type Feed struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Tags         []string   `json:"tags"`
	OwnerID      int64      `json:"owner_id"`
	CollectionID *int64     `json:"collection_id,omitempty"`
	Frequency    string     `json:"frequency"`
	Status       string     `json:"status"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	LastError    *string    `json:"last_error,omitempty"`
	ETag         string     `json:"etag,omitempty"`
	LastModified string     `json:"last_modified,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Article is one ingested feed item with the requesting user's flags.
type Article struct {
	ID        int64      `json:"id"`
	FeedID    int64      `json:"feed_id"`
	GUID      string     `json:"guid"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Published *time.Time `json:"published,omitempty"`
	Author    string     `json:"author"`
	Summary   string     `json:"summary"`
	Snippet   string     `json:"snippet"`
	FetchedAt time.Time  `json:"fetched_at"`
	Read      bool       `json:"is_read"`
	Favorite  bool       `json:"is_favorite"`
}

// FeedInput describes a feed to create, from the API or a bulk import entry.
type FeedInput struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	Frequency    string   `json:"updateFrequency"`
	Status       string   `json:"status"`
	CollectionID *int64   `json:"collectionId"`
}

// FeedEdit carries user edits to an existing feed. Nil fields are untouched.
type FeedEdit struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Tags         *[]string `json:"tags"`
	Frequency    *string   `json:"updateFrequency"`
	Status       *string   `json:"status"`
	CollectionID *int64    `json:"collectionId"`
}

// RefreshResult reports one refresh attempt of one feed.
type RefreshResult struct {
	OK       bool   `json:"ok"`
	Inserted int    `json:"inserted"`
	Error    string `json:"error,omitempty"`
}

// ImportResult aggregates a bulk import: entries that failed are counted,
// never aborting the rest of the batch.
type ImportResult struct {
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// ArticleQuery narrows ListArticles.
type ArticleQuery struct {
	FeedID       *int64
	CollectionID *int64
	Status       string // "", "read", "unread"
	FavoriteOnly bool
	Limit        int
}

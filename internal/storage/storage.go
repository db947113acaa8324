package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

type Collection struct {
	ID          int64
	Name        string
	Description string
	OwnerID     int64
	CreatedAt   time.Time
}

// Feed is a subscription to one external source. Sync-state fields
// (LastFetched, LastError, ETag, LastModified) are written only by the
// refresh orchestrator; the rest only by explicit user edits.
type Feed struct {
	ID           int64
	URL          string
	Title        string
	Description  string
	Tags         []string
	OwnerID      int64
	CollectionID *int64
	Frequency    string // "hourly", "6h", "daily"
	Status       string // "active", "inactive"
	LastFetched  *time.Time
	LastError    *string
	ETag         string
	LastModified string
	CreatedAt    time.Time
}

// Article is one ingested item. Content fields are immutable after insert;
// only the per-user read/favorite sets change afterwards.
type Article struct {
	ID        int64
	FeedID    int64
	GUID      string
	Title     string
	Link      string
	Published *time.Time
	Author    string
	Summary   string
	Snippet   string
	FetchedAt time.Time

	// Per-user flags, populated by ListArticles for the querying user.
	Read     bool
	Favorite bool
}

// ArticleFilter narrows ListArticles results.
type ArticleFilter struct {
	FeedID       *int64
	CollectionID *int64
	Status       string // "", "read", "unread"
	FavoriteOnly bool
	Limit        int
}

// NewStore opens (creating if needed) the database at dbPath and
// initializes the schema.
func NewStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Users ---

// CreateUser inserts a user record and returns its id.
func (s *SQLiteStore) CreateUser(email, name string) (int64, error) {
	res, err := s.db.Exec("INSERT INTO users (email, name) VALUES (?, ?)", email, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return res.LastInsertId()
}

// GetUser returns the user with the given id.
func (s *SQLiteStore) GetUser(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(
		"SELECT id, email, name, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail returns the user with the given email (case-insensitive).
func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	var u User
	err := s.db.QueryRow(
		"SELECT id, email, name, created_at FROM users WHERE email = ?", email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- Collections ---

// CreateCollection inserts a collection and adds the owner as its first member.
func (s *SQLiteStore) CreateCollection(name, description string, ownerID int64) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO collections (name, description, owner_id) VALUES (?, ?, ?)",
		name, description, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.Exec(
		"INSERT OR IGNORE INTO collection_members (collection_id, user_id) VALUES (?, ?)",
		id, ownerID,
	); err != nil {
		return 0, fmt.Errorf("failed to add owner membership: %w", err)
	}
	return id, nil
}

// GetCollection returns the collection with the given id.
func (s *SQLiteStore) GetCollection(id int64) (*Collection, error) {
	var c Collection
	err := s.db.QueryRow(
		"SELECT id, name, description, owner_id, created_at FROM collections WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCollections returns collections the user owns or is a member of,
// newest first.
func (s *SQLiteStore) ListCollections(userID int64) ([]Collection, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT c.id, c.name, c.description, c.owner_id, c.created_at
		FROM collections c
		LEFT JOIN collection_members m ON m.collection_id = c.id
		WHERE c.owner_id = ? OR m.user_id = ?
		ORDER BY c.created_at DESC, c.id DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IsCollectionMember reports whether the user owns or belongs to the collection.
func (s *SQLiteStore) IsCollectionMember(collectionID, userID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM collections c
		LEFT JOIN collection_members m ON m.collection_id = c.id AND m.user_id = ?
		WHERE c.id = ? AND (c.owner_id = ? OR m.user_id IS NOT NULL)`,
		userID, collectionID, userID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- Feeds ---

const feedColumns = `id, url, title, description, tags, owner_id, collection_id,
	frequency, status, last_fetched, last_error, etag, last_modified, created_at`

func scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var f Feed
	var tags string
	err := row.Scan(
		&f.ID, &f.URL, &f.Title, &f.Description, &tags, &f.OwnerID, &f.CollectionID,
		&f.Frequency, &f.Status, &f.LastFetched, &f.LastError, &f.ETag, &f.LastModified,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &f.Tags); err != nil {
		f.Tags = nil
	}
	return &f, nil
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// CreateFeed inserts a feed record and returns its id. Sync-state columns
// start empty; the first refresh fills them in.
func (s *SQLiteStore) CreateFeed(f *Feed) (int64, error) {
	if f.Frequency == "" {
		f.Frequency = "hourly"
	}
	if f.Status == "" {
		f.Status = "active"
	}
	res, err := s.db.Exec(`
		INSERT INTO feeds (url, title, description, tags, owner_id, collection_id, frequency, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.URL, f.Title, f.Description, marshalTags(f.Tags), f.OwnerID, f.CollectionID,
		f.Frequency, f.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create feed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

// GetFeed returns the feed with the given id.
func (s *SQLiteStore) GetFeed(id int64) (*Feed, error) {
	return scanFeed(s.db.QueryRow(
		"SELECT "+feedColumns+" FROM feeds WHERE id = ?", id,
	))
}

// ListFeeds returns the owner's feeds, newest first, optionally limited to
// one collection.
func (s *SQLiteStore) ListFeeds(ownerID int64, collectionID *int64) ([]Feed, error) {
	query := "SELECT " + feedColumns + " FROM feeds WHERE owner_id = ?"
	args := []any{ownerID}
	if collectionID != nil {
		query += " AND collection_id = ?"
		args = append(args, *collectionID)
	}
	query += " ORDER BY created_at DESC, id DESC"
	return s.queryFeeds(query, args...)
}

// ListCollectionFeeds returns all feeds attached to a collection,
// regardless of owner, newest first.
func (s *SQLiteStore) ListCollectionFeeds(collectionID int64) ([]Feed, error) {
	return s.queryFeeds(
		"SELECT "+feedColumns+" FROM feeds WHERE collection_id = ? ORDER BY created_at DESC, id DESC",
		collectionID,
	)
}

// DueFeedCandidates returns up to limit active feeds ordered least-recently
// fetched first (never-fetched feeds sort before all others), ties broken by
// creation time. The caller applies the per-frequency gap check.
func (s *SQLiteStore) DueFeedCandidates(limit int) ([]Feed, error) {
	return s.queryFeeds(
		"SELECT "+feedColumns+" FROM feeds WHERE status = 'active' ORDER BY last_fetched ASC, created_at ASC, id ASC LIMIT ?",
		limit,
	)
}

func (s *SQLiteStore) queryFeeds(query string, args ...any) ([]Feed, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var out []Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// UpdateFeed persists user-editable fields: title, description, tags,
// frequency, status, and collection attachment. Sync-state columns are
// left untouched.
func (s *SQLiteStore) UpdateFeed(f *Feed) error {
	_, err := s.db.Exec(`
		UPDATE feeds SET title = ?, description = ?, tags = ?, frequency = ?, status = ?, collection_id = ?
		WHERE id = ?`,
		f.Title, f.Description, marshalTags(f.Tags), f.Frequency, f.Status, f.CollectionID, f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}
	return nil
}

// SaveFeedSyncState persists the outcome of one refresh attempt as a single
// write: title/description (fill-if-empty handled by the caller), cache
// validators, last_fetched, and last_error.
func (s *SQLiteStore) SaveFeedSyncState(f *Feed) error {
	_, err := s.db.Exec(`
		UPDATE feeds SET title = ?, description = ?, etag = ?, last_modified = ?, last_fetched = ?, last_error = ?
		WHERE id = ?`,
		f.Title, f.Description, f.ETag, f.LastModified, f.LastFetched, f.LastError, f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save feed sync state: %w", err)
	}
	return nil
}

// DeleteFeed removes a feed; its articles go with it via FK cascade.
func (s *SQLiteStore) DeleteFeed(id int64) error {
	_, err := s.db.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

// --- Articles ---

// InsertArticleIfAbsent inserts the article keyed on (feed_id, guid) and
// reports whether a row was actually inserted. An existing article with the
// same key is left verbatim, including its read/favorite state. This is a
// single atomic statement so concurrent refreshes of the same feed cannot
// produce duplicates.
func (s *SQLiteStore) InsertArticleIfAbsent(a *Article) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO articles (feed_id, guid, title, link, published, author, summary, snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, guid) DO NOTHING`,
		a.FeedID, a.GUID, a.Title, a.Link, a.Published, a.Author, a.Summary, a.Snippet,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetArticle returns the article with the given id (without per-user flags).
func (s *SQLiteStore) GetArticle(id int64) (*Article, error) {
	var a Article
	err := s.db.QueryRow(`
		SELECT id, feed_id, guid, title, link, published, author, summary, snippet, fetched_at
		FROM articles WHERE id = ?`, id,
	).Scan(&a.ID, &a.FeedID, &a.GUID, &a.Title, &a.Link, &a.Published, &a.Author,
		&a.Summary, &a.Snippet, &a.FetchedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListArticles returns articles visible to the user, newest publish date
// first, with the user's read/favorite flags populated.
func (s *SQLiteStore) ListArticles(userID int64, filter ArticleFilter) ([]Article, error) {
	query := `
		SELECT a.id, a.feed_id, a.guid, a.title, a.link, a.published, a.author,
		       a.summary, a.snippet, a.fetched_at,
		       EXISTS(SELECT 1 FROM article_reads r WHERE r.article_id = a.id AND r.user_id = ?),
		       EXISTS(SELECT 1 FROM article_favorites v WHERE v.article_id = a.id AND v.user_id = ?)
		FROM articles a
		JOIN feeds f ON f.id = a.feed_id
		WHERE 1 = 1`
	args := []any{userID, userID}

	if filter.FeedID != nil {
		query += " AND a.feed_id = ?"
		args = append(args, *filter.FeedID)
	}
	if filter.CollectionID != nil {
		query += " AND f.collection_id = ?"
		args = append(args, *filter.CollectionID)
	}
	switch filter.Status {
	case "read":
		query += " AND EXISTS(SELECT 1 FROM article_reads r WHERE r.article_id = a.id AND r.user_id = ?)"
		args = append(args, userID)
	case "unread":
		query += " AND NOT EXISTS(SELECT 1 FROM article_reads r WHERE r.article_id = a.id AND r.user_id = ?)"
		args = append(args, userID)
	}
	if filter.FavoriteOnly {
		query += " AND EXISTS(SELECT 1 FROM article_favorites v WHERE v.article_id = a.id AND v.user_id = ?)"
		args = append(args, userID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 300 {
		limit = 300
	}
	query += " ORDER BY a.published DESC, a.id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.FeedID, &a.GUID, &a.Title, &a.Link, &a.Published,
			&a.Author, &a.Summary, &a.Snippet, &a.FetchedAt, &a.Read, &a.Favorite); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountArticles returns the number of stored articles for a feed.
func (s *SQLiteStore) CountArticles(feedID int64) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM articles WHERE feed_id = ?", feedID).Scan(&n)
	return n, err
}

// MarkArticleRead adds the article to the user's read set. Idempotent.
func (s *SQLiteStore) MarkArticleRead(userID, articleID int64) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO article_reads (user_id, article_id) VALUES (?, ?)",
		userID, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark article read: %w", err)
	}
	return nil
}

// FavoriteArticle adds the article to the user's favorite set. Idempotent.
func (s *SQLiteStore) FavoriteArticle(userID, articleID int64) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO article_favorites (user_id, article_id) VALUES (?, ?)",
		userID, articleID,
	)
	if err != nil {
		return fmt.Errorf("failed to favorite article: %w", err)
	}
	return nil
}

package storage

// Store defines the persistence interface for the aggregation core.
// The refresh orchestrator and scheduler depend only on these semantics,
// not on the SQLite implementation.
type Store interface {
	Close() error

	// Users
	CreateUser(email, name string) (int64, error)
	GetUser(id int64) (*User, error)
	GetUserByEmail(email string) (*User, error)

	// Collections
	CreateCollection(name, description string, ownerID int64) (int64, error)
	GetCollection(id int64) (*Collection, error)
	ListCollections(userID int64) ([]Collection, error)
	IsCollectionMember(collectionID, userID int64) (bool, error)

	// Feeds
	CreateFeed(f *Feed) (int64, error)
	GetFeed(id int64) (*Feed, error)
	ListFeeds(ownerID int64, collectionID *int64) ([]Feed, error)
	ListCollectionFeeds(collectionID int64) ([]Feed, error)
	DueFeedCandidates(limit int) ([]Feed, error)
	UpdateFeed(f *Feed) error
	SaveFeedSyncState(f *Feed) error
	DeleteFeed(id int64) error

	// Articles
	InsertArticleIfAbsent(a *Article) (bool, error)
	GetArticle(id int64) (*Article, error)
	ListArticles(userID int64, filter ArticleFilter) ([]Article, error)
	CountArticles(feedID int64) (int, error)
	MarkArticleRead(userID, articleID int64) error
	FavoriteArticle(userID, articleID int64) error
}

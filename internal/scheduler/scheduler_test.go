package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"suprss/internal/feeds"
	"suprss/internal/refresh"
	"suprss/internal/storage"
)

type fakeSource struct {
	errs  map[string]error
	calls []string
}

func (f *fakeSource) Fetch(ctx context.Context, url, etag, lastModified string) (*feeds.Result, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	return &feeds.Result{
		Title: "T",
		Items: []feeds.Item{{Title: "Item", GUID: url + "-item"}},
	}, nil
}

type fixture struct {
	store  *storage.SQLiteStore
	source *fakeSource
	sched  *Scheduler
	owner  int64
	now    time.Time
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	owner, err := store.CreateUser("owner@example.com", "")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	source := &fakeSource{errs: map[string]error{}}
	sched := New(store, refresh.NewRefresher(store, source), batchSize, time.Millisecond)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }
	sched.sleep = func(time.Duration) {}

	return &fixture{store: store, source: source, sched: sched, owner: owner, now: now}
}

func (fx *fixture) addFeed(t *testing.T, url, frequency string, lastFetched *time.Time) *storage.Feed {
	t.Helper()
	f := &storage.Feed{URL: url, OwnerID: fx.owner, Frequency: frequency}
	if _, err := fx.store.CreateFeed(f); err != nil {
		t.Fatalf("CreateFeed failed: %v", err)
	}
	if lastFetched != nil {
		f.LastFetched = lastFetched
		if err := fx.store.SaveFeedSyncState(f); err != nil {
			t.Fatalf("SaveFeedSyncState failed: %v", err)
		}
	}
	return f
}

func TestMinGap(t *testing.T) {
	cases := []struct {
		frequency string
		want      time.Duration
	}{
		{"hourly", time.Hour},
		{"6h", 6 * time.Hour},
		{"daily", 24 * time.Hour},
		{"", time.Hour},
		{"weekly", time.Hour},
	}
	for _, c := range cases {
		if got := MinGap(c.frequency); got != c.want {
			t.Errorf("MinGap(%q) = %v, want %v", c.frequency, got, c.want)
		}
	}
}

func TestTickRefreshesNeverFetchedFeeds(t *testing.T) {
	fx := newFixture(t, 10)
	fx.addFeed(t, "http://new", "daily", nil)

	fx.sched.Tick(context.Background())

	if len(fx.source.calls) != 1 || fx.source.calls[0] != "http://new" {
		t.Errorf("expected one fetch of the new feed, got %v", fx.source.calls)
	}
}

func TestTickHonorsFrequencyGap(t *testing.T) {
	fx := newFixture(t, 10)

	twoHoursAgo := fx.now.Add(-2 * time.Hour)
	dayAgo := fx.now.Add(-25 * time.Hour)
	fx.addFeed(t, "http://daily-recent", "daily", &twoHoursAgo)
	fx.addFeed(t, "http://daily-stale", "daily", &dayAgo)
	fx.addFeed(t, "http://hourly-due", "hourly", &twoHoursAgo)

	fx.sched.Tick(context.Background())

	fetched := map[string]bool{}
	for _, url := range fx.source.calls {
		fetched[url] = true
	}
	if fetched["http://daily-recent"] {
		t.Error("daily feed fetched 2h ago must be skipped")
	}
	if !fetched["http://daily-stale"] {
		t.Error("daily feed fetched 25h ago must refresh")
	}
	if !fetched["http://hourly-due"] {
		t.Error("hourly feed fetched 2h ago must refresh")
	}
}

func TestTickBatchBound(t *testing.T) {
	fx := newFixture(t, 10)
	dayAgo := fx.now.Add(-48 * time.Hour)
	for i := 0; i < 30; i++ {
		fx.addFeed(t, fmt.Sprintf("http://feed-%02d", i), "hourly", &dayAgo)
	}

	fx.sched.Tick(context.Background())

	if len(fx.source.calls) != 10 {
		t.Errorf("expected exactly 10 fetches per tick, got %d", len(fx.source.calls))
	}
}

func TestTickFailureIsolation(t *testing.T) {
	fx := newFixture(t, 10)
	f1 := fx.addFeed(t, "http://ok-1", "hourly", nil)
	f2 := fx.addFeed(t, "http://broken", "hourly", nil)
	f3 := fx.addFeed(t, "http://ok-2", "hourly", nil)
	fx.source.errs["http://broken"] = errors.New("connection refused")

	fx.sched.Tick(context.Background())

	if len(fx.source.calls) != 3 {
		t.Fatalf("expected all 3 feeds attempted, got %v", fx.source.calls)
	}

	for _, id := range []int64{f1.ID, f3.ID} {
		n, err := fx.store.CountArticles(id)
		if err != nil || n != 1 {
			t.Errorf("healthy feed %d: %d articles (%v)", id, n, err)
		}
		got, _ := fx.store.GetFeed(id)
		if got.LastError != nil {
			t.Errorf("healthy feed %d has error %q", id, *got.LastError)
		}
	}

	broken, _ := fx.store.GetFeed(f2.ID)
	if broken.LastError == nil || *broken.LastError != "connection refused" {
		t.Errorf("broken feed error not recorded: %v", broken.LastError)
	}
	if broken.LastFetched == nil {
		t.Error("broken feed LastFetched must still advance")
	}
	n, _ := fx.store.CountArticles(f2.ID)
	if n != 0 {
		t.Errorf("broken feed must have no articles, got %d", n)
	}
}

func TestTickSkipsWhenAlreadyRunning(t *testing.T) {
	fx := newFixture(t, 10)
	fx.addFeed(t, "http://new", "hourly", nil)

	fx.sched.ticking.Store(true)
	fx.sched.Tick(context.Background())

	if len(fx.source.calls) != 0 {
		t.Errorf("overlapping tick must do nothing, got %v", fx.source.calls)
	}

	fx.sched.ticking.Store(false)
	fx.sched.Tick(context.Background())
	if len(fx.source.calls) != 1 {
		t.Errorf("tick after release should run, got %v", fx.source.calls)
	}
}

func TestTickSkipDoesNotAdvanceLastFetched(t *testing.T) {
	fx := newFixture(t, 10)
	twoHoursAgo := fx.now.Add(-2 * time.Hour)
	f := fx.addFeed(t, "http://daily-recent", "daily", &twoHoursAgo)

	fx.sched.Tick(context.Background())

	got, err := fx.store.GetFeed(f.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastFetched == nil || !got.LastFetched.Equal(twoHoursAgo) {
		t.Errorf("skipped feed's LastFetched changed: %v", got.LastFetched)
	}
}

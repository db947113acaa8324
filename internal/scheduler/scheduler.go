// Package scheduler drives periodic refreshes of due feeds. A cron entry
// evaluates once per minute which feeds have outlived their configured
// refresh gap and runs them through the shared refresh path, strictly
// sequentially and with a politeness delay between fetches.
package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"suprss/internal/refresh"
	"suprss/internal/storage"
)

const (
	// tickSpec fires every minute, much finer than any feed's own cadence,
	// so feeds becoming due are picked up within a minute of eligibility.
	tickSpec = "* * * * *"

	defaultBatchSize = 10
	defaultDelay     = 400 * time.Millisecond
)

// gaps maps a feed's frequency class to its minimum inter-refresh gap.
var gaps = map[string]time.Duration{
	"hourly": 60 * time.Minute,
	"6h":     360 * time.Minute,
	"daily":  1440 * time.Minute,
}

// MinGap returns the minimum time between refreshes for a frequency class.
// Unknown classes fall back to hourly.
func MinGap(frequency string) time.Duration {
	if gap, ok := gaps[frequency]; ok {
		return gap
	}
	return gaps["hourly"]
}

// Scheduler owns the background refresh loop. Start it at most once.
type Scheduler struct {
	store     storage.Store
	refresher *refresh.Refresher
	cron      *cron.Cron
	batchSize int
	delay     time.Duration

	// ticking guarantees at most one tick in flight; a tick that finds it
	// set exits immediately instead of queuing.
	ticking atomic.Bool

	// now and sleep are swappable for deterministic tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a scheduler over the given store and refresher. batchSize <= 0
// and delay <= 0 select the defaults (10 feeds, 400ms).
func New(store storage.Store, refresher *refresh.Refresher, batchSize int, delay time.Duration) *Scheduler {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if delay <= 0 {
		delay = defaultDelay
	}
	return &Scheduler{
		store:     store,
		refresher: refresher,
		cron:      cron.New(),
		batchSize: batchSize,
		delay:     delay,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Start registers the minute tick and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(tickSpec, func() { s.Tick(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("suprss: scheduler started (every minute, batch %d)", s.batchSize)
	return nil
}

// Stop halts the cron runner and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Printf("suprss: scheduler stopped")
}

// Tick runs one due-feed pass: select up to batchSize active feeds ordered
// least-recently-fetched first, skip the ones still inside their frequency
// gap, and refresh the rest one at a time. Errors end the tick early but
// never escape it; failures on one feed do not touch the others.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		return
	}
	defer s.ticking.Store(false)

	candidates, err := s.store.DueFeedCandidates(s.batchSize)
	if err != nil {
		log.Printf("suprss: scheduler: failed to select candidates: %v", err)
		return
	}

	now := s.now()
	for i := range candidates {
		feed := &candidates[i]
		if feed.LastFetched != nil && now.Sub(*feed.LastFetched) < MinGap(feed.Frequency) {
			continue
		}

		if _, err := s.refresher.Refresh(ctx, feed, refresh.RefreshItemLimit); err != nil {
			log.Printf("suprss: scheduler: refresh of feed %d aborted tick: %v", feed.ID, err)
			return
		}

		// Pause between upstream fetches; shared hosts dislike bursts.
		s.sleep(s.delay)
	}
}

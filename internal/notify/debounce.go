// internal/notify/debounce.go
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Debouncer suppresses repeat outbid notifications for the same
// auction+bidder pair inside a time window, so a bidding war does not
// flood the previous leader. The clock is injectable for tests.
type Debouncer struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[debounceKey]time.Time
}

type debounceKey struct {
	auctionID uuid.UUID
	bidderID  uuid.UUID
}

// NewDebouncer builds a deduplicator with the given window. A nil clock
// defaults to time.Now.
func NewDebouncer(window time.Duration, clock func() time.Time) *Debouncer {
	if clock == nil {
		clock = time.Now
	}
	return &Debouncer{
		window: window,
		now:    clock,
		last:   make(map[debounceKey]time.Time),
	}
}

// Allow reports whether a notification for this auction+bidder may go
// out now, and records it if so.
func (d *Debouncer) Allow(auctionID, bidderID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	key := debounceKey{auctionID: auctionID, bidderID: bidderID}
	if sent, ok := d.last[key]; ok && now.Sub(sent) < d.window {
		return false
	}
	d.last[key] = now
	d.prune(now)
	return true
}

// prune drops entries older than the window so the map does not grow
// without bound across long-lived auctions.
func (d *Debouncer) prune(now time.Time) {
	if len(d.last) < 1024 {
		return
	}
	for k, sent := range d.last {
		if now.Sub(sent) >= d.window {
			delete(d.last, k)
		}
	}
}

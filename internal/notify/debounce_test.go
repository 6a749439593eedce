// internal/notify/debounce_test.go
package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDebouncerWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	d := NewDebouncer(5*time.Minute, clock)

	auctionID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	assert.True(t, d.Allow(auctionID, alice))
	assert.False(t, d.Allow(auctionID, alice))

	// Different bidder and different auction are independent keys.
	assert.True(t, d.Allow(auctionID, bob))
	assert.True(t, d.Allow(uuid.New(), alice))

	now = now.Add(4 * time.Minute)
	assert.False(t, d.Allow(auctionID, alice))

	now = now.Add(2 * time.Minute)
	assert.True(t, d.Allow(auctionID, alice))
}

func TestDebouncerDefaultClock(t *testing.T) {
	d := NewDebouncer(time.Minute, nil)
	id := uuid.New()
	assert.True(t, d.Allow(id, id))
	assert.False(t, d.Allow(id, id))
}

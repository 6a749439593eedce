// internal/sched/sched_test.go
package sched

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motorbid/internal/auction"
	"motorbid/internal/store"
)

func TestPollerTickFiresDueTriggers(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	st := store.NewMemoryStore()
	svc := auction.NewService(st, nil, clock)
	admin := auction.Actor{ID: uuid.New(), Role: "admin", IsActive: true}
	seller := auction.Actor{ID: uuid.New(), Role: "seller", IsActive: true}

	pending, err := svc.CreateAuction(ctx, seller, auction.CreateParams{
		Type:         auction.TypeStandard,
		StartPrice:   decimal.NewFromInt(1000),
		BidIncrement: decimal.NewFromInt(50),
		StartDate:    base.Add(time.Hour),
		EndDate:      base.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.ApproveAuction(ctx, admin, pending.ID)
	require.NoError(t, err)

	running, err := svc.CreateAuction(ctx, seller, auction.CreateParams{
		Type:         auction.TypeStandard,
		StartPrice:   decimal.NewFromInt(1000),
		BidIncrement: decimal.NewFromInt(50),
		StartDate:    base.Add(-2 * time.Hour),
		EndDate:      base.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.ApproveAuction(ctx, admin, running.ID)
	require.NoError(t, err)

	poller := NewPoller(st, svc, time.Second, clock)

	// Nothing is due yet.
	poller.Tick(ctx)
	got, err := svc.GetAuction(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusApproved, got.Status)

	// Past the start date the approved auction activates.
	now = base.Add(90 * time.Minute)
	poller.Tick(ctx)
	got, err = svc.GetAuction(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusActive, got.Status)

	// Past the end date the running auction closes.
	now = base.Add(3 * time.Hour)
	poller.Tick(ctx)
	got, err = svc.GetAuction(ctx, admin, running.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, got.Status)

	// Ticking again is harmless.
	poller.Tick(ctx)
	got, err = svc.GetAuction(ctx, admin, running.ID)
	require.NoError(t, err)
	assert.Equal(t, auction.StatusEnded, got.Status)
}

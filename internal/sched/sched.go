// internal/sched/sched.go
package sched

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"motorbid/internal/auction"
	"motorbid/internal/store"
)

// Trigger is the contract a durable timer service fulfils: it must call
// each entry point at least once at-or-after the target time. Both
// calls are idempotent, so firing late or twice after a scheduler
// restart is harmless. The auction Service satisfies this interface.
type Trigger interface {
	OnActivationDue(ctx context.Context, auctionID uuid.UUID) error
	OnCloseDue(ctx context.Context, auctionID uuid.UUID) error
}

// Poller is a minimal scheduler adapter: it scans the store for due
// auctions on an interval and fires the trigger. Deployments with a
// real durable timer call the trigger endpoints directly instead.
type Poller struct {
	store    store.Store
	trigger  Trigger
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewPoller(st store.Store, trigger Trigger, interval time.Duration, clock func() time.Time) *Poller {
	if clock == nil {
		clock = time.Now
	}
	return &Poller{
		store:    st,
		trigger:  trigger,
		interval: interval,
		batch:    100,
		now:      clock,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick fires every due activation and close once. Errors are logged and
// skipped; the next tick retries whatever is still due.
func (p *Poller) Tick(ctx context.Context) {
	now := p.now()

	ids, err := p.store.DueByStart(ctx, string(auction.StatusApproved), now, p.batch)
	if err != nil {
		log.Printf("[sched] list due activations: %v", err)
	}
	for _, id := range ids {
		if err := p.trigger.OnActivationDue(ctx, id); err != nil {
			log.Printf("[sched] activate %s: %v", id, err)
		}
	}

	ids, err = p.store.DueByEnd(ctx, string(auction.StatusActive), now, p.batch)
	if err != nil {
		log.Printf("[sched] list due closes: %v", err)
	}
	for _, id := range ids {
		if err := p.trigger.OnCloseDue(ctx, id); err != nil {
			log.Printf("[sched] close %s: %v", id, err)
		}
	}
}

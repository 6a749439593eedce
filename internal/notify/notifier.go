// internal/notify/notifier.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
)

// EventType names a fact emitted after a state transition commits.
type EventType string

const (
	EventNewBid           EventType = "bid.placed"
	EventOutbid           EventType = "bid.outbid"
	EventNewOffer         EventType = "offer.created"
	EventOfferAccepted    EventType = "offer.accepted"
	EventOfferRejected    EventType = "offer.rejected"
	EventOfferCountered   EventType = "offer.countered"
	EventOfferWithdrawn   EventType = "offer.withdrawn"
	EventOfferExpired     EventType = "offer.expired"
	EventAuctionActive    EventType = "auction.active"
	EventAuctionSold      EventType = "auction.sold"
	EventAuctionEnded     EventType = "auction.ended"
	EventAuctionCancelled EventType = "auction.cancelled"
)

// Event is the fact handed to the dispatcher. Delivery is asynchronous
// and best effort; the core never waits on it.
type Event struct {
	Type      EventType        `json:"type"`
	AuctionID uuid.UUID        `json:"auction_id"`
	UserID    *uuid.UUID       `json:"user_id,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	At        time.Time        `json:"at"`
}

// Notifier dispatches fact events. Failures are the implementation's
// problem; callers fire and forget.
type Notifier interface {
	Publish(ctx context.Context, e Event)
}

// LogNotifier writes events to the process log. Default when no broker
// is configured, and the test double's base.
type LogNotifier struct{}

func (LogNotifier) Publish(_ context.Context, e Event) {
	log.Printf("[notify] %s auction=%s", e.Type, e.AuctionID)
}

// NATSNotifier publishes events to a JetStream stream so downstream
// consumers (email dispatch, archival) replay them independently.
type NATSNotifier struct {
	js jetstream.JetStream
}

// NewNATSNotifier ensures the stream exists and returns a publisher.
func NewNATSNotifier(nc *nats.Conn) (*NATSNotifier, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        "AUCTION_EVENTS",
		Description: "Auction lifecycle and bidding facts",
		Subjects:    []string{"auction.events.>"},
		Storage:     jetstream.FileStorage,
		MaxAge:      168 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update stream: %w", err)
	}

	return &NATSNotifier{js: js}, nil
}

// Publish sends the event. Errors are logged and swallowed; a failed
// notification never rolls back the transition that produced it.
func (n *NATSNotifier) Publish(ctx context.Context, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("[notify] marshal event %s: %v", e.Type, err)
		return
	}
	subject := fmt.Sprintf("auction.events.%s", e.Type)
	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		log.Printf("[notify] publish %s: %v", subject, err)
	}
}

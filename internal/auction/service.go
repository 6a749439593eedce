// internal/auction/service.go
package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Actor is the resolved caller identity handed down from the auth
// layer: id, role and account standing. Resolution itself is an
// external concern; the preconditions here only consume the result.
type Actor struct {
	ID       uuid.UUID `json:"id"`
	Role     string    `json:"role"`
	IsActive bool      `json:"is_active"`
}

func (a Actor) IsAdmin() bool { return a.Role == "admin" }

// Service defines the interface for the auction core. Every mutation is
// a serializable read-modify-write against the current persisted
// snapshot, retried a bounded number of times on conflict.
type Service interface {
	CreateAuction(ctx context.Context, actor Actor, p CreateParams) (*Auction, error)
	GetAuction(ctx context.Context, actor Actor, id uuid.UUID) (*Auction, error)
	ApproveAuction(ctx context.Context, actor Actor, id uuid.UUID) (*Auction, error)
	EndAuction(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Auction, error)
	CancelAuction(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Auction, error)
	RelistAuction(ctx context.Context, actor Actor, id uuid.UUID, startDate, endDate time.Time) (*Auction, error)
	DeleteAuction(ctx context.Context, actor Actor, id uuid.UUID) error

	PlaceBid(ctx context.Context, actor Actor, auctionID uuid.UUID, amount decimal.Decimal) (*Auction, error)
	BuyNow(ctx context.Context, actor Actor, auctionID uuid.UUID) (*Auction, error)
	RemoveBidsForBidder(ctx context.Context, actor Actor, auctionID, bidderID uuid.UUID) (*Auction, error)

	ListOffers(ctx context.Context, actor Actor, auctionID uuid.UUID) ([]*Offer, error)
	MakeOffer(ctx context.Context, actor Actor, auctionID uuid.UUID, amount decimal.Decimal, message string) (*Offer, error)
	RespondToOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID, decision OfferDecision, counterAmount *decimal.Decimal, message string) (*Offer, error)
	RespondToCounterOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID, accepts bool) (*Offer, error)
	WithdrawOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID) (*Offer, error)
	ReactivateAndAcceptOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID) (*Offer, error)
	AdminCancelOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID, reason string) (*Offer, error)

	RecordPayment(ctx context.Context, actor Actor, auctionID uuid.UUID, method, transactionID string) (*Auction, error)
	UpdatePaymentStatus(ctx context.Context, actor Actor, auctionID uuid.UUID, status PaymentStatus) (*Auction, error)

	// Scheduling contract: idempotent entry points an external durable
	// timer invokes at-or-after the target times. Safe to call late or
	// twice.
	OnActivationDue(ctx context.Context, auctionID uuid.UUID) error
	OnCloseDue(ctx context.Context, auctionID uuid.UUID) error

	// SweepExpiredOffers expires stale pending/countered offers across
	// all auctions. Idempotent batch, safe on any cadence.
	SweepExpiredOffers(ctx context.Context) (int, error)
}

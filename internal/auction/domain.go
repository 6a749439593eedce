// internal/auction/domain.go
package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type classifies how an auction can be won.
type Type string

const (
	TypeStandard Type = "standard"
	TypeReserve  Type = "reserve"
	TypeBuyNow   Type = "buy_now"
)

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusApproved      Status = "approved"
	StatusActive        Status = "active"
	StatusEnded         Status = "ended"
	StatusSold          Status = "sold"
	StatusSoldBuyNow    Status = "sold_buy_now"
	StatusReserveNotMet Status = "reserve_not_met"
	StatusCancelled     Status = "cancelled"
)

// Terminal reports whether no further bids or offer responses are accepted.
func (s Status) Terminal() bool {
	switch s {
	case StatusEnded, StatusSold, StatusSoldBuyNow, StatusReserveNotMet, StatusCancelled:
		return true
	}
	return false
}

// OfferStatus is the negotiation state of a single offer.
type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferCountered OfferStatus = "countered"
	OfferWithdrawn OfferStatus = "withdrawn"
	OfferExpired   OfferStatus = "expired"
)

// PaymentStatus tracks settlement state after a sale. Capture itself is
// handled outside this system; only the status is recorded here.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// NegotiationWindow is how long an offer or counter-offer stays open
// before the sweep expires it.
const NegotiationWindow = 48 * time.Hour

// Bid is an immutable, timestamped price commitment. Bids are owned by
// their auction and never individually edited or deleted; the only bulk
// removal path is the audited bidder purge in the ledger.
type Bid struct {
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// CounterOffer is a seller-proposed amended price attached to an offer
// while it is in the countered state.
type CounterOffer struct {
	Amount    decimal.Decimal `json:"amount"`
	Message   string          `json:"message,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Offer is a negotiable price proposal with its own accept/reject/counter
// sub-lifecycle. Amounts and creation data are immutable once recorded;
// only the status-transition fields change.
type Offer struct {
	ID             uuid.UUID       `json:"id"`
	BuyerID        uuid.UUID       `json:"buyer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Message        string          `json:"message,omitempty"`
	Status         OfferStatus     `json:"status"`
	CounterOffer   *CounterOffer   `json:"counter_offer,omitempty"`
	SellerResponse string          `json:"seller_response,omitempty"`
	ExpiresAt      time.Time       `json:"expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Auction is the aggregate root: one vehicle listing with its full
// bidding and offer history. All mutation goes through the methods in
// this package so the derived fields stay consistent with the ledger.
type Auction struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	Type     Type      `json:"auction_type"`

	StartPrice   decimal.Decimal  `json:"start_price"`
	BidIncrement decimal.Decimal  `json:"bid_increment,omitempty"`
	ReservePrice *decimal.Decimal `json:"reserve_price,omitempty"`
	BuyNowPrice  *decimal.Decimal `json:"buy_now_price,omitempty"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	FinalPrice   *decimal.Decimal `json:"final_price,omitempty"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	Bids          []Bid      `json:"bids"`
	BidCount      int        `json:"bid_count"`
	CurrentBidder *uuid.UUID `json:"current_bidder,omitempty"`
	LastBidTime   *time.Time `json:"last_bid_time,omitempty"`

	Offers      map[uuid.UUID]*Offer `json:"offers"`
	AllowOffers bool                 `json:"allow_offers"`

	Status      Status     `json:"status"`
	WinnerID    *uuid.UUID `json:"winner_id,omitempty"`
	EndedBy     *uuid.UUID `json:"ended_by,omitempty"`
	EndedReason string     `json:"ended_reason,omitempty"`

	PaymentStatus      PaymentStatus    `json:"payment_status"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	TransactionID      string           `json:"transaction_id,omitempty"`
	PaymentDate        *time.Time       `json:"payment_date,omitempty"`
	InvoiceDocumentID  string           `json:"invoice_document_id,omitempty"`
	CommissionAmount   *decimal.Decimal `json:"commission_amount,omitempty"`
	BidPaymentRequired bool             `json:"bid_payment_required"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateParams carries the seller-supplied fields for a new listing.
type CreateParams struct {
	SellerID     uuid.UUID        `json:"seller_id"`
	Type         Type             `json:"auction_type"`
	StartPrice   decimal.Decimal  `json:"start_price"`
	BidIncrement decimal.Decimal  `json:"bid_increment"`
	ReservePrice *decimal.Decimal `json:"reserve_price"`
	BuyNowPrice  *decimal.Decimal `json:"buy_now_price"`
	StartDate    time.Time        `json:"start_date"`
	EndDate      time.Time        `json:"end_date"`
	AllowOffers  bool             `json:"allow_offers"`
}

// New validates params and builds a draft auction.
func New(p CreateParams, now time.Time) (*Auction, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	return &Auction{
		ID:            uuid.New(),
		SellerID:      p.SellerID,
		Type:          p.Type,
		StartPrice:    p.StartPrice,
		BidIncrement:  p.BidIncrement,
		ReservePrice:  p.ReservePrice,
		BuyNowPrice:   p.BuyNowPrice,
		CurrentPrice:  p.StartPrice,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Offers:        make(map[uuid.UUID]*Offer),
		AllowOffers:   p.AllowOffers,
		Status:        StatusDraft,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func validateParams(p CreateParams) error {
	switch p.Type {
	case TypeStandard, TypeReserve, TypeBuyNow:
	default:
		return ErrInvalidAuctionType
	}
	if p.StartPrice.IsNegative() {
		return ErrInvalidAmount
	}
	if !p.EndDate.After(p.StartDate) {
		return ErrInvalidDates
	}
	if p.Type == TypeStandard || p.Type == TypeReserve {
		if !p.BidIncrement.IsPositive() {
			return ErrInvalidIncrement
		}
	}
	if p.Type == TypeReserve {
		if p.ReservePrice == nil || p.ReservePrice.LessThan(p.StartPrice) {
			return ErrInvalidReservePrice
		}
	}
	if p.Type == TypeBuyNow {
		if p.BuyNowPrice == nil || p.BuyNowPrice.LessThan(p.StartPrice) {
			return ErrInvalidBuyNowPrice
		}
	}
	if p.BuyNowPrice != nil && p.BuyNowPrice.LessThan(p.StartPrice) {
		return ErrInvalidBuyNowPrice
	}
	return nil
}

// IsReserveMet reports whether a close at the current price may sell.
// True when no reserve is set.
func (a *Auction) IsReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentPrice.GreaterThanOrEqual(*a.ReservePrice)
}

// Offer returns the offer with the given id, or ErrOfferNotFound.
func (a *Auction) Offer(id uuid.UUID) (*Offer, error) {
	o, ok := a.Offers[id]
	if !ok {
		return nil, ErrOfferNotFound
	}
	return o, nil
}

// AcceptedOffer returns the accepted offer, if any. At most one offer per
// auction can ever reach the accepted state.
func (a *Auction) AcceptedOffer() *Offer {
	for _, o := range a.Offers {
		if o.Status == OfferAccepted {
			return o
		}
	}
	return nil
}

// EarliestOpenOfferExpiry returns the soonest expiry among pending and
// countered offers, or nil when none are open. The store denormalizes
// this so the sweep can find auctions with stale offers by index.
func (a *Auction) EarliestOpenOfferExpiry() *time.Time {
	var earliest *time.Time
	for _, o := range a.Offers {
		var at time.Time
		switch o.Status {
		case OfferPending:
			at = o.ExpiresAt
		case OfferCountered:
			at = o.CounterOffer.ExpiresAt
		default:
			continue
		}
		if earliest == nil || at.Before(*earliest) {
			t := at
			earliest = &t
		}
	}
	return earliest
}

// Redacted returns a copy safe to show the given caller. The reserve
// price is never disclosed to anyone but the seller.
func (a *Auction) Redacted(callerID uuid.UUID, isAdmin bool) *Auction {
	if isAdmin || callerID == a.SellerID {
		return a
	}
	c := *a
	c.ReservePrice = nil
	return &c
}

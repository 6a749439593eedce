// internal/auction/offers.go
package auction

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OfferDecision is the seller's response to a pending offer.
type OfferDecision string

const (
	DecisionAccept  OfferDecision = "accept"
	DecisionReject  OfferDecision = "reject"
	DecisionCounter OfferDecision = "counter"
)

// MakeOffer records a new pending offer with a 48h negotiation window.
func (a *Auction) MakeOffer(buyerID uuid.UUID, amount decimal.Decimal, message string, now time.Time) (*Offer, error) {
	if !a.AllowOffers {
		return nil, ErrOffersNotAllowed
	}
	if a.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}
	if !now.Before(a.EndDate) {
		return nil, ErrAuctionEnded
	}
	if buyerID == a.SellerID {
		return nil, ErrSelfOffer
	}
	if !amount.IsPositive() || amount.LessThan(a.StartPrice) {
		return nil, ErrInvalidAmount
	}
	if a.BuyNowPrice != nil && amount.GreaterThanOrEqual(*a.BuyNowPrice) {
		return nil, ErrUseBuyNow
	}
	for _, o := range a.Offers {
		if o.BuyerID == buyerID && o.Status == OfferPending {
			return nil, ErrDuplicatePendingOffer
		}
	}

	o := &Offer{
		ID:        uuid.New(),
		BuyerID:   buyerID,
		Amount:    amount,
		Message:   message,
		Status:    OfferPending,
		ExpiresAt: now.Add(NegotiationWindow),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if a.Offers == nil {
		a.Offers = make(map[uuid.UUID]*Offer)
	}
	a.Offers[o.ID] = o
	a.UpdatedAt = now
	return o, nil
}

// RespondToOffer applies the seller's decision to a pending offer.
// Accepting sells the auction at the offer amount. Sibling offers are
// deliberately left in their own states; they do not auto-reject.
func (a *Auction) RespondToOffer(callerID uuid.UUID, isAdmin bool, offerID uuid.UUID, decision OfferDecision, counterAmount *decimal.Decimal, message string, now time.Time) (*Offer, error) {
	if !isAdmin && callerID != a.SellerID {
		return nil, ErrUnauthorized
	}
	if a.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}
	o, err := a.Offer(offerID)
	if err != nil {
		return nil, err
	}
	if o.Status != OfferPending {
		return nil, ErrInvalidOfferState
	}
	if !now.Before(o.ExpiresAt) {
		return nil, ErrOfferExpired
	}

	switch decision {
	case DecisionAccept:
		o.Status = OfferAccepted
		o.SellerResponse = message
		o.UpdatedAt = now
		a.sellViaOffer(o, o.Amount, callerID, now)
	case DecisionReject:
		o.Status = OfferRejected
		o.SellerResponse = message
		o.UpdatedAt = now
	case DecisionCounter:
		if counterAmount == nil || counterAmount.LessThanOrEqual(o.Amount) {
			return nil, ErrInvalidCounterAmount
		}
		if a.BuyNowPrice != nil && counterAmount.GreaterThanOrEqual(*a.BuyNowPrice) {
			return nil, ErrInvalidCounterAmount
		}
		o.Status = OfferCountered
		o.CounterOffer = &CounterOffer{
			Amount:    *counterAmount,
			Message:   message,
			ExpiresAt: now.Add(NegotiationWindow),
		}
		o.SellerResponse = message
		o.UpdatedAt = now
	default:
		return nil, ErrInvalidResponseType
	}
	a.UpdatedAt = now
	return o, nil
}

// RespondToCounterOffer lets the buyer answer a counter-offer. Accepting
// sells the auction at the countered amount. Declining leaves the offer
// countered until the sweep expires it; no separate rejected-counter
// state is modeled.
func (a *Auction) RespondToCounterOffer(callerID, offerID uuid.UUID, accepts bool, now time.Time) (*Offer, error) {
	o, err := a.Offer(offerID)
	if err != nil {
		return nil, err
	}
	if callerID != o.BuyerID {
		return nil, ErrUnauthorized
	}
	if o.Status != OfferCountered {
		return nil, ErrInvalidOfferState
	}
	if !now.Before(o.CounterOffer.ExpiresAt) {
		return nil, ErrCounterExpired
	}
	if !accepts {
		return o, nil
	}
	if a.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}
	o.Status = OfferAccepted
	o.UpdatedAt = now
	a.sellViaOffer(o, o.CounterOffer.Amount, callerID, now)
	a.UpdatedAt = now
	return o, nil
}

// WithdrawOffer lets the buyer retract a still-pending offer.
func (a *Auction) WithdrawOffer(offerID, buyerID uuid.UUID, now time.Time) (*Offer, error) {
	o, err := a.Offer(offerID)
	if err != nil {
		return nil, err
	}
	if buyerID != o.BuyerID {
		return nil, ErrUnauthorized
	}
	if o.Status != OfferPending {
		return nil, ErrInvalidOfferState
	}
	o.Status = OfferWithdrawn
	o.UpdatedAt = now
	a.UpdatedAt = now
	return o, nil
}

// ReactivateAndAcceptOffer forces a rejected or withdrawn offer straight
// to accepted, selling the auction. This is the seller/admin escape hatch
// for re-opening a dead deal; it still respects sale exclusivity.
func (a *Auction) ReactivateAndAcceptOffer(offerID, actorID uuid.UUID, isAdmin bool, now time.Time) (*Offer, error) {
	if !isAdmin && actorID != a.SellerID {
		return nil, ErrUnauthorized
	}
	if a.Status == StatusSold || a.Status == StatusSoldBuyNow {
		return nil, ErrAuctionAlreadySold
	}
	if a.Status == StatusCancelled {
		return nil, ErrInvalidStatus
	}
	o, err := a.Offer(offerID)
	if err != nil {
		return nil, err
	}
	if o.Status != OfferRejected && o.Status != OfferWithdrawn {
		return nil, ErrInvalidOfferState
	}
	o.Status = OfferAccepted
	o.UpdatedAt = now
	a.sellViaOffer(o, o.Amount, actorID, now)
	a.UpdatedAt = now
	return o, nil
}

// AdminCancelOffer forces an open offer to withdrawn with an audit
// reason. Moderation tool; terminal offers stay as they are.
func (a *Auction) AdminCancelOffer(offerID uuid.UUID, reason string, now time.Time) (*Offer, error) {
	o, err := a.Offer(offerID)
	if err != nil {
		return nil, err
	}
	if o.Status != OfferPending && o.Status != OfferCountered {
		return nil, ErrInvalidOfferState
	}
	o.Status = OfferWithdrawn
	o.SellerResponse = reason
	o.CounterOffer = nil
	o.UpdatedAt = now
	a.UpdatedAt = now
	return o, nil
}

// SweepExpiredOffers expires every pending or countered offer whose
// deadline has passed. Idempotent; returns the ids it expired.
func (a *Auction) SweepExpiredOffers(now time.Time) []uuid.UUID {
	var expired []uuid.UUID
	for id, o := range a.Offers {
		var deadline time.Time
		switch o.Status {
		case OfferPending:
			deadline = o.ExpiresAt
		case OfferCountered:
			deadline = o.CounterOffer.ExpiresAt
		default:
			continue
		}
		if deadline.Before(now) {
			o.Status = OfferExpired
			o.SellerResponse = "Offer expired"
			o.UpdatedAt = now
			expired = append(expired, id)
		}
	}
	if len(expired) > 0 {
		a.UpdatedAt = now
	}
	return expired
}

// VisibleOffers returns the offers the viewer may see, oldest first.
// The seller and admins see every offer; a buyer sees only their own.
func (a *Auction) VisibleOffers(viewerID uuid.UUID, isAdmin bool) []*Offer {
	all := isAdmin || viewerID == a.SellerID
	offers := make([]*Offer, 0, len(a.Offers))
	for _, o := range a.Offers {
		if all || o.BuyerID == viewerID {
			offers = append(offers, o)
		}
	}
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].ID.String() < offers[j].ID.String()
		}
		return offers[i].CreatedAt.Before(offers[j].CreatedAt)
	})
	return offers
}

// sellViaOffer finalizes the auction from an accepted offer. The accepted
// offer is the unique cause of a sold-via-offer transition.
func (a *Auction) sellViaOffer(o *Offer, amount decimal.Decimal, actorID uuid.UUID, now time.Time) {
	a.Status = StatusSold
	buyer := o.BuyerID
	a.WinnerID = &buyer
	price := amount
	a.FinalPrice = &price
	actor := actorID
	a.EndedBy = &actor
	a.EndedReason = "offer accepted"
	a.PaymentStatus = PaymentPending
}

// internal/auction/ledger.go
package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinNextBid returns the lowest amount the next bid must reach.
func (a *Auction) MinNextBid() decimal.Decimal {
	if len(a.Bids) == 0 {
		return a.StartPrice.Add(a.BidIncrement)
	}
	return a.CurrentPrice.Add(a.BidIncrement)
}

// PlaceBid validates and appends a bid, updating the derived pricing
// fields in the same step. The caller persists the whole aggregate
// atomically, so the ledger append and the recompute commit together.
func (a *Auction) PlaceBid(bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*Bid, error) {
	if a.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}
	if !now.Before(a.EndDate) {
		return nil, ErrAuctionEnded
	}
	if bidderID == a.SellerID {
		return nil, ErrSelfOffer
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if a.BuyNowPrice != nil && amount.GreaterThanOrEqual(*a.BuyNowPrice) {
		return nil, ErrUseBuyNow
	}
	if amount.LessThan(a.MinNextBid()) {
		return nil, ErrInvalidBidAmount
	}

	bid := Bid{BidderID: bidderID, Amount: amount, Timestamp: now}
	a.Bids = append(a.Bids, bid)
	a.CurrentPrice = amount
	a.CurrentBidder = &bid.BidderID
	a.BidCount = len(a.Bids)
	t := now
	a.LastBidTime = &t
	a.UpdatedAt = now
	return &a.Bids[len(a.Bids)-1], nil
}

// RemoveBidsForBidder purges every bid by one bidder and recomputes the
// derived price fields from what remains. This is the administrative
// cleanup path used when a bidder account is deleted; it is only legal
// while the auction is still active.
func (a *Auction) RemoveBidsForBidder(bidderID uuid.UUID, now time.Time) (int, error) {
	if a.Status != StatusActive {
		return 0, ErrAuctionNotActive
	}
	kept := a.Bids[:0]
	removed := 0
	for _, b := range a.Bids {
		if b.BidderID == bidderID {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	if removed == 0 {
		return 0, nil
	}
	a.Bids = kept
	a.recomputeFromLedger()
	a.UpdatedAt = now
	return removed, nil
}

// recomputeFromLedger rederives currentPrice, currentBidder and bidCount
// from the remaining bids. With an empty ledger the price falls back to
// the start price and the leader is cleared.
func (a *Auction) recomputeFromLedger() {
	a.BidCount = len(a.Bids)
	if len(a.Bids) == 0 {
		a.CurrentPrice = a.StartPrice
		a.CurrentBidder = nil
		a.LastBidTime = nil
		return
	}
	top := a.Bids[0]
	for _, b := range a.Bids[1:] {
		if b.Amount.GreaterThan(top.Amount) {
			top = b
		}
	}
	a.CurrentPrice = top.Amount
	bidder := top.BidderID
	a.CurrentBidder = &bidder
	ts := a.Bids[len(a.Bids)-1].Timestamp
	a.LastBidTime = &ts
}

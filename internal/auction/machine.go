// internal/auction/machine.go
package auction

import (
	"time"

	"github.com/google/uuid"
)

// Approve moves a draft listing into the live pipeline. When the start
// date is already behind us the auction goes straight to active, and if
// the end date has also passed it is closed in the same step.
func (a *Auction) Approve(adminID uuid.UUID, now time.Time) error {
	if a.Status != StatusDraft {
		return ErrInvalidStatus
	}
	if a.StartDate.After(now) {
		a.Status = StatusApproved
		a.UpdatedAt = now
		return nil
	}
	a.Status = StatusActive
	a.UpdatedAt = now
	if !now.Before(a.EndDate) {
		a.close(nil, "", now)
	}
	return nil
}

// Activate is the scheduled activation entry point. Idempotent: a second
// or late trigger on an already-active or closed auction is a no-op.
func (a *Auction) Activate(now time.Time) error {
	switch a.Status {
	case StatusApproved:
		a.Status = StatusActive
		a.UpdatedAt = now
		return nil
	case StatusActive:
		return nil
	default:
		if a.Status.Terminal() {
			return nil
		}
		return ErrInvalidStatus
	}
}

// Close runs the natural-close evaluation. Idempotent: if an accepted
// offer already sold the auction, or a previous trigger already closed
// it, the call is a no-op.
func (a *Auction) Close(now time.Time) error {
	if a.Status.Terminal() {
		return nil
	}
	if a.Status != StatusActive {
		return ErrInvalidStatus
	}
	a.close(nil, "", now)
	return nil
}

// EndNow is the manual administrative end; it applies the same
// evaluation as a natural close, at call time.
func (a *Auction) EndNow(adminID uuid.UUID, reason string, now time.Time) error {
	if a.Status.Terminal() {
		return ErrInvalidStatus
	}
	if a.Status != StatusActive {
		return ErrInvalidStatus
	}
	a.close(&adminID, reason, now)
	return nil
}

func (a *Auction) close(endedBy *uuid.UUID, reason string, now time.Time) {
	switch {
	case len(a.Bids) == 0:
		a.Status = StatusEnded
	case a.IsReserveMet():
		a.Status = StatusSold
		a.WinnerID = a.CurrentBidder
		price := a.CurrentPrice
		a.FinalPrice = &price
	default:
		a.Status = StatusReserveNotMet
	}
	a.EndedBy = endedBy
	a.EndedReason = reason
	a.UpdatedAt = now
}

// BuyNow ends the auction immediately at the buy-now price, bypassing
// bidding and offers.
func (a *Auction) BuyNow(buyerID uuid.UUID, now time.Time) error {
	if a.BuyNowPrice == nil {
		return ErrNoBuyNow
	}
	if a.Status != StatusActive {
		return ErrAuctionNotActive
	}
	if !now.Before(a.EndDate) {
		return ErrAuctionEnded
	}
	if buyerID == a.SellerID {
		return ErrSelfOffer
	}
	a.Status = StatusSoldBuyNow
	buyer := buyerID
	a.WinnerID = &buyer
	price := *a.BuyNowPrice
	a.FinalPrice = &price
	a.EndedReason = "buy now"
	a.UpdatedAt = now
	return nil
}

// Cancel aborts any non-terminal auction.
func (a *Auction) Cancel(actorID uuid.UUID, isAdmin bool, reason string, now time.Time) error {
	if !isAdmin && actorID != a.SellerID {
		return ErrUnauthorized
	}
	if a.Status.Terminal() {
		return ErrInvalidStatus
	}
	a.Status = StatusCancelled
	actor := actorID
	a.EndedBy = &actor
	a.EndedReason = reason
	a.UpdatedAt = now
	return nil
}

// CanDelete reports whether the auction may be hard-deleted. An active
// auction that has attracted bids must be cancelled first.
func (a *Auction) CanDelete() error {
	if a.Status == StatusActive && a.BidCount > 0 {
		return ErrAuctionHasBids
	}
	return nil
}

// Relist re-opens a sold listing with new dates. The entire bidding,
// offer, outcome and payment sub-state is reset; the lifecycle restarts
// from draft semantics and the status is rederived from the new dates.
func (a *Auction) Relist(sellerID uuid.UUID, isAdmin bool, startDate, endDate time.Time, now time.Time) error {
	if !isAdmin && sellerID != a.SellerID {
		return ErrUnauthorized
	}
	if a.Status != StatusSold && a.Status != StatusSoldBuyNow {
		return ErrInvalidStatus
	}
	if !endDate.After(startDate) {
		return ErrInvalidDates
	}
	a.StartDate = startDate
	a.EndDate = endDate
	a.Bids = nil
	a.BidCount = 0
	a.CurrentBidder = nil
	a.LastBidTime = nil
	a.CurrentPrice = a.StartPrice
	a.Offers = make(map[uuid.UUID]*Offer)
	a.WinnerID = nil
	a.FinalPrice = nil
	a.EndedBy = nil
	a.EndedReason = ""
	a.PaymentStatus = PaymentPending
	a.PaymentMethod = ""
	a.TransactionID = ""
	a.PaymentDate = nil
	a.InvoiceDocumentID = ""
	a.CommissionAmount = nil
	a.Status = StatusDraft
	a.UpdatedAt = now
	return nil
}

// paymentTransitions lists the legal payment status moves. Capture and
// settlement happen outside; only the bookkeeping lives here.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCancelled},
	PaymentProcessing: {PaymentCompleted, PaymentFailed},
	PaymentFailed:     {PaymentProcessing, PaymentCancelled},
	PaymentCompleted:  {PaymentRefunded},
}

// RecordPayment attaches payment details and moves the sale to
// processing.
func (a *Auction) RecordPayment(method, transactionID string, now time.Time) error {
	if a.Status != StatusSold && a.Status != StatusSoldBuyNow {
		return ErrNotSold
	}
	if err := a.UpdatePaymentStatus(PaymentProcessing, now); err != nil {
		return err
	}
	a.PaymentMethod = method
	a.TransactionID = transactionID
	t := now
	a.PaymentDate = &t
	return nil
}

// UpdatePaymentStatus applies one legal payment transition.
func (a *Auction) UpdatePaymentStatus(next PaymentStatus, now time.Time) error {
	if a.Status != StatusSold && a.Status != StatusSoldBuyNow {
		return ErrNotSold
	}
	for _, allowed := range paymentTransitions[a.PaymentStatus] {
		if next == allowed {
			a.PaymentStatus = next
			a.UpdatedAt = now
			return nil
		}
	}
	return ErrInvalidPaymentStatus
}

// internal/auction/offers_test.go
package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOfferAuction(t *testing.T) *Auction {
	t.Helper()
	a := newActiveAuction(t)
	a.BuyNowPrice = decPtr(4000)
	return a
}

func TestMakeOfferValidation(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()

	_, err := a.MakeOffer(a.SellerID, dec(2000), "", baseTime)
	assert.ErrorIs(t, err, ErrSelfOffer)

	_, err = a.MakeOffer(buyer, dec(500), "", baseTime)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = a.MakeOffer(buyer, dec(4000), "", baseTime)
	assert.ErrorIs(t, err, ErrUseBuyNow)

	_, err = a.MakeOffer(buyer, dec(2000), "", a.EndDate)
	assert.ErrorIs(t, err, ErrAuctionEnded)

	a.AllowOffers = false
	_, err = a.MakeOffer(buyer, dec(2000), "", baseTime)
	assert.ErrorIs(t, err, ErrOffersNotAllowed)
	a.AllowOffers = true

	o, err := a.MakeOffer(buyer, dec(2000), "first", baseTime)
	require.NoError(t, err)
	assert.Equal(t, OfferPending, o.Status)
	assert.Equal(t, baseTime.Add(NegotiationWindow), o.ExpiresAt)

	// One pending offer per buyer.
	_, err = a.MakeOffer(buyer, dec(2100), "second", baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, ErrDuplicatePendingOffer)

	// A different buyer can still offer.
	_, err = a.MakeOffer(uuid.New(), dec(2100), "", baseTime.Add(time.Minute))
	assert.NoError(t, err)
}

func TestRespondToOfferAccept(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	o, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)

	// Only the seller or an admin may respond.
	_, err = a.RespondToOffer(uuid.New(), false, o.ID, DecisionAccept, nil, "", baseTime.Add(time.Hour))
	require.ErrorIs(t, err, ErrUnauthorized)

	got, err := a.RespondToOffer(a.SellerID, false, o.ID, DecisionAccept, nil, "deal", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferAccepted, got.Status)
	assert.Equal(t, StatusSold, a.Status)
	require.NotNil(t, a.WinnerID)
	assert.Equal(t, buyer, *a.WinnerID)
	require.NotNil(t, a.FinalPrice)
	assert.True(t, a.FinalPrice.Equal(dec(3000)))
}

// Accepting one offer leaves sibling offers in their own states. The
// product has not decided whether pending siblings should auto-expire;
// until it does, they stay pending and are simply unactionable because
// the auction is no longer active.
func TestAcceptLeavesSiblingOffersUntouched(t *testing.T) {
	a := newOfferAuction(t)
	first, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)
	second, err := a.MakeOffer(uuid.New(), dec(3200), "", baseTime)
	require.NoError(t, err)

	_, err = a.RespondToOffer(a.SellerID, false, first.ID, DecisionAccept, nil, "", baseTime.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, OfferPending, second.Status)
	_, err = a.RespondToOffer(a.SellerID, false, second.ID, DecisionAccept, nil, "", baseTime.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAuctionNotActive)
}

func TestRespondToOfferReject(t *testing.T) {
	a := newOfferAuction(t)
	o, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)

	got, err := a.RespondToOffer(a.SellerID, false, o.ID, DecisionReject, nil, "too low", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferRejected, got.Status)
	assert.Equal(t, "too low", got.SellerResponse)
	assert.Equal(t, StatusActive, a.Status)
}

func TestRespondToOfferCounterValidation(t *testing.T) {
	a := newOfferAuction(t)
	o, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)

	// Counter must exceed the offer and stay below buy-now.
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(3000), "", baseTime.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidCounterAmount)
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(4000), "", baseTime.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidCounterAmount)
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, OfferDecision("maybe"), nil, "", baseTime.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidResponseType)

	got, err := a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(3500), "meet me here", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferCountered, got.Status)
	require.NotNil(t, got.CounterOffer)
	assert.True(t, got.CounterOffer.Amount.Equal(dec(3500)))
	assert.Equal(t, baseTime.Add(time.Hour).Add(NegotiationWindow), got.CounterOffer.ExpiresAt)
}

// Buyer offers 3000 against a 4000 buy-now, seller counters 3500, buyer
// accepts: sold at 3500.
func TestCounterOfferAcceptedSellsAuction(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	o, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(3500), "", baseTime.Add(time.Hour))
	require.NoError(t, err)

	// Only the offer's buyer may answer the counter.
	_, err = a.RespondToCounterOffer(uuid.New(), o.ID, true, baseTime.Add(2*time.Hour))
	require.ErrorIs(t, err, ErrUnauthorized)

	got, err := a.RespondToCounterOffer(buyer, o.ID, true, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferAccepted, got.Status)
	assert.Equal(t, StatusSold, a.Status)
	require.NotNil(t, a.FinalPrice)
	assert.True(t, a.FinalPrice.Equal(dec(3500)))
	require.NotNil(t, a.WinnerID)
	assert.Equal(t, buyer, *a.WinnerID)
}

func TestCounterOfferDeclineLeavesStateAlone(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	o, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(3500), "", baseTime.Add(time.Hour))
	require.NoError(t, err)

	// Declining is not modeled as a terminal transition; the counter
	// stays open until it expires.
	got, err := a.RespondToCounterOffer(buyer, o.ID, false, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferCountered, got.Status)
	assert.Equal(t, StatusActive, a.Status)
}

func TestCounterOfferExpiry(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	o, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)
	counteredAt := baseTime.Add(time.Hour)
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(3500), "", counteredAt)
	require.NoError(t, err)

	_, err = a.RespondToCounterOffer(buyer, o.ID, true, counteredAt.Add(NegotiationWindow))
	assert.ErrorIs(t, err, ErrCounterExpired)
}

func TestWithdrawOffer(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	o, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)

	_, err = a.WithdrawOffer(o.ID, uuid.New(), baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := a.WithdrawOffer(o.ID, buyer, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OfferWithdrawn, got.Status)

	_, err = a.WithdrawOffer(o.ID, buyer, baseTime.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidOfferState)
}

// Seller rejects offer #1, an admin later reactivates it into an
// acceptance; a second reactivation on any offer then fails because the
// auction is already sold.
func TestReactivateAndAcceptOffer(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	first, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)
	second, err := a.MakeOffer(uuid.New(), dec(3100), "", baseTime)
	require.NoError(t, err)

	_, err = a.RespondToOffer(a.SellerID, false, first.ID, DecisionReject, nil, "no", baseTime.Add(time.Hour))
	require.NoError(t, err)
	_, err = a.WithdrawOffer(second.ID, second.BuyerID, baseTime.Add(time.Hour))
	require.NoError(t, err)

	admin := uuid.New()
	got, err := a.ReactivateAndAcceptOffer(first.ID, admin, true, baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OfferAccepted, got.Status)
	assert.Equal(t, StatusSold, a.Status)
	require.NotNil(t, a.FinalPrice)
	assert.True(t, a.FinalPrice.Equal(dec(3000)))

	_, err = a.ReactivateAndAcceptOffer(second.ID, admin, true, baseTime.Add(3*time.Hour))
	assert.ErrorIs(t, err, ErrAuctionAlreadySold)
}

func TestReactivateRequiresRejectedOrWithdrawn(t *testing.T) {
	a := newOfferAuction(t)
	o, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)

	_, err = a.ReactivateAndAcceptOffer(o.ID, a.SellerID, false, baseTime.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidOfferState)

	_, err = a.ReactivateAndAcceptOffer(o.ID, uuid.New(), false, baseTime.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAdminCancelOffer(t *testing.T) {
	a := newOfferAuction(t)
	o, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)

	got, err := a.AdminCancelOffer(o.ID, "listing under review", baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OfferWithdrawn, got.Status)
	assert.Equal(t, "listing under review", got.SellerResponse)

	_, err = a.AdminCancelOffer(o.ID, "again", baseTime.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidOfferState)
}

// Offer created with a 48h window and never answered: the sweep expires
// it, and any later response fails.
func TestSweepExpiredOffers(t *testing.T) {
	a := newOfferAuction(t)
	buyer := uuid.New()
	o, err := a.MakeOffer(buyer, dec(3000), "", baseTime)
	require.NoError(t, err)

	// 47h in: nothing to do.
	assert.Empty(t, a.SweepExpiredOffers(baseTime.Add(47*time.Hour)))
	assert.Equal(t, OfferPending, o.Status)

	// 49h in: expired with the audit note.
	expired := a.SweepExpiredOffers(baseTime.Add(49 * time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, o.ID, expired[0])
	assert.Equal(t, OfferExpired, o.Status)
	assert.Equal(t, "Offer expired", o.SellerResponse)

	// Idempotent.
	assert.Empty(t, a.SweepExpiredOffers(baseTime.Add(50*time.Hour)))

	// No further responses on an expired offer.
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionAccept, nil, "", baseTime.Add(50*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidOfferState)
	_, err = a.WithdrawOffer(o.ID, buyer, baseTime.Add(50*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidOfferState)
}

func TestSweepExpiresStaleCounter(t *testing.T) {
	a := newOfferAuction(t)
	o, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)
	counteredAt := baseTime.Add(time.Hour)
	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionCounter, decPtr(3500), "", counteredAt)
	require.NoError(t, err)

	expired := a.SweepExpiredOffers(counteredAt.Add(NegotiationWindow + time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, OfferExpired, o.Status)
}

func TestRespondToExpiredPendingOffer(t *testing.T) {
	a := newOfferAuction(t)
	o, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)

	_, err = a.RespondToOffer(a.SellerID, false, o.ID, DecisionAccept, nil, "", baseTime.Add(NegotiationWindow))
	assert.ErrorIs(t, err, ErrOfferExpired)
}

func TestVisibleOffers(t *testing.T) {
	a := newOfferAuction(t)
	first := uuid.New()
	second := uuid.New()

	o1, err := a.MakeOffer(first, dec(2000), "", baseTime)
	require.NoError(t, err)
	o2, err := a.MakeOffer(second, dec(2200), "", baseTime.Add(time.Minute))
	require.NoError(t, err)

	// Seller and admin see everything, oldest first.
	seller := a.VisibleOffers(a.SellerID, false)
	require.Len(t, seller, 2)
	assert.Equal(t, o1.ID, seller[0].ID)
	assert.Equal(t, o2.ID, seller[1].ID)
	assert.Len(t, a.VisibleOffers(uuid.New(), true), 2)

	// A buyer sees only their own.
	mine := a.VisibleOffers(second, false)
	require.Len(t, mine, 1)
	assert.Equal(t, o2.ID, mine[0].ID)

	assert.Empty(t, a.VisibleOffers(uuid.New(), false))
}

func TestEarliestOpenOfferExpiry(t *testing.T) {
	a := newOfferAuction(t)
	assert.Nil(t, a.EarliestOpenOfferExpiry())

	first, err := a.MakeOffer(uuid.New(), dec(3000), "", baseTime)
	require.NoError(t, err)
	_, err = a.MakeOffer(uuid.New(), dec(3100), "", baseTime.Add(time.Hour))
	require.NoError(t, err)

	got := a.EarliestOpenOfferExpiry()
	require.NotNil(t, got)
	assert.Equal(t, first.ExpiresAt, *got)

	_, err = a.RespondToOffer(a.SellerID, false, first.ID, DecisionReject, nil, "", baseTime.Add(time.Hour))
	require.NoError(t, err)
	got = a.EarliestOpenOfferExpiry()
	require.NotNil(t, got)
	assert.Equal(t, baseTime.Add(time.Hour).Add(NegotiationWindow), *got)
}

// internal/auction/ledger_test.go
package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// newActiveAuction builds a standard active auction with startPrice 1000
// and increment 50, running for 7 days from baseTime.
func newActiveAuction(t *testing.T) *Auction {
	t.Helper()
	a, err := New(CreateParams{
		SellerID:     uuid.New(),
		Type:         TypeStandard,
		StartPrice:   dec(1000),
		BidIncrement: dec(50),
		StartDate:    baseTime,
		EndDate:      baseTime.Add(7 * 24 * time.Hour),
		AllowOffers:  true,
	}, baseTime)
	require.NoError(t, err)
	a.Status = StatusActive
	return a
}

func TestPlaceBidFirstBidMinimum(t *testing.T) {
	a := newActiveAuction(t)
	bidder := uuid.New()

	// First bid must clear startPrice + increment.
	_, err := a.PlaceBid(bidder, dec(1000), baseTime.Add(time.Minute))
	require.ErrorIs(t, err, ErrInvalidBidAmount)

	bid, err := a.PlaceBid(bidder, dec(1050), baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(dec(1050)))
	assert.True(t, a.CurrentPrice.Equal(dec(1050)))
	require.NotNil(t, a.CurrentBidder)
	assert.Equal(t, bidder, *a.CurrentBidder)
	assert.Equal(t, 1, a.BidCount)
	require.NotNil(t, a.LastBidTime)
}

func TestPlaceBidBelowIncrementRejected(t *testing.T) {
	a := newActiveAuction(t)

	_, err := a.PlaceBid(uuid.New(), dec(1050), baseTime.Add(time.Minute))
	require.NoError(t, err)

	// Scenario: 1050 then 1030. The late lowball is rejected and the
	// price stays where it was.
	_, err = a.PlaceBid(uuid.New(), dec(1030), baseTime.Add(2*time.Minute))
	require.ErrorIs(t, err, ErrInvalidBidAmount)
	assert.True(t, a.CurrentPrice.Equal(dec(1050)))
	assert.Equal(t, 1, a.BidCount)
}

func TestPlaceBidPreconditions(t *testing.T) {
	a := newActiveAuction(t)

	_, err := a.PlaceBid(a.SellerID, dec(1050), baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, ErrSelfOffer)

	_, err = a.PlaceBid(uuid.New(), dec(1050), a.EndDate)
	assert.ErrorIs(t, err, ErrAuctionEnded)

	_, err = a.PlaceBid(uuid.New(), dec(-50), baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	a.Status = StatusDraft
	_, err = a.PlaceBid(uuid.New(), dec(1050), baseTime.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAuctionNotActive)
}

func TestPlaceBidAtBuyNowPriceRedirects(t *testing.T) {
	a := newActiveAuction(t)
	a.BuyNowPrice = decPtr(4000)

	_, err := a.PlaceBid(uuid.New(), dec(4000), baseTime.Add(time.Minute))
	require.ErrorIs(t, err, ErrUseBuyNow)
	assert.Equal(t, 0, a.BidCount)
}

func TestRemoveBidsForBidderRecomputes(t *testing.T) {
	a := newActiveAuction(t)
	alice, bob := uuid.New(), uuid.New()

	_, err := a.PlaceBid(alice, dec(1050), baseTime.Add(1*time.Minute))
	require.NoError(t, err)
	_, err = a.PlaceBid(bob, dec(1100), baseTime.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = a.PlaceBid(alice, dec(1200), baseTime.Add(3*time.Minute))
	require.NoError(t, err)

	removed, err := a.RemoveBidsForBidder(alice, baseTime.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, a.BidCount)
	assert.True(t, a.CurrentPrice.Equal(dec(1100)))
	require.NotNil(t, a.CurrentBidder)
	assert.Equal(t, bob, *a.CurrentBidder)
}

func TestRemoveBidsForBidderLastBidderResets(t *testing.T) {
	a := newActiveAuction(t)
	alice := uuid.New()

	_, err := a.PlaceBid(alice, dec(1050), baseTime.Add(time.Minute))
	require.NoError(t, err)

	removed, err := a.RemoveBidsForBidder(alice, baseTime.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, a.BidCount)
	assert.True(t, a.CurrentPrice.Equal(a.StartPrice))
	assert.Nil(t, a.CurrentBidder)
	assert.Nil(t, a.LastBidTime)
}

func TestRemoveBidsForBidderOnlyWhileActive(t *testing.T) {
	a := newActiveAuction(t)
	alice := uuid.New()
	_, err := a.PlaceBid(alice, dec(1050), baseTime.Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, a.Close(a.EndDate))
	_, err = a.RemoveBidsForBidder(alice, a.EndDate.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAuctionNotActive)
}

// Price monotonicity: over any sequence of attempted bids, every
// accepted bid raises the current price by at least the increment, and
// the price never decreases.
func TestPriceMonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := newActiveAuction(t)
		bidders := make([]uuid.UUID, 4)
		for i := range bidders {
			bidders[i] = uuid.New()
		}

		prev := a.CurrentPrice
		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			bidder := bidders[rapid.IntRange(0, len(bidders)-1).Draw(rt, "bidder")]
			amount := dec(int64(rapid.IntRange(900, 3000).Draw(rt, "amount")))
			when := baseTime.Add(time.Duration(i+1) * time.Second)

			_, err := a.PlaceBid(bidder, amount, when)
			if err == nil {
				if amount.LessThan(prev.Add(a.BidIncrement)) {
					rt.Fatalf("accepted bid %s below %s + increment", amount, prev)
				}
				prev = a.CurrentPrice
			} else {
				if !a.CurrentPrice.Equal(prev) {
					rt.Fatalf("rejected bid moved price from %s to %s", prev, a.CurrentPrice)
				}
			}
			if a.CurrentPrice.LessThan(a.StartPrice) {
				rt.Fatalf("current price %s fell below start price", a.CurrentPrice)
			}
		}
	})
}

// internal/auction/errors.go
package auction

import "errors"

var (
	ErrAuctionNotFound       = errors.New("auction not found")
	ErrOfferNotFound         = errors.New("offer not found")
	ErrAuctionNotActive      = errors.New("auction is not active")
	ErrAuctionEnded          = errors.New("auction has ended")
	ErrAuctionAlreadySold    = errors.New("auction is already sold")
	ErrAuctionHasBids        = errors.New("active auction with bids cannot be deleted")
	ErrInvalidStatus         = errors.New("operation not allowed in current status")
	ErrInvalidOfferState     = errors.New("offer is not in a state that allows this operation")
	ErrInvalidAuctionType    = errors.New("invalid auction type")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidBidAmount      = errors.New("bid amount below required minimum")
	ErrInvalidIncrement      = errors.New("bid increment must be positive")
	ErrInvalidReservePrice   = errors.New("reserve price must be at least the start price")
	ErrInvalidBuyNowPrice    = errors.New("buy-now price must be at least the start price")
	ErrInvalidDates          = errors.New("end date must be after start date")
	ErrInvalidCounterAmount  = errors.New("counter amount must exceed the offer amount")
	ErrInvalidResponseType   = errors.New("invalid offer response type")
	ErrOffersNotAllowed      = errors.New("auction does not accept offers")
	ErrDuplicatePendingOffer = errors.New("buyer already has a pending offer")
	ErrSelfOffer             = errors.New("seller cannot bid or offer on own auction")
	ErrUseBuyNow             = errors.New("amount meets buy-now price; use the buy-now operation")
	ErrNoBuyNow              = errors.New("auction has no buy-now price")
	ErrUnauthorized          = errors.New("caller is not allowed to perform this operation")
	ErrAccountInactive       = errors.New("caller account is not active")
	ErrOfferExpired          = errors.New("offer deadline has passed")
	ErrCounterExpired        = errors.New("counter-offer deadline has passed")
	ErrNotSold               = errors.New("auction has no sale to pay for")
	ErrInvalidPaymentStatus  = errors.New("illegal payment status transition")
	ErrRateLimited           = errors.New("rate limit exceeded")
)

// Kind buckets failures for callers that render responses; it mirrors the
// error taxonomy the API layer exposes.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindInvalidInput
	KindUnauthorized
	KindConflict
	KindExpired
	KindRateLimited
)

// Classify maps an error to its taxonomy kind. Unknown errors are
// internal; store conflicts are classified by the caller before reaching
// here via KindConflict.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrAuctionNotFound), errors.Is(err, ErrOfferNotFound):
		return KindNotFound
	case errors.Is(err, ErrAuctionNotActive), errors.Is(err, ErrAuctionEnded),
		errors.Is(err, ErrAuctionAlreadySold), errors.Is(err, ErrAuctionHasBids),
		errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidOfferState),
		errors.Is(err, ErrOffersNotAllowed), errors.Is(err, ErrDuplicatePendingOffer),
		errors.Is(err, ErrUseBuyNow), errors.Is(err, ErrNoBuyNow),
		errors.Is(err, ErrNotSold), errors.Is(err, ErrInvalidPaymentStatus):
		return KindInvalidState
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidBidAmount),
		errors.Is(err, ErrInvalidIncrement), errors.Is(err, ErrInvalidReservePrice),
		errors.Is(err, ErrInvalidBuyNowPrice), errors.Is(err, ErrInvalidDates),
		errors.Is(err, ErrInvalidCounterAmount), errors.Is(err, ErrInvalidResponseType),
		errors.Is(err, ErrInvalidAuctionType):
		return KindInvalidInput
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrSelfOffer),
		errors.Is(err, ErrAccountInactive):
		return KindUnauthorized
	case errors.Is(err, ErrOfferExpired), errors.Is(err, ErrCounterExpired):
		return KindExpired
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	}
	return KindInternal
}

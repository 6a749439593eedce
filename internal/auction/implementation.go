// internal/auction/implementation.go
package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"motorbid/internal/notify"
	"motorbid/internal/store"
)

// maxRetries bounds transparent retries on concurrency conflicts before
// the conflict is surfaced to the caller.
const maxRetries = 3

// sweepBatchSize caps how many auctions one sweep pass loads.
const sweepBatchSize = 100

// service implements the Service interface on top of an aggregate store.
type service struct {
	store        store.Store
	notifier     notify.Notifier
	outbid       *notify.Debouncer
	offerLimiter *rate.Limiter
	now          func() time.Time
}

// NewService creates the auction core. A nil clock defaults to time.Now;
// tests inject a fake one.
func NewService(st store.Store, notifier notify.Notifier, clock func() time.Time) Service {
	if clock == nil {
		clock = time.Now
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &service{
		store:        st,
		notifier:     notifier,
		outbid:       notify.NewDebouncer(5*time.Minute, clock),
		offerLimiter: rate.NewLimiter(rate.Every(time.Second), 10),
		now:          clock,
	}
}

func encode(a *Auction) (store.Record, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return store.Record{}, fmt.Errorf("marshal auction: %w", err)
	}
	return store.Record{
		ID:              a.ID,
		OwnerID:         a.SellerID,
		Status:          string(a.Status),
		StartDate:       a.StartDate,
		EndDate:         a.EndDate,
		NextOfferExpiry: a.EarliestOpenOfferExpiry(),
		Data:            data,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func decode(r store.Record) (*Auction, error) {
	var a Auction
	if err := json.Unmarshal(r.Data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal auction: %w", err)
	}
	return &a, nil
}

// mutate runs one serializable read-modify-write: load the fresh
// snapshot, apply fn, save with the loaded version token. On a version
// conflict the whole cycle reruns against reloaded state, so every
// precondition is revalidated; after maxRetries the conflict surfaces.
// Events returned by fn are published only after the save commits.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(a *Auction, now time.Time) ([]notify.Event, error)) (*Auction, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		rec, err := s.store.Load(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAuctionNotFound
		}
		if err != nil {
			return nil, err
		}
		a, err := decode(rec)
		if err != nil {
			return nil, err
		}

		now := s.now()
		events, err := fn(a, now)
		if err != nil {
			return nil, err
		}

		out, err := encode(a)
		if err != nil {
			return nil, err
		}
		if err := s.store.Save(ctx, out, rec.Version); err != nil {
			if errors.Is(err, store.ErrConcurrencyConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}

		for _, e := range events {
			s.notifier.Publish(ctx, e)
		}
		return a, nil
	}
	return nil, lastErr
}

func (s *service) CreateAuction(ctx context.Context, actor Actor, p CreateParams) (*Auction, error) {
	if !actor.IsActive {
		return nil, ErrAccountInactive
	}
	if !actor.IsAdmin() || p.SellerID == uuid.Nil {
		p.SellerID = actor.ID
	}
	a, err := New(p, s.now())
	if err != nil {
		return nil, err
	}
	rec, err := encode(a)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) GetAuction(ctx context.Context, actor Actor, id uuid.UUID) (*Auction, error) {
	rec, err := s.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}
	a, err := decode(rec)
	if err != nil {
		return nil, err
	}
	return a.Redacted(actor.ID, actor.IsAdmin()), nil
}

func (s *service) ApproveAuction(ctx context.Context, actor Actor, id uuid.UUID) (*Auction, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.mutate(ctx, id, func(a *Auction, now time.Time) ([]notify.Event, error) {
		if err := a.Approve(actor.ID, now); err != nil {
			return nil, err
		}
		if a.Status == StatusActive {
			return []notify.Event{{Type: notify.EventAuctionActive, AuctionID: a.ID, At: now}}, nil
		}
		return nil, nil
	})
}

func (s *service) EndAuction(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Auction, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.mutate(ctx, id, func(a *Auction, now time.Time) ([]notify.Event, error) {
		if err := a.EndNow(actor.ID, reason, now); err != nil {
			return nil, err
		}
		return closeEvents(a, now), nil
	})
}

func (s *service) CancelAuction(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Auction, error) {
	return s.mutate(ctx, id, func(a *Auction, now time.Time) ([]notify.Event, error) {
		if err := a.Cancel(actor.ID, actor.IsAdmin(), reason, now); err != nil {
			return nil, err
		}
		return []notify.Event{{Type: notify.EventAuctionCancelled, AuctionID: a.ID, At: now}}, nil
	})
}

func (s *service) RelistAuction(ctx context.Context, actor Actor, id uuid.UUID, startDate, endDate time.Time) (*Auction, error) {
	return s.mutate(ctx, id, func(a *Auction, now time.Time) ([]notify.Event, error) {
		return nil, a.Relist(actor.ID, actor.IsAdmin(), startDate, endDate, now)
	})
}

func (s *service) DeleteAuction(ctx context.Context, actor Actor, id uuid.UUID) error {
	rec, err := s.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAuctionNotFound
	}
	if err != nil {
		return err
	}
	a, err := decode(rec)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && actor.ID != a.SellerID {
		return ErrUnauthorized
	}
	if err := a.CanDelete(); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *service) PlaceBid(ctx context.Context, actor Actor, auctionID uuid.UUID, amount decimal.Decimal) (*Auction, error) {
	if !actor.IsActive {
		return nil, ErrAccountInactive
	}
	return s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		var prevLeader *uuid.UUID
		if a.CurrentBidder != nil {
			id := *a.CurrentBidder
			prevLeader = &id
		}
		bid, err := a.PlaceBid(actor.ID, amount, now)
		if err != nil {
			return nil, err
		}
		events := []notify.Event{{
			Type:      notify.EventNewBid,
			AuctionID: a.ID,
			UserID:    &bid.BidderID,
			Amount:    &bid.Amount,
			At:        now,
		}}
		if prevLeader != nil && *prevLeader != actor.ID && s.outbid.Allow(a.ID, *prevLeader) {
			events = append(events, notify.Event{
				Type:      notify.EventOutbid,
				AuctionID: a.ID,
				UserID:    prevLeader,
				Amount:    &bid.Amount,
				At:        now,
			})
		}
		return events, nil
	})
}

func (s *service) BuyNow(ctx context.Context, actor Actor, auctionID uuid.UUID) (*Auction, error) {
	if !actor.IsActive {
		return nil, ErrAccountInactive
	}
	return s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		if err := a.BuyNow(actor.ID, now); err != nil {
			return nil, err
		}
		return []notify.Event{{
			Type:      notify.EventAuctionSold,
			AuctionID: a.ID,
			UserID:    a.WinnerID,
			Amount:    a.FinalPrice,
			At:        now,
		}}, nil
	})
}

func (s *service) RemoveBidsForBidder(ctx context.Context, actor Actor, auctionID, bidderID uuid.UUID) (*Auction, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		_, err := a.RemoveBidsForBidder(bidderID, now)
		return nil, err
	})
}

func (s *service) ListOffers(ctx context.Context, actor Actor, auctionID uuid.UUID) ([]*Offer, error) {
	rec, err := s.store.Load(ctx, auctionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAuctionNotFound
	}
	if err != nil {
		return nil, err
	}
	a, err := decode(rec)
	if err != nil {
		return nil, err
	}
	return a.VisibleOffers(actor.ID, actor.IsAdmin()), nil
}

func (s *service) MakeOffer(ctx context.Context, actor Actor, auctionID uuid.UUID, amount decimal.Decimal, message string) (*Offer, error) {
	if !actor.IsActive {
		return nil, ErrAccountInactive
	}
	if !s.offerLimiter.Allow() {
		return nil, ErrRateLimited
	}
	var offer *Offer
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		o, err := a.MakeOffer(actor.ID, amount, message, now)
		if err != nil {
			return nil, err
		}
		offer = o
		return []notify.Event{{
			Type:      notify.EventNewOffer,
			AuctionID: a.ID,
			UserID:    &o.BuyerID,
			Amount:    &o.Amount,
			At:        now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) RespondToOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID, decision OfferDecision, counterAmount *decimal.Decimal, message string) (*Offer, error) {
	var offer *Offer
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		o, err := a.RespondToOffer(actor.ID, actor.IsAdmin(), offerID, decision, counterAmount, message, now)
		if err != nil {
			return nil, err
		}
		offer = o
		return offerResponseEvents(a, o, now), nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) RespondToCounterOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID, accepts bool) (*Offer, error) {
	var offer *Offer
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		o, err := a.RespondToCounterOffer(actor.ID, offerID, accepts, now)
		if err != nil {
			return nil, err
		}
		offer = o
		if o.Status == OfferAccepted {
			return offerResponseEvents(a, o, now), nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) WithdrawOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
	var offer *Offer
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		o, err := a.WithdrawOffer(offerID, actor.ID, now)
		if err != nil {
			return nil, err
		}
		offer = o
		return []notify.Event{{Type: notify.EventOfferWithdrawn, AuctionID: a.ID, UserID: &o.BuyerID, At: now}}, nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) ReactivateAndAcceptOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
	var offer *Offer
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		o, err := a.ReactivateAndAcceptOffer(offerID, actor.ID, actor.IsAdmin(), now)
		if err != nil {
			return nil, err
		}
		offer = o
		return offerResponseEvents(a, o, now), nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) AdminCancelOffer(ctx context.Context, actor Actor, auctionID, offerID uuid.UUID, reason string) (*Offer, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	var offer *Offer
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		o, err := a.AdminCancelOffer(offerID, reason, now)
		if err != nil {
			return nil, err
		}
		offer = o
		return []notify.Event{{Type: notify.EventOfferWithdrawn, AuctionID: a.ID, UserID: &o.BuyerID, At: now}}, nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *service) RecordPayment(ctx context.Context, actor Actor, auctionID uuid.UUID, method, transactionID string) (*Auction, error) {
	return s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		if !actor.IsAdmin() && (a.WinnerID == nil || actor.ID != *a.WinnerID) {
			return nil, ErrUnauthorized
		}
		return nil, a.RecordPayment(method, transactionID, now)
	})
}

func (s *service) UpdatePaymentStatus(ctx context.Context, actor Actor, auctionID uuid.UUID, status PaymentStatus) (*Auction, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		return nil, a.UpdatePaymentStatus(status, now)
	})
}

func (s *service) OnActivationDue(ctx context.Context, auctionID uuid.UUID) error {
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		before := a.Status
		if err := a.Activate(now); err != nil {
			return nil, err
		}
		if before == StatusApproved && a.Status == StatusActive {
			return []notify.Event{{Type: notify.EventAuctionActive, AuctionID: a.ID, At: now}}, nil
		}
		return nil, nil
	})
	return err
}

func (s *service) OnCloseDue(ctx context.Context, auctionID uuid.UUID) error {
	_, err := s.mutate(ctx, auctionID, func(a *Auction, now time.Time) ([]notify.Event, error) {
		before := a.Status
		if err := a.Close(now); err != nil {
			return nil, err
		}
		if before == a.Status {
			return nil, nil
		}
		return closeEvents(a, now), nil
	})
	return err
}

func (s *service) SweepExpiredOffers(ctx context.Context) (int, error) {
	total := 0
	for {
		ids, err := s.store.DueOfferExpiry(ctx, s.now(), sweepBatchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		progressed := false
		for _, id := range ids {
			count := 0
			_, err := s.mutate(ctx, id, func(a *Auction, now time.Time) ([]notify.Event, error) {
				expired := a.SweepExpiredOffers(now)
				count = len(expired)
				events := make([]notify.Event, 0, len(expired))
				for _, offerID := range expired {
					o := a.Offers[offerID]
					events = append(events, notify.Event{
						Type:      notify.EventOfferExpired,
						AuctionID: a.ID,
						UserID:    &o.BuyerID,
						At:        now,
					})
				}
				return events, nil
			})
			if err != nil {
				log.Printf("[sweep] auction %s: %v", id, err)
				continue
			}
			progressed = true
			total += count
		}
		if len(ids) < sweepBatchSize || !progressed {
			return total, nil
		}
	}
}

// closeEvents derives the facts for a close/end transition.
func closeEvents(a *Auction, now time.Time) []notify.Event {
	switch a.Status {
	case StatusSold, StatusSoldBuyNow:
		return []notify.Event{{
			Type:      notify.EventAuctionSold,
			AuctionID: a.ID,
			UserID:    a.WinnerID,
			Amount:    a.FinalPrice,
			At:        now,
		}}
	case StatusEnded, StatusReserveNotMet:
		return []notify.Event{{Type: notify.EventAuctionEnded, AuctionID: a.ID, At: now}}
	}
	return nil
}

// offerResponseEvents derives the facts for a seller/admin offer
// response, including the sale fact when acceptance sold the auction.
func offerResponseEvents(a *Auction, o *Offer, now time.Time) []notify.Event {
	switch o.Status {
	case OfferAccepted:
		return []notify.Event{
			{Type: notify.EventOfferAccepted, AuctionID: a.ID, UserID: &o.BuyerID, Amount: a.FinalPrice, At: now},
			{Type: notify.EventAuctionSold, AuctionID: a.ID, UserID: a.WinnerID, Amount: a.FinalPrice, At: now},
		}
	case OfferRejected:
		return []notify.Event{{Type: notify.EventOfferRejected, AuctionID: a.ID, UserID: &o.BuyerID, At: now}}
	case OfferCountered:
		return []notify.Event{{Type: notify.EventOfferCountered, AuctionID: a.ID, UserID: &o.BuyerID, Amount: &o.CounterOffer.Amount, At: now}}
	}
	return nil
}

// internal/auction/handler.go
package auction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"motorbid/internal/store"
)

// Handler exposes the auction core over HTTP. Authentication happens
// upstream; the gateway forwards the resolved caller identity in
// X-Actor-* headers and this layer only consumes it.
type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts all auction endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/auctions", h.handleCreate)
	r.Get("/auctions/{auctionID}", h.handleGet)
	r.Delete("/auctions/{auctionID}", h.handleDelete)
	r.Post("/auctions/{auctionID}/approve", h.handleApprove)
	r.Post("/auctions/{auctionID}/end", h.handleEnd)
	r.Post("/auctions/{auctionID}/cancel", h.handleCancel)
	r.Post("/auctions/{auctionID}/relist", h.handleRelist)

	r.Post("/auctions/{auctionID}/bids", h.handleBid)
	r.Delete("/auctions/{auctionID}/bids/{bidderID}", h.handlePurgeBids)
	r.Post("/auctions/{auctionID}/buy-now", h.handleBuyNow)

	r.Get("/auctions/{auctionID}/offers", h.handleListOffers)
	r.Post("/auctions/{auctionID}/offers", h.handleMakeOffer)
	r.Post("/auctions/{auctionID}/offers/{offerID}/respond", h.handleRespondOffer)
	r.Post("/auctions/{auctionID}/offers/{offerID}/counter-response", h.handleCounterResponse)
	r.Post("/auctions/{auctionID}/offers/{offerID}/withdraw", h.handleWithdrawOffer)
	r.Post("/auctions/{auctionID}/offers/{offerID}/reactivate", h.handleReactivateOffer)
	r.Post("/auctions/{auctionID}/offers/{offerID}/cancel", h.handleAdminCancelOffer)

	r.Post("/auctions/{auctionID}/payment", h.handleRecordPayment)
	r.Patch("/auctions/{auctionID}/payment", h.handleUpdatePayment)

	r.Post("/internal/triggers/activation/{auctionID}", h.handleActivationDue)
	r.Post("/internal/triggers/close/{auctionID}", h.handleCloseDue)
	r.Post("/internal/sweep-offers", h.handleSweep)
}

func actorFrom(r *http.Request) (Actor, error) {
	id, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
	if err != nil {
		return Actor{}, errors.New("missing or invalid X-Actor-ID header")
	}
	return Actor{
		ID:       id,
		Role:     r.Header.Get("X-Actor-Role"),
		IsActive: r.Header.Get("X-Actor-Active") != "false",
	}, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrConcurrencyConflict) {
		status = http.StatusConflict
	} else {
		switch Classify(err) {
		case KindNotFound:
			status = http.StatusNotFound
		case KindInvalidState:
			status = http.StatusConflict
		case KindInvalidInput:
			status = http.StatusBadRequest
		case KindUnauthorized:
			status = http.StatusForbidden
		case KindExpired:
			status = http.StatusGone
		case KindRateLimited:
			status = http.StatusTooManyRequests
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	var p CreateParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a, err := h.service.CreateAuction(r.Context(), actor, p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	id, err := pathUUID(r, "auctionID")
	if err != nil {
		http.Error(w, "invalid auction ID", http.StatusBadRequest)
		return
	}
	a, err := h.service.GetAuction(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	id, err := pathUUID(r, "auctionID")
	if err != nil {
		http.Error(w, "invalid auction ID", http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteAuction(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.ApproveAuction(r.Context(), actor, id)
	})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.EndAuction(r.Context(), actor, id, req.Reason)
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.CancelAuction(r.Context(), actor, id, req.Reason)
	})
}

func (h *Handler) handleRelist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate time.Time `json:"start_date"`
		EndDate   time.Time `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.RelistAuction(r.Context(), actor, id, req.StartDate, req.EndDate)
	})
}

func (h *Handler) handleBid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.PlaceBid(r.Context(), actor, id, req.Amount)
	})
}

func (h *Handler) handleBuyNow(w http.ResponseWriter, r *http.Request) {
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.BuyNow(r.Context(), actor, id)
	})
}

func (h *Handler) handlePurgeBids(w http.ResponseWriter, r *http.Request) {
	bidderID, err := pathUUID(r, "bidderID")
	if err != nil {
		http.Error(w, "invalid bidder ID", http.StatusBadRequest)
		return
	}
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.RemoveBidsForBidder(r.Context(), actor, id, bidderID)
	})
}

func (h *Handler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	id, err := pathUUID(r, "auctionID")
	if err != nil {
		http.Error(w, "invalid auction ID", http.StatusBadRequest)
		return
	}
	offers, err := h.service.ListOffers(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (h *Handler) handleMakeOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount  decimal.Decimal `json:"amount"`
		Message string          `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.offerAction(w, r, http.StatusCreated, func(actor Actor, auctionID, _ uuid.UUID) (*Offer, error) {
		return h.service.MakeOffer(r.Context(), actor, auctionID, req.Amount, req.Message)
	})
}

func (h *Handler) handleRespondOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision      OfferDecision    `json:"decision"`
		CounterAmount *decimal.Decimal `json:"counter_amount"`
		Message       string           `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.offerAction(w, r, http.StatusOK, func(actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
		return h.service.RespondToOffer(r.Context(), actor, auctionID, offerID, req.Decision, req.CounterAmount, req.Message)
	})
}

func (h *Handler) handleCounterResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.offerAction(w, r, http.StatusOK, func(actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
		return h.service.RespondToCounterOffer(r.Context(), actor, auctionID, offerID, req.Accept)
	})
}

func (h *Handler) handleWithdrawOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, http.StatusOK, func(actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
		return h.service.WithdrawOffer(r.Context(), actor, auctionID, offerID)
	})
}

func (h *Handler) handleReactivateOffer(w http.ResponseWriter, r *http.Request) {
	h.offerAction(w, r, http.StatusOK, func(actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
		return h.service.ReactivateAndAcceptOffer(r.Context(), actor, auctionID, offerID)
	})
}

func (h *Handler) handleAdminCancelOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	h.offerAction(w, r, http.StatusOK, func(actor Actor, auctionID, offerID uuid.UUID) (*Offer, error) {
		return h.service.AdminCancelOffer(r.Context(), actor, auctionID, offerID, req.Reason)
	})
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method        string `json:"method"`
		TransactionID string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.RecordPayment(r.Context(), actor, id, req.Method, req.TransactionID)
	})
}

func (h *Handler) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status PaymentStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.auctionAction(w, r, func(actor Actor, id uuid.UUID) (*Auction, error) {
		return h.service.UpdatePaymentStatus(r.Context(), actor, id, req.Status)
	})
}

func (h *Handler) handleActivationDue(w http.ResponseWriter, r *http.Request) {
	h.triggerAction(w, r, h.service.OnActivationDue)
}

func (h *Handler) handleCloseDue(w http.ResponseWriter, r *http.Request) {
	h.triggerAction(w, r, h.service.OnCloseDue)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.SweepExpiredOffers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

func (h *Handler) auctionAction(w http.ResponseWriter, r *http.Request, fn func(Actor, uuid.UUID) (*Auction, error)) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	id, err := pathUUID(r, "auctionID")
	if err != nil {
		http.Error(w, "invalid auction ID", http.StatusBadRequest)
		return
	}
	a, err := fn(actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Redacted(actor.ID, actor.IsAdmin()))
}

func (h *Handler) offerAction(w http.ResponseWriter, r *http.Request, status int, fn func(Actor, uuid.UUID, uuid.UUID) (*Offer, error)) {
	actor, err := actorFrom(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	auctionID, err := pathUUID(r, "auctionID")
	if err != nil {
		http.Error(w, "invalid auction ID", http.StatusBadRequest)
		return
	}
	var offerID uuid.UUID
	if raw := chi.URLParam(r, "offerID"); raw != "" {
		offerID, err = uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid offer ID", http.StatusBadRequest)
			return
		}
	}
	o, err := fn(actor, auctionID, offerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, o)
}

func (h *Handler) triggerAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) error) {
	id, err := pathUUID(r, "auctionID")
	if err != nil {
		http.Error(w, "invalid auction ID", http.StatusBadRequest)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

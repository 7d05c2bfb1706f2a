package dto

import (
	"time"

	"nft-marketplace/internal/core/domain"
)

// RegisterRequest is the request body for account registration.
// Address binds an existing wallet identity; empty generates one.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Address  string `json:"address,omitempty" binding:"omitempty,address"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	AccountID string `json:"account_id"`
	Address   string `json:"address"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// Amounts are pointers so that an explicit 0 reaches the ledger, which owns
// the zero and negative checks.

// ListItemRequest is the request body for listing an item.
type ListItemRequest struct {
	Collection string `json:"collection" binding:"required,address"`
	ItemID     *int64 `json:"item_id" binding:"required,min=0"`
	Price      *int64 `json:"price" binding:"required"`
}

// UpdateListingRequest is the request body for repricing a listing.
type UpdateListingRequest struct {
	Price *int64 `json:"price" binding:"required"`
}

// BuyItemRequest is the request body for buying an item.
type BuyItemRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

// ListingResponse describes a listing. Absent listings have price 0 and
// an empty seller.
type ListingResponse struct {
	Collection string `json:"collection"`
	ItemID     int64  `json:"item_id"`
	Price      int64  `json:"price"`
	Seller     string `json:"seller"`
	Active     bool   `json:"active"`
}

func NewListingResponse(l *domain.Listing) ListingResponse {
	return ListingResponse{
		Collection: l.Collection.String(),
		ItemID:     l.ItemID,
		Price:      l.Price,
		Seller:     l.Seller.String(),
		Active:     l.IsActive(),
	}
}

// PurchaseResponse is the response body for a successful buy.
type PurchaseResponse struct {
	Collection string `json:"collection"`
	ItemID     int64  `json:"item_id"`
	Seller     string `json:"seller"`
	Buyer      string `json:"buyer"`
	Price      int64  `json:"price"`
	Paid       int64  `json:"paid"`
}

func NewPurchaseResponse(p *domain.Purchase) PurchaseResponse {
	return PurchaseResponse{
		Collection: p.Collection.String(),
		ItemID:     p.ItemID,
		Seller:     p.Seller.String(),
		Buyer:      p.Buyer.String(),
		Price:      p.Price,
		Paid:       p.Paid,
	}
}

// ProceedsResponse reports a seller's balance, or the amount just withdrawn.
type ProceedsResponse struct {
	Seller string `json:"seller"`
	Amount int64  `json:"amount"`
}

// EventResponse is one ledger notification.
type EventResponse struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	Type       string `json:"type"`
	Actor      string `json:"actor"`
	Collection string `json:"collection"`
	ItemID     int64  `json:"item_id"`
	Price      int64  `json:"price"`
	CreatedAt  string `json:"created_at"`
}

// EventPageResponse is a page of events. Next is the cursor for the
// following page (pass as ?after=).
type EventPageResponse struct {
	Items []EventResponse `json:"items"`
	Next  int64           `json:"next"`
}

func NewEventPageResponse(events []domain.Event, after int64) EventPageResponse {
	page := EventPageResponse{Items: make([]EventResponse, 0, len(events)), Next: after}
	for _, e := range events {
		page.Items = append(page.Items, EventResponse{
			Seq:        e.Seq,
			ID:         e.ID.String(),
			Type:       string(e.Type),
			Actor:      e.Actor.String(),
			Collection: e.Collection.String(),
			ItemID:     e.ItemID,
			Price:      e.Price,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
		})
		page.Next = e.Seq
	}
	return page
}

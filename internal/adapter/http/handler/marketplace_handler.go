package handler

import (
	"fmt"
	"strconv"

	"nft-marketplace/internal/adapter/http/dto"
	"nft-marketplace/internal/adapter/http/middleware"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/pkg/apperror"
	"nft-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// MarketplaceHandler exposes the ledger operations.
type MarketplaceHandler struct {
	svc ports.MarketplaceService
}

// NewMarketplaceHandler creates a new MarketplaceHandler.
func NewMarketplaceHandler(svc ports.MarketplaceService) *MarketplaceHandler {
	return &MarketplaceHandler{svc: svc}
}

// ListItem handles POST /api/v1/listings.
func (h *MarketplaceHandler) ListItem(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ListItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}
	collection, err := domain.ParseAddress(req.Collection)
	if err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	listing, err := h.svc.ListItem(c.Request.Context(), ports.ListItemRequest{
		Key:    domain.ItemKey{Collection: collection, ItemID: *req.ItemID},
		Seller: caller,
		Price:  *req.Price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewListingResponse(listing))
}

// UpdateListing handles PUT /api/v1/listings/:collection/:item.
func (h *MarketplaceHandler) UpdateListing(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	key, err := itemKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	listing, err := h.svc.UpdateListing(c.Request.Context(), ports.UpdateListingRequest{
		Key:      key,
		Caller:   caller,
		NewPrice: *req.Price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewListingResponse(listing))
}

// CancelListing handles DELETE /api/v1/listings/:collection/:item.
func (h *MarketplaceHandler) CancelListing(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	key, err := itemKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.svc.CancelListing(c.Request.Context(), key, caller); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewListingResponse(domain.EmptyListing(key)))
}

// BuyItem handles POST /api/v1/listings/:collection/:item/buy.
func (h *MarketplaceHandler) BuyItem(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	key, err := itemKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.BuyItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	purchase, err := h.svc.BuyItem(c.Request.Context(), ports.BuyItemRequest{
		Key:   key,
		Buyer: caller,
		Paid:  *req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewPurchaseResponse(purchase))
}

// WithdrawProceeds handles POST /api/v1/proceeds/withdraw.
func (h *MarketplaceHandler) WithdrawProceeds(c *gin.Context) {
	caller, ok := middleware.CallerAddress(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	amount, err := h.svc.WithdrawProceeds(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ProceedsResponse{Seller: caller.String(), Amount: amount})
}

// GetListing handles GET /api/v1/listings/:collection/:item.
func (h *MarketplaceHandler) GetListing(c *gin.Context) {
	key, err := itemKeyParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	listing, err := h.svc.GetListing(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewListingResponse(listing))
}

// GetProceeds handles GET /api/v1/proceeds/:seller.
func (h *MarketplaceHandler) GetProceeds(c *gin.Context) {
	seller, err := domain.ParseAddress(c.Param("seller"))
	if err != nil {
		response.Error(c, middleware.BindError(err))
		return
	}

	amount, err := h.svc.GetProceeds(c.Request.Context(), seller)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ProceedsResponse{Seller: seller.String(), Amount: amount})
}

// ListEvents handles GET /api/v1/events?after=&limit=.
func (h *MarketplaceHandler) ListEvents(c *gin.Context) {
	after, err := queryInt(c, "after")
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, err)
		return
	}

	events, err := h.svc.ListEvents(c.Request.Context(), after, int(limit))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewEventPageResponse(events, after))
}

func itemKeyParam(c *gin.Context) (domain.ItemKey, error) {
	collection, err := domain.ParseAddress(c.Param("collection"))
	if err != nil {
		return domain.ItemKey{}, apperror.Validation(err.Error())
	}
	itemID, err := strconv.ParseInt(c.Param("item"), 10, 64)
	if err != nil || itemID < 0 {
		return domain.ItemKey{}, apperror.Validation(fmt.Sprintf("invalid item id %q", c.Param("item")))
	}
	return domain.ItemKey{Collection: collection, ItemID: itemID}, nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.Validation(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return n, nil
}

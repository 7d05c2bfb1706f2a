package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/metrics"
	"nft-marketplace/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Operation names used in logs and metrics.
const (
	opListItem         = "list_item"
	opBuyItem          = "buy_item"
	opCancelListing    = "cancel_listing"
	opUpdateListing    = "update_listing"
	opWithdrawProceeds = "withdraw_proceeds"
)

const (
	DefaultEventPageSize = 100
	MaxEventPageSize     = 500
)

// MarketplaceOptions identifies the ledger and tunes its guard.
type MarketplaceOptions struct {
	// Address must be the registry's approved operator for an item to be listed.
	Address domain.Address
	// LockWait bounds how long an independent caller queues for the guard.
	LockWait time.Duration
}

// MarketplaceServiceImpl implements ports.MarketplaceService.
//
// Every mutating operation holds the ledger guard and runs in one storage
// transaction. Internal writes precede the single external call, so a
// failing registry or payment sink rolls everything back.
type MarketplaceServiceImpl struct {
	listingRepo  ports.ListingRepository
	proceedsRepo ports.ProceedsRepository
	eventRepo    ports.EventRepository
	transactor   ports.DBTransactor
	registry     ports.ItemRegistry
	sink         ports.PaymentSink
	publisher    ports.EventPublisher
	address      domain.Address
	guard        *ledgerGuard
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewMarketplaceService creates a new MarketplaceServiceImpl. publisher may be nil.
func NewMarketplaceService(
	listingRepo ports.ListingRepository,
	proceedsRepo ports.ProceedsRepository,
	eventRepo ports.EventRepository,
	transactor ports.DBTransactor,
	registry ports.ItemRegistry,
	sink ports.PaymentSink,
	publisher ports.EventPublisher,
	opts MarketplaceOptions,
	m *metrics.Metrics,
	log zerolog.Logger,
) *MarketplaceServiceImpl {
	return &MarketplaceServiceImpl{
		listingRepo:  listingRepo,
		proceedsRepo: proceedsRepo,
		eventRepo:    eventRepo,
		transactor:   transactor,
		registry:     registry,
		sink:         sink,
		publisher:    publisher,
		address:      opts.Address,
		guard:        newLedgerGuard(opts.LockWait),
		metrics:      m,
		log:          log,
	}
}

// ListItem offers an owned, approved item for sale.
func (s *MarketplaceServiceImpl) ListItem(ctx context.Context, req ports.ListItemRequest) (*domain.Listing, error) {
	if req.Price < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	c, id := req.Key.Collection.String(), req.Key.ItemID

	var listing *domain.Listing
	err := s.execute(ctx, opListItem, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.listingRepo.GetForUpdate(ctx, tx, req.Key)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock listing: %w", err))
		}
		if current.IsActive() {
			return apperror.ErrAlreadyListed(c, id)
		}

		owner, err := s.registry.OwnerOf(ctx, req.Key)
		if err != nil {
			return apperror.ErrRegistryUnavailable(fmt.Errorf("owner of %s: %w", req.Key, err))
		}
		if !owner.Equal(req.Seller) {
			return apperror.ErrNotOwner(c, id)
		}

		if req.Price <= 0 {
			return apperror.ErrPriceMustBeAboveZero()
		}

		operator, err := s.registry.GetApproved(ctx, req.Key)
		if err != nil {
			return apperror.ErrRegistryUnavailable(fmt.Errorf("approved operator of %s: %w", req.Key, err))
		}
		if operator.IsZero() || !operator.Equal(s.address) {
			return apperror.ErrNotApprovedForMarketplace(c, id)
		}

		listing = &domain.Listing{ItemKey: req.Key, Price: req.Price, Seller: req.Seller}
		if err := s.listingRepo.Upsert(ctx, tx, listing); err != nil {
			return apperror.InternalError(fmt.Errorf("save listing: %w", err))
		}
		return s.emit(ctx, tx, domain.NewEvent(domain.EventItemListed, req.Seller, req.Key, req.Price))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("collection", c).
		Int64("item_id", id).
		Str("seller", req.Seller.String()).
		Int64("price", req.Price).
		Msg("item listed")

	return listing, nil
}

// BuyItem credits the seller with the full paid amount, removes the listing
// and transfers the item to the buyer. Overpayment is not refunded.
func (s *MarketplaceServiceImpl) BuyItem(ctx context.Context, req ports.BuyItemRequest) (*domain.Purchase, error) {
	if req.Paid < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	c, id := req.Key.Collection.String(), req.Key.ItemID

	var purchase *domain.Purchase
	err := s.execute(ctx, opBuyItem, func(ctx context.Context, tx pgx.Tx) error {
		listing, err := s.listingRepo.GetForUpdate(ctx, tx, req.Key)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock listing: %w", err))
		}
		if !listing.IsActive() {
			return apperror.ErrNotListed(c, id)
		}
		if req.Paid < listing.Price {
			return apperror.ErrPriceNotMet(c, id, req.Paid)
		}

		balance, err := s.proceedsRepo.GetForUpdate(ctx, tx, listing.Seller)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock proceeds: %w", err))
		}
		if balance > math.MaxInt64-req.Paid {
			return apperror.ErrInvalidAmount()
		}
		if err := s.proceedsRepo.Credit(ctx, tx, listing.Seller, req.Paid); err != nil {
			return apperror.InternalError(fmt.Errorf("credit proceeds: %w", err))
		}
		if err := s.listingRepo.Delete(ctx, tx, req.Key); err != nil {
			return apperror.InternalError(fmt.Errorf("delete listing: %w", err))
		}

		// Single external call, after internal state is consistent.
		if err := s.registry.Transfer(ctx, listing.Seller, req.Buyer, req.Key); err != nil {
			return apperror.ErrRegistryUnavailable(fmt.Errorf("transfer %s: %w", req.Key, err))
		}
		ledgerStateFrom(ctx).externalApplied = true

		purchase = &domain.Purchase{
			ItemKey: req.Key,
			Seller:  listing.Seller,
			Buyer:   req.Buyer,
			Price:   listing.Price,
			Paid:    req.Paid,
		}
		return s.emit(ctx, tx, domain.NewEvent(domain.EventItemBought, req.Buyer, req.Key, listing.Price))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddPurchase(purchase.Paid)
	s.log.Info().
		Str("collection", c).
		Int64("item_id", id).
		Str("seller", purchase.Seller.String()).
		Str("buyer", purchase.Buyer.String()).
		Int64("price", purchase.Price).
		Int64("paid", purchase.Paid).
		Msg("item bought")

	return purchase, nil
}

// CancelListing removes the caller's active listing.
func (s *MarketplaceServiceImpl) CancelListing(ctx context.Context, key domain.ItemKey, caller domain.Address) error {
	c, id := key.Collection.String(), key.ItemID

	err := s.execute(ctx, opCancelListing, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.requireOwner(ctx, key, caller); err != nil {
			return err
		}
		listing, err := s.listingRepo.GetForUpdate(ctx, tx, key)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock listing: %w", err))
		}
		if !listing.IsActive() {
			return apperror.ErrNotListed(c, id)
		}

		if err := s.listingRepo.Delete(ctx, tx, key); err != nil {
			return apperror.InternalError(fmt.Errorf("delete listing: %w", err))
		}
		return s.emit(ctx, tx, domain.NewEvent(domain.EventItemCanceled, caller, key, 0))
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("collection", c).
		Int64("item_id", id).
		Str("seller", caller.String()).
		Msg("listing canceled")
	return nil
}

// UpdateListing reprices the caller's active listing. A zero price is
// accepted and leaves the listing inactive without an ItemCanceled event.
func (s *MarketplaceServiceImpl) UpdateListing(ctx context.Context, req ports.UpdateListingRequest) (*domain.Listing, error) {
	if req.NewPrice < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	c, id := req.Key.Collection.String(), req.Key.ItemID

	var listing *domain.Listing
	err := s.execute(ctx, opUpdateListing, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.requireOwner(ctx, req.Key, req.Caller); err != nil {
			return err
		}
		current, err := s.listingRepo.GetForUpdate(ctx, tx, req.Key)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock listing: %w", err))
		}
		if !current.IsActive() {
			return apperror.ErrNotListed(c, id)
		}

		current.Price = req.NewPrice
		if err := s.listingRepo.Upsert(ctx, tx, current); err != nil {
			return apperror.InternalError(fmt.Errorf("save listing: %w", err))
		}
		listing = current
		return s.emit(ctx, tx, domain.NewEvent(domain.EventItemListed, req.Caller, req.Key, req.NewPrice))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("collection", c).
		Int64("item_id", id).
		Str("seller", req.Caller.String()).
		Int64("price", req.NewPrice).
		Msg("listing updated")

	return listing, nil
}

// WithdrawProceeds pays out the caller's whole balance. On payout failure
// the balance is left untouched.
func (s *MarketplaceServiceImpl) WithdrawProceeds(ctx context.Context, caller domain.Address) (int64, error) {
	var amount int64
	err := s.execute(ctx, opWithdrawProceeds, func(ctx context.Context, tx pgx.Tx) error {
		balance, err := s.proceedsRepo.GetForUpdate(ctx, tx, caller)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock proceeds: %w", err))
		}
		if balance <= 0 {
			return apperror.ErrNoProceeds()
		}

		if err := s.proceedsRepo.Reset(ctx, tx, caller); err != nil {
			return apperror.InternalError(fmt.Errorf("reset proceeds: %w", err))
		}

		if err := s.sink.Pay(ctx, caller, balance); err != nil {
			return apperror.ErrTransferFailed(caller.String(), balance, err)
		}
		ledgerStateFrom(ctx).externalApplied = true

		amount = balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.AddWithdrawal(amount)
	s.log.Info().
		Str("seller", caller.String()).
		Int64("amount", amount).
		Msg("proceeds withdrawn")

	return amount, nil
}

// GetListing returns the listing for key, or the zero sentinel. Called from
// inside an operation it observes that operation's uncommitted writes.
func (s *MarketplaceServiceImpl) GetListing(ctx context.Context, key domain.ItemKey) (*domain.Listing, error) {
	var (
		listing *domain.Listing
		err     error
	)
	if st := ledgerStateFrom(ctx); st != nil && st.tx != nil {
		listing, err = s.listingRepo.GetForUpdate(ctx, st.tx, key)
	} else {
		listing, err = s.listingRepo.Get(ctx, key)
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	return listing, nil
}

// GetProceeds returns the seller's withdrawable balance.
func (s *MarketplaceServiceImpl) GetProceeds(ctx context.Context, seller domain.Address) (int64, error) {
	var (
		amount int64
		err    error
	)
	if st := ledgerStateFrom(ctx); st != nil && st.tx != nil {
		amount, err = s.proceedsRepo.GetForUpdate(ctx, st.tx, seller)
	} else {
		amount, err = s.proceedsRepo.Get(ctx, seller)
	}
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get proceeds: %w", err))
	}
	return amount, nil
}

// ListEvents pages through committed notifications in sequence order.
func (s *MarketplaceServiceImpl) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	if afterSeq < 0 {
		return nil, apperror.Validation("after must not be negative")
	}
	switch {
	case limit <= 0:
		limit = DefaultEventPageSize
	case limit > MaxEventPageSize:
		limit = MaxEventPageSize
	}

	events, err := s.eventRepo.List(ctx, afterSeq, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}

// execute runs fn under the ledger guard in a single transaction, then
// publishes the events it emitted once the guard is released.
func (s *MarketplaceServiceImpl) execute(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(op, start, err) }()

	guarded, release, err := s.guard.enter(ctx)
	if err != nil {
		return err
	}
	events, err := s.transact(guarded, op, fn)
	release()
	if err != nil {
		return err
	}

	s.publish(ctx, events)
	return nil
}

func (s *MarketplaceServiceImpl) transact(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) ([]*domain.Event, error) {
	st := ledgerStateFrom(ctx)

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	st.tx = dbTx
	defer func() { st.tx = nil }()

	if err := fn(ctx, dbTx); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		if st.externalApplied {
			s.log.Error().Err(err).Str("operation", op).
				Msg("external effect applied but ledger commit failed; manual reconciliation required")
		}
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return st.events, nil
}

// emit appends the event to the outbox inside tx and queues it for publishing.
func (s *MarketplaceServiceImpl) emit(ctx context.Context, tx pgx.Tx, event *domain.Event) error {
	if err := s.eventRepo.Append(ctx, tx, event); err != nil {
		return apperror.InternalError(fmt.Errorf("append event: %w", err))
	}
	st := ledgerStateFrom(ctx)
	st.events = append(st.events, event)
	return nil
}

func (s *MarketplaceServiceImpl) publish(ctx context.Context, events []*domain.Event) {
	if s.publisher == nil {
		return
	}
	for _, e := range events {
		if err := s.publisher.Publish(ctx, e); err != nil {
			if errors.Is(err, ErrDeliveryInFlight) {
				continue
			}
			s.log.Warn().Err(err).
				Int64("seq", e.Seq).
				Str("type", string(e.Type)).
				Msg("failed to publish event; relay will retry")
		}
	}
}

func (s *MarketplaceServiceImpl) requireOwner(ctx context.Context, key domain.ItemKey, caller domain.Address) error {
	owner, err := s.registry.OwnerOf(ctx, key)
	if err != nil {
		return apperror.ErrRegistryUnavailable(fmt.Errorf("owner of %s: %w", key, err))
	}
	if !owner.Equal(caller) {
		return apperror.ErrNotOwner(key.Collection.String(), key.ItemID)
	}
	return nil
}

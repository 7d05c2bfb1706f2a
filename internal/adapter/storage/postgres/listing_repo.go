package postgres

import (
	"context"
	"errors"
	"fmt"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ListingRepo implements ports.ListingRepository.
// Destroyed listings are deleted; a missing row reads as the zero-sentinel listing.
type ListingRepo struct {
	pool Pool
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(pool Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

// Get fetches a listing without locking.
func (r *ListingRepo) Get(ctx context.Context, key domain.ItemKey) (*domain.Listing, error) {
	query := `SELECT price, seller FROM listings WHERE collection = $1 AND item_id = $2`

	l, err := scanListing(r.pool.QueryRow(ctx, query, string(key.Collection), key.ItemID), key)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

// GetForUpdate fetches a listing with pessimistic locking.
// This MUST be called within a transaction.
func (r *ListingRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, key domain.ItemKey) (*domain.Listing, error) {
	query := `SELECT price, seller FROM listings WHERE collection = $1 AND item_id = $2 FOR UPDATE`

	l, err := scanListing(tx.QueryRow(ctx, query, string(key.Collection), key.ItemID), key)
	if err != nil {
		return nil, fmt.Errorf("get listing for update: %w", err)
	}
	return l, nil
}

// Upsert creates or overwrites a listing within a transaction.
func (r *ListingRepo) Upsert(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	query := `INSERT INTO listings (collection, item_id, price, seller, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (collection, item_id)
		DO UPDATE SET price = EXCLUDED.price, seller = EXCLUDED.seller, updated_at = NOW()`

	_, err := tx.Exec(ctx, query, string(l.Collection), l.ItemID, l.Price, string(l.Seller))
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	return nil
}

// Delete removes a listing within a transaction.
func (r *ListingRepo) Delete(ctx context.Context, tx pgx.Tx, key domain.ItemKey) error {
	query := `DELETE FROM listings WHERE collection = $1 AND item_id = $2`

	if _, err := tx.Exec(ctx, query, string(key.Collection), key.ItemID); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func scanListing(row pgx.Row, key domain.ItemKey) (*domain.Listing, error) {
	var (
		price  int64
		seller string
	)
	if err := row.Scan(&price, &seller); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EmptyListing(key), nil
		}
		return nil, err
	}
	return &domain.Listing{ItemKey: key, Price: price, Seller: domain.Address(seller)}, nil
}

package ports

import (
	"context"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// ListingRepository defines persistence operations for listings.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
// Reads of an absent key return the zero-sentinel listing, never nil.
type ListingRepository interface {
	Get(ctx context.Context, key domain.ItemKey) (*domain.Listing, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, key domain.ItemKey) (*domain.Listing, error)
	Upsert(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error
	Delete(ctx context.Context, tx pgx.Tx, key domain.ItemKey) error
}

// ProceedsRepository defines persistence operations for seller balances.
// Absent sellers read as zero.
type ProceedsRepository interface {
	Get(ctx context.Context, seller domain.Address) (int64, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, seller domain.Address) (int64, error)
	Credit(ctx context.Context, tx pgx.Tx, seller domain.Address, amount int64) error
	Reset(ctx context.Context, tx pgx.Tx, seller domain.Address) error
}

// EventRepository is the notification outbox.
type EventRepository interface {
	// Append assigns event.Seq.
	Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error
	List(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error)
}

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrDuplicateUsername mirrors the accounts.username unique constraint.
var ErrDuplicateUsername = errors.New("memory: duplicate username")

// ListingRepo implements ports.ListingRepository.
type ListingRepo struct{ store *Store }

func NewListingRepo(s *Store) *ListingRepo { return &ListingRepo{store: s} }

func (r *ListingRepo) Get(_ context.Context, key domain.ItemKey) (*domain.Listing, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.committedListing(key), nil
}

// GetForUpdate reads through the transaction's staged writes.
func (r *ListingRepo) GetForUpdate(_ context.Context, tx pgx.Tx, key domain.ItemKey) (*domain.Listing, error) {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return nil, fmt.Errorf("get listing for update: %w", err)
	}
	if l, staged := t.listings[key]; staged {
		if l == nil {
			return domain.EmptyListing(key), nil
		}
		cp := *l
		return &cp, nil
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.committedListing(key), nil
}

func (r *ListingRepo) Upsert(_ context.Context, tx pgx.Tx, l *domain.Listing) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return fmt.Errorf("upsert listing: %w", err)
	}
	cp := *l
	t.listings[l.ItemKey] = &cp
	return nil
}

func (r *ListingRepo) Delete(_ context.Context, tx pgx.Tx, key domain.ItemKey) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	t.listings[key] = nil
	return nil
}

func (s *Store) committedListing(key domain.ItemKey) *domain.Listing {
	l, ok := s.listings[key]
	if !ok {
		return domain.EmptyListing(key)
	}
	return &l
}

// ProceedsRepo implements ports.ProceedsRepository.
type ProceedsRepo struct{ store *Store }

func NewProceedsRepo(s *Store) *ProceedsRepo { return &ProceedsRepo{store: s} }

func (r *ProceedsRepo) Get(_ context.Context, seller domain.Address) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.proceeds[seller], nil
}

func (r *ProceedsRepo) GetForUpdate(_ context.Context, tx pgx.Tx, seller domain.Address) (int64, error) {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return 0, fmt.Errorf("get proceeds for update: %w", err)
	}
	return r.store.stagedProceeds(t, seller), nil
}

func (r *ProceedsRepo) Credit(_ context.Context, tx pgx.Tx, seller domain.Address, amount int64) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return fmt.Errorf("credit proceeds: %w", err)
	}
	t.proceeds[seller] = r.store.stagedProceeds(t, seller) + amount
	return nil
}

func (r *ProceedsRepo) Reset(_ context.Context, tx pgx.Tx, seller domain.Address) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return fmt.Errorf("reset proceeds: %w", err)
	}
	t.proceeds[seller] = 0
	return nil
}

func (s *Store) stagedProceeds(t *Tx, seller domain.Address) int64 {
	if amount, staged := t.proceeds[seller]; staged {
		return amount
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.proceeds[seller]
}

// EventRepo implements ports.EventRepository.
type EventRepo struct{ store *Store }

func NewEventRepo(s *Store) *EventRepo { return &EventRepo{store: s} }

// Append stages the event. Sequence numbers are drawn eagerly, so a rolled
// back transaction leaves a gap, as a BIGSERIAL column would.
func (r *EventRepo) Append(_ context.Context, tx pgx.Tx, e *domain.Event) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	r.store.mu.Lock()
	r.store.nextSeq++
	e.Seq = r.store.nextSeq
	r.store.mu.Unlock()

	t.events = append(t.events, *e)
	return nil
}

func (r *EventRepo) List(_ context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	// events is ordered by seq; find the first one past the cursor.
	start := sort.Search(len(r.store.events), func(i int) bool {
		return r.store.events[i].Seq > afterSeq
	})
	end := len(r.store.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]domain.Event, end-start)
	copy(out, r.store.events[start:end])
	return out, nil
}

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct{ store *Store }

func NewAccountRepo(s *Store) *AccountRepo { return &AccountRepo{store: s} }

func (r *AccountRepo) Create(_ context.Context, a *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.accounts[a.Username]; exists {
		return fmt.Errorf("insert account: %w", ErrDuplicateUsername)
	}
	r.store.accounts[a.Username] = *a
	return nil
}

func (r *AccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.accounts[username]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ store *Store }

func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{store: s} }

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.audit = append(r.store.audit, *entry)
	return nil
}

// AuditLogs returns a snapshot of recorded audit entries.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

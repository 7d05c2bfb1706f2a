// Package memory is an in-process ledger store used for local development
// and service tests. Transactions stage writes in an overlay that is applied
// atomically on Commit, mirroring the PostgreSQL adapter's semantics.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository is handed a transaction that
// was not started by its Store.
var ErrForeignTx = errors.New("memory: transaction does not belong to this store")

// Store holds committed ledger state.
type Store struct {
	mu       sync.RWMutex
	listings map[domain.ItemKey]domain.Listing
	proceeds map[domain.Address]int64
	events   []domain.Event
	nextSeq  int64

	accounts map[string]domain.Account
	audit    []domain.AuditLog

	// txSlot admits one transaction at a time, like the ledger advisory lock.
	txSlot chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		listings: make(map[domain.ItemKey]domain.Listing),
		proceeds: make(map[domain.Address]int64),
		accounts: make(map[string]domain.Account),
		txSlot:   make(chan struct{}, 1),
	}
}

// Begin starts a transaction. It waits for any in-flight transaction to finish.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("begin: %w", ctx.Err())
	}
	return &Tx{
		store:    s,
		listings: make(map[domain.ItemKey]*domain.Listing),
		proceeds: make(map[domain.Address]int64),
	}, nil
}

// Tx is a copy-on-write transaction. Only Commit and Rollback are
// implemented; the embedded pgx.Tx is nil.
type Tx struct {
	pgx.Tx

	store    *Store
	listings map[domain.ItemKey]*domain.Listing // nil entry = deleted
	proceeds map[domain.Address]int64
	events   []domain.Event
	closed   bool
}

// Commit applies the staged writes and releases the transaction slot.
func (t *Tx) Commit(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	s := t.store
	s.mu.Lock()
	for key, l := range t.listings {
		if l == nil {
			delete(s.listings, key)
			continue
		}
		s.listings[key] = *l
	}
	for seller, amount := range t.proceeds {
		s.proceeds[seller] = amount
	}
	s.events = append(s.events, t.events...)
	s.mu.Unlock()

	t.release()
	return nil
}

// Rollback discards the staged writes. Calling it after Commit is a no-op
// that returns pgx.ErrTxClosed.
func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.release()
	return nil
}

func (t *Tx) release() {
	t.closed = true
	<-t.store.txSlot
}

func (s *Store) txFrom(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, ErrForeignTx
	}
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

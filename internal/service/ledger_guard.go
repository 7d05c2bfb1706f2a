package service

import (
	"context"
	"errors"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/semaphore"
)

var errGuardHeld = errors.New("another ledger operation is in flight")

type ledgerCtxKey struct{}

// ledgerState travels in the guarded context for the duration of one
// operation. Re-entrant queries read through tx.
type ledgerState struct {
	tx              pgx.Tx
	events          []*domain.Event
	externalApplied bool
}

func ledgerStateFrom(ctx context.Context) *ledgerState {
	st, _ := ctx.Value(ledgerCtxKey{}).(*ledgerState)
	return st
}

// ledgerGuard is the single, non-reentrant lock over all ledger state.
type ledgerGuard struct {
	sem  *semaphore.Weighted
	wait time.Duration
}

func newLedgerGuard(wait time.Duration) *ledgerGuard {
	return &ledgerGuard{sem: semaphore.NewWeighted(1), wait: wait}
}

// enter acquires the guard and returns a context tagged with fresh ledger
// state. A context that is already tagged is a re-entrant call and fails
// without blocking.
func (g *ledgerGuard) enter(ctx context.Context) (context.Context, func(), error) {
	if ledgerStateFrom(ctx) != nil {
		return nil, nil, apperror.ErrReentrantCall()
	}

	if g.wait <= 0 {
		if !g.sem.TryAcquire(1) {
			return nil, nil, apperror.ErrLedgerBusy(errGuardHeld)
		}
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, g.wait)
		defer cancel()
		if err := g.sem.Acquire(waitCtx, 1); err != nil {
			if ctx.Err() != nil {
				return nil, nil, apperror.ErrRequestCanceled(ctx.Err())
			}
			return nil, nil, apperror.ErrLedgerBusy(errGuardHeld)
		}
	}

	return context.WithValue(ctx, ledgerCtxKey{}, &ledgerState{}), func() { g.sem.Release(1) }, nil
}

package memory

import (
	"context"
	"testing"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	collection = domain.MustParseAddress("0x00000000000000000000000000000000000000c1")
	seller     = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	key        = domain.ItemKey{Collection: collection, ItemID: 1}
)

func TestTx_CommitAppliesStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	listings, proceeds := NewListingRepo(s), NewProceedsRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, listings.Upsert(ctx, tx, &domain.Listing{ItemKey: key, Price: 10, Seller: seller}))
	require.NoError(t, proceeds.Credit(ctx, tx, seller, 25))

	// Not visible outside the transaction yet.
	l, err := listings.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, l.IsActive())

	// Visible inside it.
	l, err = listings.GetForUpdate(ctx, tx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(10), l.Price)
	bal, err := proceeds.GetForUpdate(ctx, tx, seller)
	require.NoError(t, err)
	assert.Equal(t, int64(25), bal)

	require.NoError(t, tx.Commit(ctx))

	l, err = listings.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(10), l.Price)
	assert.Equal(t, seller, l.Seller)
	bal, err = proceeds.Get(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, int64(25), bal)
}

func TestTx_RollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	listings, proceeds := NewListingRepo(s), NewProceedsRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, listings.Upsert(ctx, tx, &domain.Listing{ItemKey: key, Price: 10, Seller: seller}))
	require.NoError(t, proceeds.Credit(ctx, tx, seller, 25))
	require.NoError(t, tx.Rollback(ctx))

	l, _ := listings.Get(ctx, key)
	assert.Equal(t, domain.EmptyListing(key), l)
	bal, _ := proceeds.Get(ctx, seller)
	assert.Zero(t, bal)
}

func TestTx_DeleteAndReset(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	listings, proceeds := NewListingRepo(s), NewProceedsRepo(s)

	tx, _ := s.Begin(ctx)
	require.NoError(t, listings.Upsert(ctx, tx, &domain.Listing{ItemKey: key, Price: 10, Seller: seller}))
	require.NoError(t, proceeds.Credit(ctx, tx, seller, 7))
	require.NoError(t, tx.Commit(ctx))

	tx, _ = s.Begin(ctx)
	require.NoError(t, listings.Delete(ctx, tx, key))
	require.NoError(t, proceeds.Reset(ctx, tx, seller))
	l, _ := listings.GetForUpdate(ctx, tx, key)
	assert.False(t, l.IsActive())
	require.NoError(t, tx.Commit(ctx))

	l, _ = listings.Get(ctx, key)
	assert.Equal(t, domain.EmptyListing(key), l)
	bal, _ := proceeds.Get(ctx, seller)
	assert.Zero(t, bal)
}

func TestTx_CreditAccumulates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	proceeds := NewProceedsRepo(s)

	for _, amount := range []int64{3, 4} {
		tx, _ := s.Begin(ctx)
		require.NoError(t, proceeds.Credit(ctx, tx, seller, amount))
		require.NoError(t, tx.Commit(ctx))
	}

	bal, _ := proceeds.Get(ctx, seller)
	assert.Equal(t, int64(7), bal)
}

func TestTx_ClosedAfterCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.Commit(ctx))

	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)
	assert.ErrorIs(t, NewListingRepo(s).Delete(ctx, tx, key), pgx.ErrTxClosed)
}

func TestTx_ForeignTransactionRejected(t *testing.T) {
	ctx := context.Background()
	a, b := NewStore(), NewStore()

	tx, _ := a.Begin(ctx)
	defer tx.Rollback(ctx) //nolint:errcheck

	err := NewListingRepo(b).Delete(ctx, tx, key)
	assert.ErrorIs(t, err, ErrForeignTx)
}

func TestStore_BeginWaitsForInFlightTx(t *testing.T) {
	s := NewStore()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(context.Background()))
	tx2, err := s.Begin(context.Background())
	require.NoError(t, err)
	assert.NoError(t, tx2.Rollback(context.Background()))
}

func TestEventRepo_AppendAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events := NewEventRepo(s)

	tx, _ := s.Begin(ctx)
	e1 := domain.NewEvent(domain.EventItemListed, seller, key, 10)
	e2 := domain.NewEvent(domain.EventItemCanceled, seller, key, 0)
	require.NoError(t, events.Append(ctx, tx, e1))
	require.NoError(t, events.Append(ctx, tx, e2))
	assert.Equal(t, int64(1), e1.Seq)
	assert.Equal(t, int64(2), e2.Seq)

	list, _ := events.List(ctx, 0, 10)
	assert.Empty(t, list)

	require.NoError(t, tx.Commit(ctx))

	list, err := events.List(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.EventItemListed, list[0].Type)

	list, _ = events.List(ctx, 1, 10)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].Seq)

	list, _ = events.List(ctx, 0, 1)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].Seq)
}

func TestEventRepo_RolledBackSeqLeavesGap(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	events := NewEventRepo(s)

	tx, _ := s.Begin(ctx)
	require.NoError(t, events.Append(ctx, tx, domain.NewEvent(domain.EventItemListed, seller, key, 10)))
	require.NoError(t, tx.Rollback(ctx))

	tx, _ = s.Begin(ctx)
	e := domain.NewEvent(domain.EventItemListed, seller, key, 10)
	require.NoError(t, events.Append(ctx, tx, e))
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, int64(2), e.Seq)
	list, _ := events.List(ctx, 0, 10)
	require.Len(t, list, 1)
}

func TestAccountRepo(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := NewAccountRepo(s)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got)

	a := &domain.Account{ID: uuid.New(), Username: "alice", Address: seller, CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, a))
	assert.ErrorIs(t, repo.Create(ctx, a), ErrDuplicateUsername)

	got, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestAuditRepo(t *testing.T) {
	s := NewStore()
	require.NoError(t, NewAuditRepo(s).Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionLogin}))
	logs := s.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionLogin, logs[0].Action)
}

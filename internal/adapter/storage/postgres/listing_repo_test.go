package postgres

import (
	"context"
	"errors"
	"testing"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCollection = domain.MustParseAddress("0x00000000000000000000000000000000000000c1")
	testSeller     = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	testKey        = domain.ItemKey{Collection: testCollection, ItemID: 7}
)

func TestListingRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT price, seller FROM listings WHERE collection").
		WithArgs(string(testCollection), int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"price", "seller"}).AddRow(int64(100), string(testSeller)))

	l, err := NewListingRepo(mock).Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(100), l.Price)
	assert.Equal(t, testSeller, l.Seller)
	assert.Equal(t, testKey, l.ItemKey)
	assert.True(t, l.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepo_Get_AbsentIsEmpty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT price, seller FROM listings").
		WithArgs(string(testCollection), int64(7)).
		WillReturnError(pgx.ErrNoRows)

	l, err := NewListingRepo(mock).Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, domain.EmptyListing(testKey), l)
	assert.False(t, l.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepo_Get_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT price, seller FROM listings").
		WithArgs(string(testCollection), int64(7)).
		WillReturnError(errors.New("connection reset"))

	_, err = NewListingRepo(mock).Get(context.Background(), testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get listing")
}

func TestListingRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT price, seller FROM listings .+ FOR UPDATE").
		WithArgs(string(testCollection), int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"price", "seller"}).AddRow(int64(5), string(testSeller)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	l, err := NewListingRepo(mock).GetForUpdate(context.Background(), tx, testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(5), l.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepo_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings .+ ON CONFLICT").
		WithArgs(string(testCollection), int64(7), int64(250), string(testSeller)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = NewListingRepo(mock).Upsert(context.Background(), tx, &domain.Listing{ItemKey: testKey, Price: 250, Seller: testSeller})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepo_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM listings").
		WithArgs(string(testCollection), int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, NewListingRepo(mock).Delete(context.Background(), tx, testKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"testing"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventColumns() []string {
	return []string{"seq", "id", "type", "actor", "collection", "item_id", "price", "created_at"}
}

func TestEventRepo_Append_SetsSeq(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	e := domain.NewEvent(domain.EventItemListed, testSeller, testKey, 100)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO marketplace_events .+ RETURNING seq").
		WithArgs(e.ID, "ItemListed", string(testSeller), string(testCollection), int64(7), int64(100), e.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(12)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewEventRepo(mock).Append(context.Background(), tx, e))
	assert.Equal(t, int64(12), e.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC().Truncate(time.Microsecond)
	id1, id2 := uuid.New(), uuid.New()
	buyer := "0x00000000000000000000000000000000000000b2"

	mock.ExpectQuery("SELECT .+ FROM marketplace_events WHERE seq > .+ ORDER BY seq").
		WithArgs(int64(3), 10).
		WillReturnRows(pgxmock.NewRows(eventColumns()).
			AddRow(int64(4), id1, "ItemListed", string(testSeller), string(testCollection), int64(7), int64(100), now).
			AddRow(int64(5), id2, "ItemBought", buyer, string(testCollection), int64(7), int64(100), now))

	events, err := NewEventRepo(mock).List(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[0].Seq)
	assert.Equal(t, domain.EventItemListed, events[0].Type)
	assert.Equal(t, testSeller, events[0].Actor)
	assert.Equal(t, testKey, events[0].ItemKey)
	assert.Equal(t, domain.EventItemBought, events[1].Type)
	assert.Equal(t, domain.Address(buyer), events[1].Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"fmt"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository over the marketplace_events outbox.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append writes an event within a transaction and sets its sequence number.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.Event) error {
	query := `INSERT INTO marketplace_events (id, type, actor, collection, item_id, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		e.ID, string(e.Type), string(e.Actor), string(e.Collection),
		e.ItemID, e.Price, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// List returns up to limit events with seq greater than afterSeq, oldest first.
func (r *EventRepo) List(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error) {
	query := `SELECT seq, id, type, actor, collection, item_id, price, created_at
		FROM marketplace_events WHERE seq > $1 ORDER BY seq ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, limit)
	for rows.Next() {
		var (
			e                      domain.Event
			typ, actor, collection string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &typ, &actor, &collection, &e.ItemID, &e.Price, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = domain.EventType(typ)
		e.Actor = domain.Address(actor)
		e.Collection = domain.Address(collection)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

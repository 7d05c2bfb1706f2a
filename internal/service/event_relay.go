package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nft-marketplace/internal/core/ports"

	"github.com/rs/zerolog"
)

const defaultRelayBatch = 100

// EventRelay republishes outbox events that the post-commit publish missed.
// It walks the outbox from a persisted cursor; the publisher's delivery
// guard skips events that were already delivered.
type EventRelay struct {
	events    ports.EventRepository
	publisher ports.EventPublisher
	cursor    ports.RelayCursor
	interval  time.Duration
	batch     int
	log       zerolog.Logger
}

// NewEventRelay creates a relay that polls every interval.
func NewEventRelay(
	events ports.EventRepository,
	publisher ports.EventPublisher,
	cursor ports.RelayCursor,
	interval time.Duration,
	log zerolog.Logger,
) *EventRelay {
	return &EventRelay{
		events:    events,
		publisher: publisher,
		cursor:    cursor,
		interval:  interval,
		batch:     defaultRelayBatch,
		log:       log,
	}
}

// Run relays until ctx is canceled.
func (r *EventRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RelayOnce(ctx)
			if err != nil {
				r.log.Warn().Err(err).Int("relayed", n).Msg("event relay pass failed")
			} else if n > 0 {
				r.log.Debug().Int("relayed", n).Msg("event relay pass")
			}
		}
	}
}

// RelayOnce publishes one batch past the cursor and advances it over the
// events that were delivered. It stops at the first failure, or at an event
// still in flight on the post-commit path, so the cursor never passes an
// event whose delivery is unsettled.
func (r *EventRelay) RelayOnce(ctx context.Context) (int, error) {
	after, err := r.cursor.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	events, err := r.events.List(ctx, after, r.batch)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}

	n := 0
	var pubErr error
	for i := range events {
		if err := r.publisher.Publish(ctx, &events[i]); err != nil {
			if errors.Is(err, ErrDeliveryInFlight) {
				// Revisit on the next pass; the holder may still fail.
				r.log.Debug().Int64("seq", events[i].Seq).Msg("event delivery in flight")
				break
			}
			pubErr = fmt.Errorf("publish seq %d: %w", events[i].Seq, err)
			break
		}
		after = events[i].Seq
		n++
	}

	if n > 0 {
		if err := r.cursor.Save(ctx, after); err != nil {
			return n, fmt.Errorf("save cursor: %w", err)
		}
	}
	return n, pubErr
}

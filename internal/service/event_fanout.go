package service

import (
	"context"
	"errors"
	"fmt"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/metrics"

	"github.com/rs/zerolog"
)

// ErrDeliveryInFlight reports that another path holds the event's delivery
// claim. The outcome of that delivery is not yet known.
var ErrDeliveryInFlight = errors.New("event delivery in flight")

type namedPublisher struct {
	name string
	pub  ports.EventPublisher
}

// FanoutPublisher implements ports.EventPublisher by delivering each event
// to every registered publisher. With a DeliveryGuard, an event already
// delivered by another path (post-commit publish or the outbox relay) is
// skipped.
type FanoutPublisher struct {
	targets []namedPublisher
	guard   ports.DeliveryGuard
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewFanoutPublisher creates an empty fanout. guard may be nil.
func NewFanoutPublisher(guard ports.DeliveryGuard, m *metrics.Metrics, log zerolog.Logger) *FanoutPublisher {
	return &FanoutPublisher{guard: guard, metrics: m, log: log}
}

// Add registers a delivery target.
func (f *FanoutPublisher) Add(name string, pub ports.EventPublisher) *FanoutPublisher {
	f.targets = append(f.targets, namedPublisher{name: name, pub: pub})
	return f
}

// Publish delivers to all targets. The event is marked delivered only when
// every target accepted it; on any failure the claim is released so the
// relay retries the event. An event another path is still delivering
// yields ErrDeliveryInFlight.
func (f *FanoutPublisher) Publish(ctx context.Context, event *domain.Event) error {
	claimed := false
	if f.guard != nil {
		claim, err := f.guard.Claim(ctx, event.ID)
		switch {
		case err != nil:
			// At-least-once: deliver without a claim.
			f.log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("delivery guard unavailable")
		case claim == ports.ClaimDelivered:
			return nil
		case claim == ports.ClaimInFlight:
			return ErrDeliveryInFlight
		default:
			claimed = true
		}
	}

	var errs []error
	for _, t := range f.targets {
		err := t.pub.Publish(ctx, event)
		f.metrics.ObserveDelivery(t.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}

	if len(errs) == 0 {
		if claimed {
			if err := f.guard.Complete(ctx, event.ID); err != nil {
				f.log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark event delivered")
			}
		}
		return nil
	}

	if claimed {
		if err := f.guard.Release(ctx, event.ID); err != nil {
			f.log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to release delivery claim")
		}
	}
	return errors.Join(errs...)
}

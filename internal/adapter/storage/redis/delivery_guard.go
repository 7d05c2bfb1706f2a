package redis

import (
	"context"
	"fmt"
	"time"

	"nft-marketplace/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// defaultClaimTTL bounds how long a publisher that died mid-delivery keeps
// the relay waiting on an event.
const defaultClaimTTL = time.Minute

// claimScript returns 2 when the event is already delivered, 1 when another
// delivery holds the claim and 0 when the claim was taken. The values match
// ports.DeliveryClaim.
var claimScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 2
end
if redis.call('SET', KEYS[2], '1', 'NX', 'PX', ARGV[1]) then
	return 0
end
return 1
`)

// DeliveryGuard implements ports.DeliveryGuard with two Redis keys per
// event: a short-lived in-flight claim and a delivered marker that is only
// written once every target accepted the event.
type DeliveryGuard struct {
	client          *goredis.Client
	deliveredPrefix string
	inFlightPrefix  string
	ttl             time.Duration
	claimTTL        time.Duration
}

// NewDeliveryGuard creates a Redis-backed delivery guard. Delivered markers
// expire after ttl; the relay never looks further back than that.
func NewDeliveryGuard(client *goredis.Client, ttl time.Duration) *DeliveryGuard {
	return &DeliveryGuard{
		client:          client,
		deliveredPrefix: "delivered:",
		inFlightPrefix:  "delivering:",
		ttl:             ttl,
		claimTTL:        defaultClaimTTL,
	}
}

// Claim atomically checks the delivered marker and takes the in-flight claim.
func (g *DeliveryGuard) Claim(ctx context.Context, eventID uuid.UUID) (ports.DeliveryClaim, error) {
	id := eventID.String()
	state, err := claimScript.Run(ctx, g.client,
		[]string{g.deliveredPrefix + id, g.inFlightPrefix + id},
		g.claimTTL.Milliseconds(),
	).Int()
	if err != nil {
		return ports.ClaimInFlight, fmt.Errorf("redis delivery claim: %w", err)
	}
	return ports.DeliveryClaim(state), nil
}

// Complete writes the delivered marker and drops the in-flight claim.
func (g *DeliveryGuard) Complete(ctx context.Context, eventID uuid.UUID) error {
	id := eventID.String()
	_, err := g.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, g.deliveredPrefix+id, 1, g.ttl)
		pipe.Del(ctx, g.inFlightPrefix+id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delivery complete: %w", err)
	}
	return nil
}

// Release drops the in-flight claim so a later delivery attempt can run.
func (g *DeliveryGuard) Release(ctx context.Context, eventID uuid.UUID) error {
	if err := g.client.Del(ctx, g.inFlightPrefix+eventID.String()).Err(); err != nil {
		return fmt.Errorf("redis delivery release: %w", err)
	}
	return nil
}

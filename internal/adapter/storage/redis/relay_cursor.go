package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// RelayCursor implements ports.RelayCursor as a single Redis key.
type RelayCursor struct {
	client *goredis.Client
	key    string
}

// NewRelayCursor stores the relay position under "<channel>:cursor".
func NewRelayCursor(client *goredis.Client, channel string) *RelayCursor {
	return &RelayCursor{
		client: client,
		key:    channel + ":cursor",
	}
}

// Load returns the last relayed sequence number, 0 if none.
func (c *RelayCursor) Load(ctx context.Context) (int64, error) {
	seq, err := c.client.Get(ctx, c.key).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis cursor get: %w", err)
	}
	return seq, nil
}

// Save records seq as the last relayed sequence number.
func (c *RelayCursor) Save(ctx context.Context, seq int64) error {
	if err := c.client.Set(ctx, c.key, seq, 0).Err(); err != nil {
		return fmt.Errorf("redis cursor set: %w", err)
	}
	return nil
}

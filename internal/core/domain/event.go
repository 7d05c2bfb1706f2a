package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger notification.
type EventType string

const (
	EventItemListed   EventType = "ItemListed"
	EventItemBought   EventType = "ItemBought"
	EventItemCanceled EventType = "ItemCanceled"
)

// Event is an emitted ledger notification. Actor is the seller for
// ItemListed/ItemCanceled and the buyer for ItemBought.
type Event struct {
	Seq   int64     `json:"seq"`
	ID    uuid.UUID `json:"id"`
	Type  EventType `json:"type"`
	Actor Address   `json:"actor"`
	ItemKey
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEvent builds an unsequenced event; Seq is assigned by the outbox.
func NewEvent(typ EventType, actor Address, key ItemKey, price int64) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      typ,
		Actor:     actor,
		ItemKey:   key,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
}

package domain

import "fmt"

// ItemKey identifies one item within a collection.
type ItemKey struct {
	Collection Address `json:"collection"`
	ItemID     int64   `json:"item_id"`
}

func (k ItemKey) String() string {
	return fmt.Sprintf("%s/%d", k.Collection, k.ItemID)
}

// Listing is an offer to sell an item. A zero Price means there is no
// active listing; absent listings are returned as the zero value for their key.
type Listing struct {
	ItemKey
	Price  int64   `json:"price"`
	Seller Address `json:"seller"`
}

// IsActive returns true if the listing is an open offer.
func (l *Listing) IsActive() bool {
	return l.Price > 0
}

// EmptyListing returns the zero-sentinel listing for key.
func EmptyListing(key ItemKey) *Listing {
	return &Listing{ItemKey: key}
}

// Purchase is the outcome of a successful buy.
type Purchase struct {
	ItemKey
	Seller Address `json:"seller"`
	Buyer  Address `json:"buyer"`
	Price  int64   `json:"price"` // Asking price
	Paid   int64   `json:"paid"`  // Credited to the seller in full
}

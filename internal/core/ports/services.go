package ports

import (
	"context"
	"time"

	"nft-marketplace/internal/core/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// --- External capabilities ---

// ItemRegistry is the external ownership authority for items. It is
// untrusted: any call may fail or call back into the ledger.
type ItemRegistry interface {
	OwnerOf(ctx context.Context, key domain.ItemKey) (domain.Address, error)
	GetApproved(ctx context.Context, key domain.ItemKey) (domain.Address, error)
	Transfer(ctx context.Context, from, to domain.Address, key domain.ItemKey) error
}

// PaymentSink pays out withdrawn proceeds.
type PaymentSink interface {
	Pay(ctx context.Context, to domain.Address, amount int64) error
}

// EventPublisher delivers committed ledger notifications to observers.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.Event) error
}

// DeliveryClaim is the outcome of claiming an event for delivery.
type DeliveryClaim int

const (
	// ClaimAcquired means the caller must deliver, then Complete or Release.
	ClaimAcquired DeliveryClaim = iota
	// ClaimInFlight means another path is delivering the event right now.
	ClaimInFlight
	// ClaimDelivered means the event was already delivered.
	ClaimDelivered
)

// DeliveryGuard deduplicates event deliveries between the post-commit
// publish and the outbox relay.
type DeliveryGuard interface {
	Claim(ctx context.Context, eventID uuid.UUID) (DeliveryClaim, error)
	// Complete marks a claimed event delivered and drops the claim.
	Complete(ctx context.Context, eventID uuid.UUID) error
	// Release drops the claim without marking the event delivered.
	Release(ctx context.Context, eventID uuid.UUID) error
}

// RelayCursor persists the outbox relay position.
type RelayCursor interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, seq int64) error
}

// --- Infrastructure services ---

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, body string) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, address domain.Address) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Address   domain.Address
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// MarketplaceService is the marketplace ledger.
type MarketplaceService interface {
	ListItem(ctx context.Context, req ListItemRequest) (*domain.Listing, error)
	BuyItem(ctx context.Context, req BuyItemRequest) (*domain.Purchase, error)
	CancelListing(ctx context.Context, key domain.ItemKey, caller domain.Address) error
	UpdateListing(ctx context.Context, req UpdateListingRequest) (*domain.Listing, error)
	WithdrawProceeds(ctx context.Context, caller domain.Address) (int64, error)

	GetListing(ctx context.Context, key domain.ItemKey) (*domain.Listing, error)
	GetProceeds(ctx context.Context, seller domain.Address) (int64, error)
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]domain.Event, error)
}

// ListItemRequest holds validated input for listing an item.
type ListItemRequest struct {
	Key    domain.ItemKey
	Seller domain.Address
	Price  int64
}

// BuyItemRequest holds validated input for buying an item.
type BuyItemRequest struct {
	Key   domain.ItemKey
	Buyer domain.Address
	Paid  int64
}

// UpdateListingRequest holds validated input for repricing a listing.
type UpdateListingRequest struct {
	Key      domain.ItemKey
	Caller   domain.Address
	NewPrice int64
}

// AuthService defines account business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for account registration.
// A zero Address gets a freshly generated identity.
type RegisterRequest struct {
	Username string
	Password string
	Address  domain.Address
}

package external

import (
	"context"
	"fmt"
	"net/http"

	"nft-marketplace/config"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
)

// RegistryClient implements ports.ItemRegistry over the registry's HTTP API.
type RegistryClient struct {
	client *signedClient
}

// NewRegistryClient creates a registry client acting as address.
// httpClient may be nil, in which case one with cfg.Timeout is used.
func NewRegistryClient(cfg config.EndpointConfig, address domain.Address, sigSvc ports.SignatureService, httpClient HTTPClient) (*RegistryClient, error) {
	c, err := newSignedClient(cfg, address, sigSvc, httpClient)
	if err != nil {
		return nil, fmt.Errorf("registry client: %w", err)
	}
	return &RegistryClient{client: c}, nil
}

func itemPath(key domain.ItemKey, suffix string) string {
	return fmt.Sprintf("/collections/%s/items/%d/%s", key.Collection, key.ItemID, suffix)
}

type ownerResponse struct {
	Owner string `json:"owner"`
}

// OwnerOf returns the registry-reported owner of key.
func (r *RegistryClient) OwnerOf(ctx context.Context, key domain.ItemKey) (domain.Address, error) {
	var resp ownerResponse
	if err := r.client.do(ctx, http.MethodGet, itemPath(key, "owner"), nil, &resp); err != nil {
		return "", err
	}
	owner, err := domain.ParseAddress(resp.Owner)
	if err != nil {
		return "", fmt.Errorf("owner of %s: %w", key, err)
	}
	return owner, nil
}

type approvedResponse struct {
	Operator string `json:"operator"`
}

// GetApproved returns the approved transfer operator for key. An item with
// no approved operator yields the zero Address.
func (r *RegistryClient) GetApproved(ctx context.Context, key domain.ItemKey) (domain.Address, error) {
	var resp approvedResponse
	if err := r.client.do(ctx, http.MethodGet, itemPath(key, "approved"), nil, &resp); err != nil {
		return "", err
	}
	if resp.Operator == "" {
		return "", nil
	}
	operator, err := domain.ParseAddress(resp.Operator)
	if err != nil {
		return "", fmt.Errorf("approved operator of %s: %w", key, err)
	}
	return operator, nil
}

type transferRequest struct {
	From domain.Address `json:"from"`
	To   domain.Address `json:"to"`
}

// Transfer moves key from one owner to another using the marketplace's approval.
func (r *RegistryClient) Transfer(ctx context.Context, from, to domain.Address, key domain.ItemKey) error {
	return r.client.do(ctx, http.MethodPost, itemPath(key, "transfer"), transferRequest{From: from, To: to}, nil)
}

package external

import (
	"context"
	"fmt"
	"net/http"

	"nft-marketplace/config"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/google/uuid"
)

// PayoutClient implements ports.PaymentSink.
type PayoutClient struct {
	client *signedClient
}

func NewPayoutClient(cfg config.EndpointConfig, address domain.Address, sigSvc ports.SignatureService, httpClient HTTPClient) (*PayoutClient, error) {
	c, err := newSignedClient(cfg, address, sigSvc, httpClient)
	if err != nil {
		return nil, fmt.Errorf("payout client: %w", err)
	}
	return &PayoutClient{client: c}, nil
}

type payoutRequest struct {
	To        domain.Address `json:"to"`
	Amount    int64          `json:"amount"`
	Reference string         `json:"reference"`
}

// Pay sends amount to the given identity. Each call carries a fresh reference.
func (p *PayoutClient) Pay(ctx context.Context, to domain.Address, amount int64) error {
	return p.client.do(ctx, http.MethodPost, "/payouts", payoutRequest{
		To:        to,
		Amount:    amount,
		Reference: uuid.NewString(),
	}, nil)
}

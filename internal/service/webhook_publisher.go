package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Webhook request headers.
const (
	HeaderEventID   = "X-Event-ID"
	HeaderEventType = "X-Event-Type"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookBackOff spreads retries from 15s up to 10m apart for at most an hour.
func webhookBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 15 * time.Second
	b.MaxInterval = 10 * time.Minute
	b.MaxElapsedTime = time.Hour
	return b
}

// WebhookPublisher implements ports.EventPublisher by POSTing each event to
// a subscriber URL. Delivery is asynchronous and retried with exponential
// backoff; 4xx responses other than 429 are not retried.
type WebhookPublisher struct {
	url        string
	path       string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	newBackOff func() backoff.BackOff
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebhookPublisher creates a webhook publisher for endpoint.
func NewWebhookPublisher(
	endpoint string,
	secret string,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) (*WebhookPublisher, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", endpoint)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebhookPublisher{
		url:        endpoint,
		path:       u.EscapedPath(),
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		newBackOff: webhookBackOff,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Publish schedules delivery and returns immediately.
func (p *WebhookPublisher) Publish(_ context.Context, event *domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.deliver(event, body)
	}()
	return nil
}

// Close abandons pending retries and waits for in-flight deliveries.
func (p *WebhookPublisher) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *WebhookPublisher) deliver(event *domain.Event, body []byte) {
	log := p.log.With().
		Str("event_id", event.ID.String()).
		Int64("seq", event.Seq).
		Logger()

	attempt := 0
	operation := func() error {
		attempt++
		return p.post(event, body)
	}
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("webhook: delivery failed, retrying")
	}

	b := backoff.WithContext(p.newBackOff(), p.ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		log.Error().Err(err).Int("attempts", attempt).Msg("webhook: giving up")
		return
	}
	log.Info().Int("attempt", attempt).Msg("webhook: delivered")
}

func (p *WebhookPublisher) post(event *domain.Event, body []byte) error {
	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}

	ts := time.Now().Unix()
	canonical := p.sigSvc.BuildCanonicalString(http.MethodPost, p.path, ts, string(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, event.ID.String())
	req.Header.Set(HeaderEventType, string(event.Type))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, p.sigSvc.Sign(p.secret, canonical))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("webhook rejected with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nft-marketplace/internal/adapter/storage/memory"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports/mocks"
	"nft-marketplace/internal/metrics"
	"nft-marketplace/internal/service"
	"nft-marketplace/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var marketplaceAddr = domain.MustParseAddress("0x00000000000000000000000000000000000000ee")

type testApp struct {
	router   *gin.Engine
	store    *memory.Store
	registry *mocks.MockItemRegistry
	sink     *mocks.MockPaymentSink
}

// newTestApp wires the real services over the in-memory store, with the
// registry and payout sink mocked.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := memory.NewStore()
	log := zerolog.Nop()
	m := metrics.New()

	app := &testApp{
		store:    store,
		registry: mocks.NewMockItemRegistry(ctrl),
		sink:     mocks.NewMockPaymentSink(ctrl),
	}

	tokenSvc := service.NewJWTTokenService("router-test-secret", time.Hour, "nft-marketplace")
	authSvc := service.NewAuthService(memory.NewAccountRepo(store), service.NewArgon2HashService(), tokenSvc)
	marketSvc := service.NewMarketplaceService(
		memory.NewListingRepo(store),
		memory.NewProceedsRepo(store),
		memory.NewEventRepo(store),
		store,
		app.registry,
		app.sink,
		nil,
		service.MarketplaceOptions{Address: marketplaceAddr, LockWait: time.Second},
		m,
		log,
	)

	app.router = SetupRouter(RouterDeps{
		AuthSvc:        authSvc,
		MarketplaceSvc: marketSvc,
		TokenSvc:       tokenSvc,
		AuditSvc:       service.NewAuditService(memory.NewAuditRepo(store), log),
		Metrics:        m,
		Logger:         log,
	})
	return app
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// account registers username bound to addr and returns a bearer token.
func (a *testApp) account(t *testing.T, username string, addr domain.Address) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username, "password": "password123", "address": addr.String(),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w).Data["token"].(string)
}

func TestRouter_ListBuyWithdraw(t *testing.T) {
	app := newTestApp(t)
	seller := domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	buyer := domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
	sellerToken := app.account(t, "seller", seller)
	buyerToken := app.account(t, "buyer", buyer)

	// List
	app.registry.EXPECT().OwnerOf(gomock.Any(), testKey).Return(seller, nil)
	app.registry.EXPECT().GetApproved(gomock.Any(), testKey).Return(marketplaceAddr, nil)
	w := app.do(t, http.MethodPost, "/api/v1/listings", sellerToken, map[string]any{
		"collection": collAddr.String(), "item_id": 7, "price": 100,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, itemURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(100), decode(t, w).Data["price"])

	// Buy, overpaying
	app.registry.EXPECT().Transfer(gomock.Any(), seller, buyer, testKey).Return(nil)
	w = app.do(t, http.MethodPost, itemURL+"/buy", buyerToken, map[string]any{"amount": 130})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/v1/proceeds/"+seller.String(), "", nil)
	assert.Equal(t, float64(130), decode(t, w).Data["amount"])

	w = app.do(t, http.MethodGet, itemURL, "", nil)
	assert.Equal(t, false, decode(t, w).Data["active"])

	// Withdraw
	app.sink.EXPECT().Pay(gomock.Any(), seller, int64(130)).Return(nil)
	w = app.do(t, http.MethodPost, "/api/v1/proceeds/withdraw", sellerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(130), decode(t, w).Data["amount"])

	w = app.do(t, http.MethodPost, "/api/v1/proceeds/withdraw", sellerToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Events
	w = app.do(t, http.MethodGet, "/api/v1/events", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w).Data["items"].([]any)
	require.Len(t, items, 2)
	assert.Equal(t, "ItemListed", items[0].(map[string]any)["type"])
	assert.Equal(t, "ItemBought", items[1].(map[string]any)["type"])

	// Audit entries are written asynchronously.
	assert.Eventually(t, func() bool {
		actions := map[domain.AuditAction]bool{}
		for _, e := range app.store.AuditLogs() {
			actions[e.Action] = true
		}
		return actions[domain.AuditActionListItem] && actions[domain.AuditActionBuyItem] && actions[domain.AuditActionWithdrawProceeds]
	}, time.Second, 10*time.Millisecond)
}

func TestRouter_WritesRequireToken(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/v1/listings", "", map[string]any{
		"collection": collAddr.String(), "item_id": 7, "price": 100,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(t, http.MethodPost, "/api/v1/proceeds/withdraw", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_CallerIsTokenIdentity(t *testing.T) {
	app := newTestApp(t)
	owner := domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	intruder := domain.MustParseAddress("0x00000000000000000000000000000000000000d3")
	token := app.account(t, "intruder", intruder)

	app.registry.EXPECT().OwnerOf(gomock.Any(), testKey).Return(owner, nil)
	w := app.do(t, http.MethodDelete, itemURL, token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_OversizedListingBodyRejected(t *testing.T) {
	app := newTestApp(t)
	token := app.account(t, "seller", callerAddr)

	w := app.do(t, http.MethodPost, "/api/v1/listings", token, map[string]any{
		"collection": collAddr.String(), "item_id": 7, "price": 100,
		"note": strings.Repeat("x", 2<<20),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, apperror.CodeBodyTooLarge, decode(t, w).ErrorCode)

	w = app.do(t, http.MethodGet, itemURL, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w).Data["active"])
}

func TestRouter_HealthMetricsAndRequestID(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = app.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "nft_marketplace_http_requests_total"))
}

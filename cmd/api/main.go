package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-marketplace/config"
	"nft-marketplace/internal/adapter/external"
	httpHandler "nft-marketplace/internal/adapter/http/handler"
	"nft-marketplace/internal/adapter/storage/memory"
	pgStorage "nft-marketplace/internal/adapter/storage/postgres"
	redisStorage "nft-marketplace/internal/adapter/storage/redis"
	"nft-marketplace/internal/core/domain"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/metrics"
	"nft-marketplace/internal/service"
	"nft-marketplace/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ledgerStore bundles the storage backend chosen by storage.driver.
type ledgerStore struct {
	listings   ports.ListingRepository
	proceeds   ports.ProceedsRepository
	events     ports.EventRepository
	accounts   ports.AccountRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml or ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("Starting NFT marketplace")

	marketAddr, err := domain.ParseAddress(cfg.Marketplace.Address)
	if err != nil {
		log.Fatal().Err(err).Msg("marketplace.address must be set to the marketplace's registry identity")
	}
	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Storage
	var store ledgerStore
	switch cfg.Storage.Driver {
	case "memory":
		mem := memory.NewStore()
		store = ledgerStore{
			listings:   memory.NewListingRepo(mem),
			proceeds:   memory.NewProceedsRepo(mem),
			events:     memory.NewEventRepo(mem),
			accounts:   memory.NewAccountRepo(mem),
			audit:      memory.NewAuditRepo(mem),
			transactor: mem,
			close:      func() {},
		}
		log.Warn().Msg("Using in-memory storage; state is lost on restart")
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		store = ledgerStore{
			listings:   pgStorage.NewListingRepo(pool),
			proceeds:   pgStorage.NewProceedsRepo(pool),
			events:     pgStorage.NewEventRepo(pool),
			accounts:   pgStorage.NewAccountRepo(pool),
			audit:      pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			close:      pool.Close,
		}
		log.Info().Msg("PostgreSQL connected")
	}
	defer store.close()

	// Redis backs rate limiting, event pub/sub, delivery dedupe and the
	// relay cursor. It is optional only with in-memory storage.
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		if cfg.Storage.Driver != "memory" {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Warn().Err(err).Msg("Redis unavailable; rate limiting and event publishing disabled")
		rdb = nil
	} else {
		defer rdb.Close()
		store.health = append(store.health, redisStorage.NewHealthCheck(rdb))
	}

	m := metrics.New()

	// Core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// External collaborators
	registry, err := external.NewRegistryClient(cfg.Registry, marketAddr, sigSvc, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid registry configuration")
	}
	payouts, err := external.NewPayoutClient(cfg.Payout, marketAddr, sigSvc, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid payout configuration")
	}

	// Event delivery
	publisher, webhook, err := buildPublisher(cfg.Events, rdb, sigSvc, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid events configuration")
	}
	if webhook != nil {
		defer webhook.Close()
	}

	marketSvc := service.NewMarketplaceService(
		store.listings,
		store.proceeds,
		store.events,
		store.transactor,
		registry,
		payouts,
		publisher,
		service.MarketplaceOptions{Address: marketAddr, LockWait: cfg.Marketplace.LockWait},
		m,
		log,
	)
	authSvc := service.NewAuthService(store.accounts, hashSvc, tokenSvc)
	auditSvc := service.NewAuditService(store.audit, log)

	if publisher != nil && rdb != nil && cfg.Events.RelayInterval > 0 {
		relay := service.NewEventRelay(
			store.events,
			publisher,
			redisStorage.NewRelayCursor(rdb, cfg.Events.Channel),
			cfg.Events.RelayInterval,
			log,
		)
		go relay.Run(ctx)
		log.Info().Dur("interval", cfg.Events.RelayInterval).Msg("Outbox relay started")
	}

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	deps := httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		MarketplaceSvc: marketSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: store.health,
		AuditSvc:       auditSvc,
		Metrics:        m,
		Logger:         log,
	}
	if rdb != nil {
		deps.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}
	router := httpHandler.SetupRouter(deps)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop()

	log.Info().Msg("Server exited")
}

// buildPublisher assembles the event fanout: Redis pub/sub when Redis is
// up, plus the webhook when configured. It returns a nil publisher when
// neither is available.
func buildPublisher(
	cfg config.EventsConfig,
	rdb *goredis.Client,
	sigSvc ports.SignatureService,
	m *metrics.Metrics,
	log zerolog.Logger,
) (ports.EventPublisher, *service.WebhookPublisher, error) {
	var guard ports.DeliveryGuard
	if rdb != nil {
		guard = redisStorage.NewDeliveryGuard(rdb, cfg.DedupeTTL)
	}
	fanout := service.NewFanoutPublisher(guard, m, log)
	targets := 0

	if rdb != nil {
		fanout.Add("redis", redisStorage.NewEventPublisher(rdb, cfg.Channel))
		targets++
	}

	var webhook *service.WebhookPublisher
	if cfg.WebhookURL != "" {
		var err error
		webhook, err = service.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, sigSvc, &http.Client{Timeout: 10 * time.Second}, log)
		if err != nil {
			return nil, nil, err
		}
		fanout.Add("webhook", webhook)
		targets++
	}

	if targets == 0 {
		return nil, nil, nil
	}
	return fanout, webhook, nil
}

package handler

import (
	"nft-marketplace/internal/adapter/http/middleware"
	"nft-marketplace/internal/core/ports"
	"nft-marketplace/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	MarketplaceSvc ports.MarketplaceService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Metrics   // nil = no /metrics endpoint
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: verifies every configured backend)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	mh := NewMarketplaceHandler(deps.MarketplaceSvc)
	v1.GET("/listings/:collection/:item", rl("query"), mh.GetListing)
	v1.GET("/proceeds/:seller", rl("query"), mh.GetProceeds)
	v1.GET("/events", rl("query"), mh.ListEvents)

	// --- Bearer-authenticated routes: the caller is the token's address ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	listings := v1.Group("/listings", jwtAuth)
	{
		listings.POST("", rl("ledger_write"), mh.ListItem)
		listings.PUT("/:collection/:item", rl("ledger_write"), mh.UpdateListing)
		listings.DELETE("/:collection/:item", rl("ledger_write"), mh.CancelListing)
		listings.POST("/:collection/:item/buy", rl("ledger_write"), mh.BuyItem)
	}

	v1.POST("/proceeds/withdraw", jwtAuth, rl("withdraw"), mh.WithdrawProceeds)

	return r
}

package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	Owners         ports.OwnerResolver
	Ledger         ports.WalletLedger
	Statement      ports.StatementService
	Purchases      ports.PurchaseService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer // nil = no /metrics route
	SwaggerSpec    []byte
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
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	swaggerHandler := NewSwaggerHandler(deps.SwaggerSpec)
	swagger := r.Group("/swagger")
	{
		swagger.GET("", swaggerHandler.UI)
		swagger.GET("/spec", swaggerHandler.Spec)
	}

	rules := middleware.DefaultRateLimitRules()

	// rl returns the group's rate limiter, or a no-op when Redis is off.
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

	v1 := r.Group("/api/v1", middleware.RequireJSON())

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Authenticated routes: bearer token, then owner key ---
	authed := v1.Group("",
		middleware.JWTAuth(deps.TokenSvc, deps.Logger),
		middleware.OwnerContext(deps.Owners),
	)

	walletHandler := NewWalletHandler(deps.Ledger, deps.Statement)
	wallets := authed.Group("/wallets/me")
	{
		wallets.GET("", rl("wallet_read"), walletHandler.GetMine)
		wallets.GET("/entries", rl("wallet_read"), walletHandler.ListEntries)
		wallets.POST("/credit/:amount", rl("wallet_credit"), walletHandler.Credit)
	}

	albumHandler := NewAlbumHandler(deps.Purchases)
	albums := authed.Group("/albums")
	{
		albums.POST("", rl("albums"), albumHandler.Purchase)
		albums.GET("", rl("albums"), albumHandler.Collection)
		albums.DELETE("/:id", rl("albums"), albumHandler.Remove)
	}

	return r
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"greenhouse-backend/internal/auth"
	"greenhouse-backend/internal/mw"
)

// RouterConfig holds the middleware settings.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	JWTSecret       []byte
	// Limiter is shared with the caller so it can prune idle clients. A fresh
	// one is built from the rate settings when nil.
	Limiter *mw.IPRateLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/healthz", handler.Healthz)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.Limiter == nil {
		cfg.Limiter = mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	}
	rateLimiter := cfg.Limiter.Middleware()
	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/auth/login", handler.Login)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	authed := api.Group("")
	authed.Use(mw.Authenticate(cfg.JWTSecret), mw.FlushOnWrite(cacheStore))
	operator := mw.RequireRole(auth.RoleOperator)
	admin := mw.RequireRole(auth.RoleAdmin)
	{
		authed.GET("/machines", caching, handler.ListMachines)
		authed.POST("/machines", operator, handler.CreateMachine)
		authed.GET("/machines/:id", caching, handler.GetMachine)
		authed.PUT("/machines/:id", operator, handler.ReplaceMachine)
		authed.PATCH("/machines/:id", operator, handler.PatchMachine)
		authed.DELETE("/machines/:id", admin, handler.DeleteMachine)
		authed.GET("/machines/:id/notice", caching, handler.PreviewNotice)
		authed.POST("/machines/:id/notify", operator, handler.SendNotice)

		authed.GET("/reports/dashboard", caching, handler.GetDashboard)
		authed.GET("/reports/due", caching, handler.GetDueForRepair)
		authed.GET("/reports/due.xlsx", handler.ExportDueXLSX)
		authed.GET("/reports/due.pdf", handler.ExportDuePDF)

		authed.GET("/subscriptions", handler.GetSubscription)
		authed.PUT("/subscriptions", handler.PutSubscription)
		authed.DELETE("/subscriptions", handler.DeleteSubscription)
	}

	return r
}

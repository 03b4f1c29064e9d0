package api

import (
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"park-timer-backend/config"
	"park-timer-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router. A nil gatherer leaves
// /metrics unmounted.
func NewRouter(handler *Handler, cfg config.ServerConfig, limiter *mw.IPRateLimiter, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()

	if limiter == nil {
		limiter = mw.NewIPRateLimiter(cfg.RateLimit(), cfg.RateLimitBurst)
	}
	rateLimit := mw.RateLimit(limiter)

	// Past days no longer change, so their summaries are safe to cache.
	ttl := cfg.CacheTTL()
	cacheStore := cache.New(ttl, 2*ttl)
	handler.summaries = cacheStore
	caching := mw.Cache(cacheStore, ttl, handler.pastDay)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.Use(rateLimit)
	{
		api.GET("/visitors", handler.ListVisitors)
		api.POST("/visitors", handler.CreateVisitor)
		api.GET("/visitors/:id", handler.GetVisitor)
		api.POST("/visitors/:id/start", handler.StartVisitor)
		api.POST("/visitors/:id/renew", handler.RenewVisitor)
		api.POST("/visitors/:id/complete", handler.CompleteVisitor)

		api.GET("/board", handler.GetBoard)
		api.GET("/summary", caching, handler.GetSummary)

		api.GET("/alerts/mute", handler.GetMute)
		api.PUT("/alerts/mute", handler.PutMute)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}

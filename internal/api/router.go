package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"fieldboard/config"
	"fieldboard/internal/mw"
)

// dragRateFactor scales the general rate limit for the drag endpoints, which
// receive a pointer move per animation frame.
const dragRateFactor = 4

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.logger))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	dragLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec*dragRateFactor), cfg.RateLimitBurst*dragRateFactor)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	var gen mw.Generation
	if h.loader != nil {
		gen = h.loader.Generation
	}
	caching := mw.Cache(cacheStore, ttl, gen)

	api := r.Group("/api")
	{
		general := api.Group("", rateLimiter)
		general.GET("/board", h.GetBoard)
		general.GET("/board/changes", h.StreamChanges)
		general.GET("/technicians", caching, h.GetTechnicians)
		general.POST("/jobs/:id/status", h.SetJobStatus)

		general.GET("/subscriptions", h.GetSubscription)
		general.PUT("/subscriptions", h.PutSubscription)
		general.DELETE("/subscriptions", h.DeleteSubscription)
		general.GET("/push/config", h.GetPushConfig)

		drag := api.Group("/drag", dragLimiter)
		drag.GET("", h.GetDrag)
		drag.POST("", h.BeginDrag)
		drag.POST("/:session/hover", h.HoverDrag)
		drag.POST("/:session/drop", h.DropDrag)
		drag.POST("/:session/cancel", h.CancelDrag)
	}

	return r
}

package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the transport concerns of the API.
type RouterOptions struct {
	SecretKey          []byte
	TrustedProxies     []string
	VerifyRateInterval time.Duration
	VerifyRateBurst    int
	// Health reports readiness of backing stores; nil means always healthy.
	Health func(ctx context.Context) error
}

const (
	throttleCacheSize = 10000
	throttleIdleTTL   = 10 * time.Minute
)

func NewRouter(h *Handler, opts RouterOptions, log logging.Logger) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery(), RequestLogger(log.With("module", "http")))

	router.GET("/healthz", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c.Request.Context()); err != nil {
				log.Error(c.Request.Context(), "health check failed", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		viewer := api.Group("/shares/:code")
		{
			viewer.POST("/verify",
				VerifyThrottle(opts.VerifyRateInterval, opts.VerifyRateBurst, throttleCacheSize, throttleIdleTTL),
				h.Verify)

			protected := viewer.Group("")
			protected.Use(h.ShareAuth(opts.SecretKey))
			{
				protected.GET("/timeline", h.Timeline)
				protected.GET("/projects/:projectID", h.ProjectDetail)
			}
		}

		admin := api.Group("/admin/shares")
		admin.Use(h.SessionAuth(opts.SecretKey))
		{
			admin.POST("", h.CreateShare)
			admin.GET("", h.ListShares)
			admin.GET("/:id", h.GetShare)
			admin.PATCH("/:id", h.UpdateShare)
			admin.DELETE("/:id", h.DeleteShare)
			admin.GET("/:id/access-log", h.AccessLog)
		}
	}

	return router, nil
}

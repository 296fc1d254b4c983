package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteOptions are the collaborators of the route table.
type RouteOptions struct {
	Sites     *SiteHandler
	JWTSecret string
	Health    gin.HandlerFunc
	Metrics   http.Handler
}

// RegisterRoutes mounts health, metrics and the /api/v1 site routes.
func RegisterRoutes(router *gin.Engine, opts RouteOptions) {
	if opts.Health != nil {
		router.GET("/health", opts.Health)
		router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	}
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(opts.JWTSecret))

	sites := v1.Group("/sites/:id")
	sites.POST("/discover", opts.Sites.Discover)
	sites.POST("/populate", opts.Sites.Populate)
	sites.POST("/crawl", opts.Sites.Crawl)
	sites.GET("/sync-state", opts.Sites.SyncState)
	sites.GET("/entity-types", opts.Sites.EntityTypes)
}

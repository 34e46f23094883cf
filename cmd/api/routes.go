package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"agent-console/internal/auth"
	"agent-console/internal/config"
	"agent-console/internal/coordinator"
	"agent-console/internal/httpapi"
	"agent-console/internal/telephony"
	"agent-console/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	Auth        *auth.Manager
	Consoles    *coordinator.Registry
	Bus         telephony.Publisher
	EventSecret string
	Ready       func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Telephony event bus push (shared secret).
	ingest := telephony.IngestHandler{Bus: d.Bus, Secret: d.EventSecret}
	r.POST("/events/:name", ingest.Handle)

	h := httpapi.Handlers{Auth: d.Auth, Consoles: d.Consoles}

	// Token issuance is public; everything else under /v1 needs an access token.
	r.POST("/v1/auth/login", h.Login)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.Auth))
	h.Mount(v1)
}

func corsMiddleware(cfg config.HTTPConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		cc.AllowAllOrigins = true
		cc.AllowCredentials = false
	} else {
		cc.AllowOrigins = cfg.CORSAllowedOrigins
	}
	return cors.New(cc)
}

// readiness checks Redis and, when the audit database is enabled, Postgres.
func readiness(rdb *redis.Client, db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return err
		}
		if db != nil {
			return utils.HealthCheck(ctx, db, 2*time.Second)
		}
		return nil
	}
}

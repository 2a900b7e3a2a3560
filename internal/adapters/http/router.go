package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mentorspark/sessiond/internal/adapters/signal"
	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/config"
)

// ClientTokenMiddleware gives every browser a stable opaque identity
// cookie. It stands in for the hosted auth provider: the session-token
// endpoint mints signaling tokens against this identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// TokenAuthMiddleware verifies the bearer session token on WebSocket
// endpoints (passed as a query parameter, since browsers cannot set headers
// on WebSocket dials) and stores the claims in the request context.
func TokenAuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := issuer.Verify(c.Query("token"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, issuer *auth.Issuer, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SessiondSessions", store))
	r.Use(ClientTokenMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.POST("/session/token", TokenHandler(issuer))

	api.GET("/ws/signal", TokenAuthMiddleware(issuer), func(c *gin.Context) {
		claims := c.MustGet("claims").(*auth.Claims)
		log.Info().Str("module", "adapters.http").
			Str("participant", claims.UserID).
			Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c, claims)
	})

	api.GET("/ws/presence", TokenAuthMiddleware(issuer), func(c *gin.Context) {
		claims := c.MustGet("claims").(*auth.Claims)
		ctl.HandlePresence(ctx, c, claims)
	})

	return r
}

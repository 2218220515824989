package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"hostel-hub.backend/internal/interfaces/http/handlers"
	"hostel-hub.backend/internal/interfaces/http/middleware"
	"hostel-hub.backend/pkg/metrics"
)

type routeDeps struct {
	authHandler    *handlers.AuthHandler
	adminHandler   *handlers.AdminHandler
	authMiddleware gin.HandlerFunc
	loginLimiter   gin.HandlerFunc
	trustedProxies []string
}

func newRouter(d routeDeps) (*gin.Engine, error) {
	r := gin.New()
	// Nil trusts no proxy, so ClientIP is the socket peer and the login
	// limiter cannot be dodged with X-Forwarded-For.
	if err := r.SetTrustedProxies(d.trustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	applyCORSMiddleware(r)
	registerHealthRoute(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	registerAPIV1Routes(r, d)
	return r, nil
}

func applyCORSMiddleware(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
}

func registerHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "hostel-hub-backend",
		})
	})
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", d.authHandler.Register)
			auth.POST("/login", d.loginLimiter, d.authHandler.Login)
			auth.POST("/verify", d.authHandler.VerifyEmail)
			auth.GET("/verify-email/:token", d.authHandler.VerifyEmailLink)
			auth.POST("/resend-verification", d.authHandler.ResendVerification)
			auth.GET("/me", d.authMiddleware, d.authHandler.GetMe)
			auth.PATCH("/me", d.authMiddleware, d.authHandler.UpdateMe)
			auth.POST("/change-password", d.authMiddleware, d.authHandler.ChangePassword)
		}

		admin := v1.Group("/admin")
		admin.Use(d.authMiddleware, middleware.RequireAdmin())
		{
			admin.GET("/users/stats", d.adminHandler.UserStats)
		}
	}
}

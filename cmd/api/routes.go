package main

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/examprep/internal/middleware"
)

// RouterDeps are the cross-cutting pieces the router needs besides the handlers
type RouterDeps struct {
	Auth           *middleware.Authenticator
	Profiles       middleware.ProfileLoader
	RateLimiter    *middleware.RateLimiter
	BurstLimiter   middleware.WindowLimiter
	BurstLimit     int
	BurstWindow    time.Duration
	AllowedOrigins []string
}

func setupRouter(api *API, deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(api.logger))

	if len(deps.AllowedOrigins) > 0 {
		corsCfg := cors.Config{
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders: []string{middleware.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}
		if slices.Contains(deps.AllowedOrigins, "*") {
			corsCfg.AllowAllOrigins = true
		} else {
			corsCfg.AllowOrigins = deps.AllowedOrigins
			corsCfg.AllowCredentials = true
		}
		router.Use(cors.New(corsCfg))
	}

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(deps.RateLimiter))
	{
		v1.POST("/auth/signup", api.signup)
		v1.POST("/auth/login", api.login)
		v1.POST("/support/tickets", deps.Auth.OptionalAuth(), api.createTicket)
	}

	authed := v1.Group("")
	authed.Use(deps.Auth.JWTAuth())
	{
		authed.GET("/me", api.me)
		authed.POST("/coupons/redeem", api.redeemCoupon)
		authed.POST("/documents", api.uploadDocument)
		authed.GET("/documents", api.listDocuments)
		authed.DELETE("/documents/:name", api.deleteDocument)

		ai := authed.Group("/ai")
		if deps.BurstLimiter != nil {
			ai.Use(middleware.BurstLimit(deps.BurstLimiter, "ai", deps.BurstLimit, deps.BurstWindow))
		}
		ai.POST("/summarize", api.summarize)
		ai.POST("/solve", api.solve)
		ai.POST("/explain", api.explain)
		ai.POST("/flashcards", api.flashcards)
		ai.POST("/tests", api.generateTest)
		ai.POST("/tests/pdf", api.renderTestPDF)
	}

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin(deps.Profiles))
	{
		admin.GET("/users", api.listUsers)
		admin.PATCH("/users/:id", api.updateUser)
		admin.POST("/users/import", api.importUsers)

		admin.GET("/coupons", api.listCoupons)
		admin.POST("/coupons", api.createCoupon)
		admin.PATCH("/coupons/:code", api.updateCoupon)

		admin.GET("/tickets", api.listTickets)
		admin.POST("/webhooks", api.createWebhook)
	}

	return router
}

package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/examprep/internal/middleware"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), api.healthTimeout)
	defer cancel()

	if api.health != nil {
		if err := api.health.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (api *API) signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := api.accounts.Signup(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (api *API) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := api.accounts.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// me returns the caller's profile after applying the daily reset
func (api *API) me(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	profile, err := api.quota.CheckAndResetQuota(c.Request.Context(), userID)
	if err != nil && profile == nil {
		respondError(c, err)
		return
	}
	if err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Serving profile without persisted reset")
	}

	c.JSON(http.StatusOK, profile)
}

func (api *API) redeemCoupon(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := middleware.GetUserID(c)
	result, err := api.coupons.Redeem(c.Request.Context(), userID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	if !result.Success {
		c.JSON(statusFor(result.Reason), result)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (api *API) createTicket(c *gin.Context) {
	var req struct {
		Email   string `json:"email" binding:"required,email"`
		Subject string `json:"subject" binding:"required,max=200"`
		Message string `json:"message" binding:"required,max=5000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	userID, _ := middleware.GetUserID(c)
	ticket := &models.SupportTicket{
		UserID:  userID,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
		Status:  models.TicketStatusOpen,
	}

	if err := api.support.CreateTicket(c.Request.Context(), ticket); err != nil {
		respondError(c, err)
		return
	}

	if api.events != nil {
		if err := api.events.PublishEvent(c.Request.Context(), models.WebhookEventTicketCreated, ticket); err != nil {
			api.logger.WithError(err).WithField("ticket_id", ticket.ID).Warn("Failed to publish ticket event")
		}
	}

	c.JSON(http.StatusCreated, ticket)
}

package main

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/examprep/internal/middleware"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

const maxImportBatch = 1000

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (api *API) listUsers(c *gin.Context) {
	limit, offset := pagination(c)

	profiles, err := api.accounts.ListProfiles(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  profiles,
		"limit":  limit,
		"offset": offset,
	})
}

func (api *API) updateUser(c *gin.Context) {
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, err)
		return
	}

	adminID, _ := middleware.GetUserID(c)
	profile, err := api.accounts.UpdateProfile(c.Request.Context(), adminID, c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (api *API) importUsers(c *gin.Context) {
	var docs []models.LegacyProfile
	if err := c.ShouldBindJSON(&docs); err != nil {
		badRequest(c, err)
		return
	}
	if len(docs) > maxImportBatch {
		badRequest(c, fmt.Errorf("at most %d profiles per import", maxImportBatch))
		return
	}

	n, err := api.accounts.ImportLegacy(c.Request.Context(), docs)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": n})
}

func (api *API) listCoupons(c *gin.Context) {
	coupons, err := api.coupons.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	type couponView struct {
		*models.Coupon
		State models.CouponState `json:"state"`
	}

	views := make([]couponView, 0, len(coupons))
	for _, cp := range coupons {
		views = append(views, couponView{Coupon: cp, State: cp.State()})
	}

	c.JSON(http.StatusOK, gin.H{"coupons": views})
}

func (api *API) createCoupon(c *gin.Context) {
	var def models.CouponDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		badRequest(c, err)
		return
	}
	def.Code = strings.TrimSpace(def.Code)

	adminID, _ := middleware.GetUserID(c)
	result, err := api.coupons.Create(c.Request.Context(), adminID, def)
	if err != nil {
		respondError(c, err)
		return
	}

	if !result.Success {
		c.JSON(statusFor(result.Reason), result)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (api *API) updateCoupon(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	adminID, _ := middleware.GetUserID(c)
	cp, err := api.coupons.SetActive(c.Request.Context(), adminID, c.Param("code"), *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cp)
}

func (api *API) listTickets(c *gin.Context) {
	limit, offset := pagination(c)
	status := c.Query("status")
	if status != "" && status != models.TicketStatusOpen && status != models.TicketStatusClosed {
		badRequest(c, fmt.Errorf("unknown ticket status %q", status))
		return
	}

	tickets, err := api.support.ListTickets(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (api *API) createWebhook(c *gin.Context) {
	var req struct {
		URL    string               `json:"url" binding:"required,url"`
		Events models.WebhookEvents `json:"events"`
		Secret string               `json:"secret" binding:"max=256"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Events.TicketCreated && !req.Events.CouponRedeemed && !req.Events.PlanExpired {
		badRequest(c, fmt.Errorf("subscribe to at least one event"))
		return
	}

	adminID, _ := middleware.GetUserID(c)
	webhook := &models.Webhook{
		ID:        uuid.New().String(),
		CreatedBy: adminID,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		IsActive:  true,
	}

	if err := api.support.CreateWebhook(c.Request.Context(), webhook); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, webhook)
}

package api

import (
	"net/http"

	"connect-gateway/internal/campaign"

	"github.com/gin-gonic/gin"
)

type CampaignHandler struct {
	Planner *campaign.Planner
}

func NewCampaignHandler(planner *campaign.Planner) *CampaignHandler {
	return &CampaignHandler{Planner: planner}
}

// PreviewCampaign resolves the audience and send time without persisting
func (h *CampaignHandler) PreviewCampaign(c *gin.Context) {
	var req campaign.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.Planner.Preview(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// ScheduleCampaign persists one scheduled message per eligible recipient
func (h *CampaignHandler) ScheduleCampaign(c *gin.Context) {
	var req campaign.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduled, err := h.Planner.Schedule(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, scheduled)
}

// GetCampaign returns the scheduled messages of a campaign
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	msgs, err := h.Planner.Messages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(msgs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Campaign not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign_id": c.Param("id"), "count": len(msgs), "messages": msgs})
}

package api

import (
	"net/http"
	"strconv"

	"connect-gateway/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AutomationHandler struct {
	db *gorm.DB
}

func NewAutomationHandler(db *gorm.DB) *AutomationHandler {
	return &AutomationHandler{db: db}
}

// GetLogs returns automation execution logs
func (h *AutomationHandler) GetLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}

	query := h.db.Order("created_at DESC, id DESC").Limit(limit)
	if biz := c.Query("business"); biz != "" {
		query = query.Where("business_code = ?", biz)
	}
	if outcome := c.Query("outcome"); outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}

	logs := []models.AutomationLog{}
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}

// GetAnalytics returns automation analytics
func (h *AutomationHandler) GetAnalytics(c *gin.Context) {
	var stats struct {
		TotalExecutions   int64 `json:"total_executions"`
		Fired             int64 `json:"fired"`
		Throttled         int64 `json:"throttled"`
		OpsCommands       int64 `json:"ops_commands"`
		ConsentChanges    int64 `json:"consent_changes"`
		OptedIn           int64 `json:"opted_in"`
		Unsubscribed      int64 `json:"unsubscribed"`
		PendingScheduled  int64 `json:"pending_scheduled"`
		ShiftedScheduled  int64 `json:"shifted_scheduled"`
		ScheduledMessages int64 `json:"scheduled_messages"`
	}

	biz := c.Query("business")
	scoped := func(model interface{}) *gorm.DB {
		q := h.db.Model(model)
		if biz != "" {
			q = q.Where("business_code = ?", biz)
		}
		return q
	}

	counts := []struct {
		q   *gorm.DB
		dst *int64
	}{
		{scoped(&models.AutomationLog{}), &stats.TotalExecutions},
		{scoped(&models.AutomationLog{}).Where("outcome = ?", "fired"), &stats.Fired},
		{scoped(&models.AutomationLog{}).Where("outcome = ?", "throttled"), &stats.Throttled},
		{scoped(&models.AutomationLog{}).Where("channel = ?", "ops"), &stats.OpsCommands},
		{h.db.Model(&models.ConsentEvent{}), &stats.ConsentChanges},
		{scoped(&models.Contact{}).Where("consent = ?", "OPTED_IN"), &stats.OptedIn},
		{scoped(&models.Contact{}).Where("consent = ?", "UNSUBSCRIBED"), &stats.Unsubscribed},
		{scoped(&models.ScheduledMessage{}), &stats.ScheduledMessages},
		{scoped(&models.ScheduledMessage{}).Where("status = ?", "pending"), &stats.PendingScheduled},
		{scoped(&models.ScheduledMessage{}).Where("shifted = ?", true), &stats.ShiftedScheduled},
	}
	for _, cnt := range counts {
		if err := cnt.q.Count(cnt.dst).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, stats)
}

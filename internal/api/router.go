package api

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the REST handlers mounted under /api.
type Handlers struct {
	Contacts   *ContactHandler
	Businesses *BusinessHandler
	Automation *AutomationHandler
	Campaigns  *CampaignHandler
	Policy     *PolicyHandler
}

// Register mounts every route on the /api group.
func (h Handlers) Register(apiGroup *gin.RouterGroup) {
	// CRM Routes
	apiGroup.GET("/contacts", h.Contacts.GetContacts)
	apiGroup.POST("/contacts", h.Contacts.CreateContact)
	apiGroup.PUT("/contacts/:business/:waId", h.Contacts.UpdateContact)
	apiGroup.DELETE("/contacts/:business/:waId", h.Contacts.DeleteContact)
	apiGroup.GET("/contacts/export", h.Contacts.ExportContacts)

	// Business Routes
	apiGroup.GET("/businesses", h.Businesses.GetBusinesses)
	apiGroup.GET("/businesses/:code/settings", h.Businesses.GetSettings)
	apiGroup.PUT("/businesses/:code/settings", h.Businesses.UpdateSettings)
	apiGroup.POST("/businesses/:code/preset", h.Businesses.ApplyPreset)
	apiGroup.GET("/presets", h.Businesses.GetPresets)

	// Automation Routes
	apiGroup.GET("/automation/logs", h.Automation.GetLogs)
	apiGroup.GET("/automation/analytics", h.Automation.GetAnalytics)

	// Campaign Routes
	apiGroup.POST("/campaigns/preview", h.Campaigns.PreviewCampaign)
	apiGroup.POST("/campaigns", h.Campaigns.ScheduleCampaign)
	apiGroup.GET("/campaigns/:id", h.Campaigns.GetCampaign)

	// Policy Tools
	policyGroup := apiGroup.Group("/policy")
	{
		policyGroup.POST("/templates/validate", h.Policy.ValidateTemplate)
		policyGroup.POST("/quiet-hours", h.Policy.CheckQuietHours)
		policyGroup.POST("/match", h.Policy.MatchRules)
	}
}

// CORS allows the admin UI to call the API from another origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

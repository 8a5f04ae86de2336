package api

import (
	"io"
	"net/http"

	"connect-gateway/internal/catalog"
	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type BusinessHandler struct {
	db      *gorm.DB
	catalog *catalog.Catalog
}

func NewBusinessHandler(db *gorm.DB, c *catalog.Catalog) *BusinessHandler {
	return &BusinessHandler{db: db, catalog: c}
}

// GetBusinesses returns all businesses
func (h *BusinessHandler) GetBusinesses(c *gin.Context) {
	var businesses []models.Business
	if err := h.db.Order("code").Find(&businesses).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, businesses)
}

func (h *BusinessHandler) load(c *gin.Context) (models.Business, bool) {
	var biz models.Business
	if err := h.db.First(&biz, "code = ?", c.Param("code")).Error; err != nil {
		respondError(c, err)
		return biz, false
	}
	return biz, true
}

// GetSettings returns the decoded settings_json of a business
func (h *BusinessHandler) GetSettings(c *gin.Context) {
	biz, ok := h.load(c)
	if !ok {
		return
	}
	settings, err := biz.PolicySettings()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the settings_json of a business after validating it
func (h *BusinessHandler) UpdateSettings(c *gin.Context) {
	biz, ok := h.load(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	settings, err := policy.ParseSettings(body)
	if err != nil {
		if policy.IsValidation(err) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := biz.SetPolicySettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.Model(&biz).Update("settings", biz.Settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// ApplyPreset swaps the keyword rules of a business for a catalog preset,
// keeping its timezone and quiet hours
func (h *BusinessHandler) ApplyPreset(c *gin.Context) {
	var req struct {
		Preset string `json:"preset" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preset, ok := h.catalog.Get(req.Preset)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Preset not found"})
		return
	}

	biz, ok := h.load(c)
	if !ok {
		return
	}
	settings, err := biz.PolicySettings()
	if err != nil {
		respondError(c, err)
		return
	}
	settings.Keywords = preset.Keywords
	if err := biz.SetPolicySettings(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.Model(&biz).Updates(map[string]interface{}{
		"settings": biz.Settings,
		"ruleset":  preset.ID,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Preset applied", "ruleset": preset.ID, "settings": settings})
}

// GetPresets lists the built-in rule packs
func (h *BusinessHandler) GetPresets(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Presets())
}

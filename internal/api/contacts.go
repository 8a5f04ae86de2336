package api

import (
	"encoding/csv"
	"net/http"
	"strings"
	"time"

	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContactHandler struct {
	db *gorm.DB
}

func NewContactHandler(db *gorm.DB) *ContactHandler {
	return &ContactHandler{db: db}
}

// ContactView is a contact as returned by the API, with decoded tags and the
// free-form reply window evaluated at request time.
type ContactView struct {
	WaID          string     `json:"wa_id"`
	BusinessCode  string     `json:"business_code"`
	Name          string     `json:"name"`
	Tags          []string   `json:"tags"`
	Consent       string     `json:"consent"`
	LastInboundAt *time.Time `json:"last_inbound_at"`
	CanReply      bool       `json:"can_reply"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newContactView(c models.Contact, now time.Time) ContactView {
	v := ContactView{
		WaID:          c.WaID,
		BusinessCode:  c.BusinessCode,
		Name:          c.Name,
		Tags:          c.TagList(),
		Consent:       c.Consent,
		LastInboundAt: c.LastInboundAt,
		CreatedAt:     c.CreatedAt,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if c.LastInboundAt != nil {
		v.CanReply = policy.CanSendFreeForm(*c.LastInboundAt, now)
	}
	return v
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	query := h.db.Order("created_at DESC")
	if biz := c.Query("business"); biz != "" {
		query = query.Where("business_code = ?", biz)
	}

	var contacts []models.Contact
	if err := query.Find(&contacts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tag := c.Query("tag")
	now := time.Now()
	out := make([]ContactView, 0, len(contacts))
	for _, contact := range contacts {
		if tag != "" && !contact.ToPolicy().HasTag(tag) {
			continue
		}
		out = append(out, newContactView(contact, now))
	}

	c.JSON(http.StatusOK, out)
}

// CreateContactRequest for adding new contacts
type CreateContactRequest struct {
	WaID         string   `json:"wa_id" binding:"required"`
	BusinessCode string   `json:"business_code" binding:"required"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags"`
	Consent      string   `json:"consent"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	consent, err := policy.ParseConsent(req.Consent)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.db.First(&models.Business{}, "code = ?", req.BusinessCode).Error; err != nil {
		respondError(c, err)
		return
	}

	contact := models.Contact{BusinessCode: req.BusinessCode, WaID: strings.TrimSpace(req.WaID), Name: req.Name, Consent: string(consent)}
	contact.SetTags(req.Tags)

	// Use UPSERT to avoid duplicates
	err = h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_code"}, {Name: "wa_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "tags", "consent", "updated_at"}),
	}).Create(&contact).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contact"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "Contact created", "business_code": contact.BusinessCode, "wa_id": contact.WaID})
}

type UpdateContactRequest struct {
	Name    *string  `json:"name"`
	Tags    []string `json:"tags"`
	AddTags []string `json:"add_tags"`
	Consent *string  `json:"consent"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	biz, waID := c.Param("business"), c.Param("waId")
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contact models.Contact
	if err := h.db.First(&contact, "business_code = ? AND wa_id = ?", biz, waID).Error; err != nil {
		respondError(c, err)
		return
	}

	if req.Name != nil {
		contact.Name = *req.Name
	}
	if req.Tags != nil {
		contact.SetTags(req.Tags)
	}
	for _, t := range req.AddTags {
		contact.AddTag(t)
	}
	if req.Consent != nil {
		consent, err := policy.ParseConsent(*req.Consent)
		if err != nil {
			respondError(c, err)
			return
		}
		contact.Consent = string(consent)
	}

	if err := h.db.Save(&contact).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact"})
		return
	}

	c.JSON(http.StatusOK, newContactView(contact, time.Now()))
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	biz, waID := c.Param("business"), c.Param("waId")

	result := h.db.Delete(&models.Contact{}, "business_code = ? AND wa_id = ?", biz, waID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contact"})
		return
	}

	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Contact deleted"})
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	var contacts []models.Contact
	if err := h.db.Order("created_at DESC").Find(&contacts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"WhatsApp ID", "Business", "Name", "Tags", "Consent", "Created At"})
	for _, contact := range contacts {
		w.Write([]string{
			contact.WaID,
			contact.BusinessCode,
			contact.Name,
			strings.Join(contact.TagList(), ";"),
			contact.Consent,
			contact.CreatedAt.Format(time.RFC3339),
		})
	}
	w.Flush()
}

package api

import (
	"errors"
	"net/http"

	"connect-gateway/internal/automation"
	"connect-gateway/internal/campaign"
	"connect-gateway/internal/policy"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case policy.IsValidation(err), errors.Is(err, campaign.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, automation.ErrUnknownBusiness),
		errors.Is(err, campaign.ErrUnknownBusiness):
		return http.StatusNotFound
	case errors.Is(err, campaign.ErrTemplateRejected),
		errors.Is(err, campaign.ErrVarsMismatch),
		errors.Is(err, campaign.ErrEmptyAudience):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var ve *policy.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	c.JSON(statusFor(err), body)
}

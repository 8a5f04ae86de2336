package api

import (
	"net/http"
	"time"

	"connect-gateway/internal/policy"

	"github.com/gin-gonic/gin"
)

// PolicyHandler exposes the stateless evaluators for editors and previews.
type PolicyHandler struct {
	// Now is the handler clock.
	Now func() time.Time
}

func NewPolicyHandler() *PolicyHandler {
	return &PolicyHandler{Now: time.Now}
}

// ValidateTemplate checks a template name and its {{n}} placeholders
func (h *PolicyHandler) ValidateTemplate(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := policy.ValidatePlaceholders(req.Body)
	resp := gin.H{
		"ok":           res.OK,
		"reason":       res.Reason,
		"count":        res.Count,
		"placeholders": policy.Placeholders(req.Body),
	}
	if req.Name != "" {
		if err := policy.ValidateTemplateName(req.Name); err != nil {
			resp["ok"] = false
			resp["name_error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

// CheckQuietHours reports whether an instant is quiet and when a send
// requested then would go out
func (h *PolicyHandler) CheckQuietHours(c *gin.Context) {
	var req struct {
		Timezone string    `json:"timezone"`
		Start    string    `json:"start"`
		End      string    `json:"end"`
		At       time.Time `json:"at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timezone == "" {
		req.Timezone = policy.DefaultTimezone
	}
	if req.Start == "" {
		req.Start = policy.FormatHour(policy.DefaultQuietStart)
	}
	if req.End == "" {
		req.End = policy.FormatHour(policy.DefaultQuietEnd)
	}

	loc, err := policy.LoadLocation(req.Timezone)
	if err != nil {
		respondError(c, err)
		return
	}
	start, err := policy.ParseHour("start", req.Start)
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := policy.ParseHour("end", req.End)
	if err != nil {
		respondError(c, err)
		return
	}
	q, err := policy.NewQuietHours(start, end, loc)
	if err != nil {
		respondError(c, err)
		return
	}

	at := req.At
	if at.IsZero() {
		at = h.Now()
	}
	scheduled := q.Shift(at)
	c.JSON(http.StatusOK, gin.H{
		"window":         q.String(),
		"overnight":      q.Overnight(),
		"quiet":          q.IsQuiet(at),
		"requested_time": at.In(loc),
		"scheduled_time": scheduled,
		"shifted":        !scheduled.Equal(at),
	})
}

// MatchRules runs a message through a rule list. last_fired maps rule
// indices to their previous firing time.
func (h *PolicyHandler) MatchRules(c *gin.Context) {
	var req struct {
		Rules     []policy.Rule     `json:"rules"`
		Text      string            `json:"text"`
		At        time.Time         `json:"at"`
		LastFired map[int]time.Time `json:"last_fired"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if policy.IsValidation(err) {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	at := req.At
	if at.IsZero() {
		at = h.Now()
	}
	res := policy.Match(req.Rules, req.Text, at, func(i int) (time.Time, bool) {
		t, ok := req.LastFired[i]
		return t, ok
	})

	resp := gin.H{"outcome": res.Outcome.String(), "index": res.Index}
	if res.Outcome != policy.NoMatch {
		resp["rule"] = res.Rule
		resp["action"] = res.Rule.Action.Kind()
	}
	if res.Outcome == policy.Throttled {
		resp["retry_at"] = res.RetryAt
	}
	c.JSON(http.StatusOK, resp)
}

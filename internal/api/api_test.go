package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connect-gateway/internal/campaign"
	"connect-gateway/internal/catalog"
	"connect-gateway/internal/config"
	"connect-gateway/internal/database"
	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(&config.Config{DBDriver: config.DriverSQLite, DBPath: filepath.Join(t.TempDir(), "api.db"), LogLevel: "error"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cat, err := catalog.Load()
	require.NoError(t, err)
	_, err = database.SeedBusinesses(db, cat, policy.QuietHours{Start: 22, End: 7})
	require.NoError(t, err)

	planner := campaign.NewPlanner(db, nil, nil)
	planner.Now = func() time.Time { return time.Date(2025, 1, 10, 6, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.Use(CORS())
	Handlers{
		Contacts:   NewContactHandler(db),
		Businesses: NewBusinessHandler(db, cat),
		Automation: NewAutomationHandler(db),
		Campaigns:  NewCampaignHandler(planner),
		Policy:     NewPolicyHandler(),
	}.Register(r.Group("/api"))
	return r, db
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCORS_Preflight(t *testing.T) {
	r, _ := setupRouter(t)
	w := do(t, r, http.MethodOptions, "/api/presets", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBusinessSettings(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/businesses/TTR-01/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, "Asia/Kolkata", got["timezone"])
	assert.Equal(t, map[string]interface{}{"start": "22:00", "end": "07:00"}, got["quiet_hours"])

	update := `{"timezone":"Asia/Dubai","quiet_hours":{"start":"21:00","end":"06:00"},
		"keywords":{"customer_rules":[{"match":"exact","triggers":["HI"],"do":"AUTOREPLY","reply_text":"Hello!"}],"ops_rules":[]}}`
	w = do(t, r, http.MethodPut, "/api/businesses/TTR-01/settings", update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/businesses/TTR-01/settings", nil)
	got = decode(t, w)
	assert.Equal(t, "Asia/Dubai", got["timezone"])
	keywords := got["keywords"].(map[string]interface{})
	assert.Len(t, keywords["customer_rules"], 1)
	assert.Equal(t, []interface{}{}, keywords["ops_rules"])

	w = do(t, r, http.MethodPut, "/api/businesses/TTR-01/settings", `{"quiet_hours":{"start":"22:30","end":"07:00"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "quiet_hours.start", decode(t, w)["field"])

	w = do(t, r, http.MethodPut, "/api/businesses/TTR-01/settings", `{"keywords":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/businesses/NOPE/settings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplyPreset(t *testing.T) {
	r, db := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var presets []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &presets))
	require.Len(t, presets, 3)
	assert.Equal(t, "tuition-basic", presets[0]["id"])

	w = do(t, r, http.MethodPost, "/api/businesses/TTR-01/preset", gin.H{"preset": "empty"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var biz models.Business
	require.NoError(t, db.First(&biz, "code = ?", "TTR-01").Error)
	assert.Equal(t, "empty", biz.Ruleset)
	settings, err := biz.PolicySettings()
	require.NoError(t, err)
	assert.Empty(t, settings.Keywords.Customer)
	assert.Equal(t, "Asia/Kolkata", settings.Timezone)

	w = do(t, r, http.MethodPost, "/api/businesses/TTR-01/preset", gin.H{"preset": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContactsCRUD(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/contacts", gin.H{
		"wa_id": "919800000001", "business_code": "TTR-01", "name": "Asha",
		"tags": []string{"Class 10", "class 10", " fees-due "}, "consent": "opted_in",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/contacts", gin.H{"wa_id": "9", "business_code": "TTR-01", "consent": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/contacts", gin.H{"wa_id": "9", "business_code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodGet, "/api/contacts?tag=FEES-DUE", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []ContactView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, []string{"Class 10", "fees-due"}, list[0].Tags)
	assert.Equal(t, "OPTED_IN", list[0].Consent)
	assert.False(t, list[0].CanReply)

	w = do(t, r, http.MethodPut, "/api/contacts/TTR-01/919800000001", gin.H{"add_tags": []string{"batch-a"}, "consent": "UNSUBSCRIBED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated ContactView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, []string{"Class 10", "fees-due", "batch-a"}, updated.Tags)
	assert.Equal(t, "UNSUBSCRIBED", updated.Consent)
	assert.Equal(t, "Asha", updated.Name)

	w = do(t, r, http.MethodGet, "/api/contacts/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "919800000001,TTR-01,Asha,Class 10;fees-due;batch-a,UNSUBSCRIBED")

	w = do(t, r, http.MethodDelete, "/api/contacts/TTR-01/919800000001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodDelete, "/api/contacts/TTR-01/919800000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodPut, "/api/contacts/TTR-01/919800000001", gin.H{"name": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestContacts_ScopedByBusiness(t *testing.T) {
	r, db := setupRouter(t)

	for _, biz := range []string{"TTR-01", "HPL-02"} {
		w := do(t, r, http.MethodPost, "/api/contacts", gin.H{"wa_id": "919800000001", "business_code": biz, "consent": "OPTED_IN"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := do(t, r, http.MethodPut, "/api/contacts/HPL-02/919800000001", gin.H{"consent": "UNSUBSCRIBED"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tuition models.Contact
	require.NoError(t, db.First(&tuition, "business_code = ? AND wa_id = ?", "TTR-01", "919800000001").Error)
	assert.Equal(t, "OPTED_IN", tuition.Consent)

	w = do(t, r, http.MethodDelete, "/api/contacts/HPL-02/919800000001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var left int64
	require.NoError(t, db.Model(&models.Contact{}).Where("wa_id = ?", "919800000001").Count(&left).Error)
	assert.EqualValues(t, 1, left)
}

func TestCampaignFlow(t *testing.T) {
	r, db := setupRouter(t)
	for _, c := range []models.Contact{
		{WaID: "1", BusinessCode: "TTR-01", Consent: "OPTED_IN", Tags: `["fees-due"]`},
		{WaID: "2", BusinessCode: "TTR-01", Consent: "NEEDS_OPT_IN", Tags: `["fees-due"]`},
	} {
		require.NoError(t, db.Create(&c).Error)
	}

	req := gin.H{
		"business_code": "TTR-01",
		"template_name": "fee-reminder",
		"template_body": "Hi {{1}}",
		"vars":          []string{"name"},
		"include":       []string{"fees-due"},
		"send_at":       "2025-01-10T23:30:00+05:30",
	}
	w := do(t, r, http.MethodPost, "/api/campaigns/preview", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	preview := decode(t, w)
	assert.Equal(t, float64(1), preview["eligible"])
	assert.Equal(t, true, preview["shifted"])
	assert.Equal(t, "2025-01-11T07:00:00+05:30", preview["scheduled_time"])

	w = do(t, r, http.MethodPost, "/api/campaigns", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["campaign_id"].(string)
	require.NotEmpty(t, id)

	w = do(t, r, http.MethodGet, "/api/campaigns/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = do(t, r, http.MethodGet, "/api/campaigns/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, r, http.MethodGet, "/api/campaigns/9b2e4f3c-3f0c-4f7a-9a55-6d3c1f6f1e2a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req["template_body"] = "Hi {{2}}"
	w = do(t, r, http.MethodPost, "/api/campaigns/preview", req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req["template_body"] = "Hi {{1}}"
	req["include"] = []string{"nobody"}
	w = do(t, r, http.MethodPost, "/api/campaigns", req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, "/api/automation/analytics?business=TTR-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, float64(1), stats["scheduled_messages"])
	assert.Equal(t, float64(1), stats["shifted_scheduled"])
	assert.Equal(t, float64(1), stats["opted_in"])
}

func TestAutomationLogs(t *testing.T) {
	r, db := setupRouter(t)
	require.NoError(t, db.Create(&models.AutomationLog{BusinessCode: "TTR-01", Channel: "ops", Outcome: "fired", Action: "OPS_MARK_PAID"}).Error)
	require.NoError(t, db.Create(&models.AutomationLog{BusinessCode: "HPL-02", Channel: "customer", Outcome: "throttled", Action: "TEMPLATE"}).Error)

	w := do(t, r, http.MethodGet, "/api/automation/logs?business=TTR-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []models.AutomationLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "OPS_MARK_PAID", logs[0].Action)

	w = do(t, r, http.MethodGet, "/api/automation/logs?outcome=none", nil)
	assert.Equal(t, "[]", w.Body.String())
}

func TestPolicyTools(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/policy/templates/validate", gin.H{"name": "fee-reminder", "body": "Hi {{2}} {{1}}"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	assert.Equal(t, true, got["ok"])
	assert.Equal(t, float64(2), got["count"])
	assert.Equal(t, []interface{}{float64(1), float64(2)}, got["placeholders"])

	w = do(t, r, http.MethodPost, "/api/policy/templates/validate", gin.H{"name": "Bad Name", "body": "{{1}} {{3}}"})
	got = decode(t, w)
	assert.Equal(t, false, got["ok"])
	assert.Equal(t, "NonContiguousPlaceholders", got["reason"])
	assert.NotEmpty(t, got["name_error"])

	w = do(t, r, http.MethodPost, "/api/policy/quiet-hours", gin.H{"timezone": "UTC", "start": "22:00", "end": "07:00", "at": "2025-01-10T23:00:00Z"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode(t, w)
	assert.Equal(t, true, got["quiet"])
	assert.Equal(t, true, got["overnight"])
	assert.Equal(t, "2025-01-11T07:00:00Z", got["scheduled_time"])

	w = do(t, r, http.MethodPost, "/api/policy/quiet-hours", gin.H{"timezone": "Mars/Base"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	match := `{"text":"PAID 9198 500","at":"2025-01-10T10:00:30Z",
		"rules":[{"match":"startswith","triggers":["paid"],"do":"OPS_MARK_PAID","throttle_sec":60}],
		"last_fired":{"0":"2025-01-10T10:00:00Z"}}`
	w = do(t, r, http.MethodPost, "/api/policy/match", match)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode(t, w)
	assert.Equal(t, "throttled", got["outcome"])
	assert.Equal(t, "2025-01-10T10:01:00Z", got["retry_at"])

	w = do(t, r, http.MethodPost, "/api/policy/match", `{"text":"x","rules":[{"match":"regex","triggers":["x"],"do":"AUTOREPLY","reply_text":"y"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, db := setupRouter(t)

	r := gin.New()
	r.GET("/health", Health(map[string]HealthCheck{"database": DatabaseCheck(db)}))
	w := do(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"database": "ok"}, decode(t, w)["checks"])

	r = gin.New()
	r.GET("/health", Health(map[string]HealthCheck{
		"database": DatabaseCheck(db),
		"throttle": func(context.Context) error { return errors.New("connection refused") },
	}))
	w = do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "connection refused", decode(t, w)["checks"].(map[string]interface{})["throttle"])
}

package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaigns(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	token := tokenFor(t, owner, biz, model.RoleOwner)

	env.llm.set("SUBJECT: Reef season is open\nCONTENT:\nBook your snorkel trip today.", nil)
	rec := env.do(t, http.MethodPost, "/api/campaigns/generate", token, map[string]interface{}{"type": "email", "topic": "Season opening"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Reef season is open", decode(t, rec)["subject"])

	rec = env.do(t, http.MethodPost, "/api/campaigns/generate", token, map[string]interface{}{"type": "email", "save": true})
	require.Equal(t, http.StatusCreated, rec.Code)
	campaign := decode(t, rec)["campaign"].(map[string]interface{})
	assert.Equal(t, true, campaign["ai_generated"])
	assert.Equal(t, model.CampaignDraft, campaign["status"])
	id := itoa(campaign["id"].(float64))

	rec = env.do(t, http.MethodPost, "/api/campaigns/generate", token, map[string]interface{}{"type": "fax"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.llm.set("", errLLMDown)
	rec = env.do(t, http.MethodPost, "/api/campaigns/generate", token, map[string]interface{}{"type": "social"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/schedule", token, map[string]interface{}{"scheduled_at": time.Now().Add(-time.Hour)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/schedule", token, map[string]interface{}{"scheduled_at": time.Now().Add(48 * time.Hour)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.CampaignScheduled, decode(t, rec)["status"])

	rec = env.do(t, http.MethodPost, "/api/campaigns/"+id+"/archive", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/campaigns/"+id, token, map[string]string{"subject": "too late"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/campaigns", token, map[string]string{"name": "Manual", "type": "blog"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/campaigns?type=blog", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["campaigns"], 1)
}

func TestKnowledgeImport(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	token := tokenFor(t, owner, biz, model.RoleOwner)

	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, w.WriteField("category", "faq"))
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/knowledge/import", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("faq.md", strings.Repeat("Parking is free next to the marina. ", 200))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	count := decode(t, rec)["count"].(float64)
	assert.Greater(t, count, float64(1))

	var entries []model.KnowledgeBase
	require.NoError(t, env.db.Where("business_id = ?", biz.ID).Order("id").Find(&entries).Error)
	require.Len(t, entries, int(count))
	assert.Equal(t, "faq.md (part 1)", entries[0].Title)
	assert.Equal(t, "faq", entries[0].Category)

	rec = upload("photo.png", "binary")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/knowledge", token, map[string]interface{}{"title": "Hours", "content": "9 to 5", "active": false})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, false, decode(t, rec)["active"])

	rec = env.do(t, http.MethodGet, "/api/knowledge?active=false", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["entries"], 1)
}

func TestServicesNotConfigured(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	token := tokenFor(t, owner, biz, model.RoleOwner)

	rec := env.do(t, http.MethodPost, "/api/deployments", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/billing/checkout", token, map[string]string{"plan": "starter"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodPost, "/webhooks/stripe", "", map[string]string{"type": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/billing/subscription", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PlanFree, decode(t, rec)["plan"])

	rec = env.do(t, http.MethodGet, "/api/deployments/latest", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsAndNotifications(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	token := tokenFor(t, owner, biz, model.RoleOwner)

	rec := env.do(t, http.MethodGet, "/api/analytics?from=2025-02-01&to=2025-01-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analytics?from=0001-01-01&to=9999-12-31", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analytics?from=2025-01-01&to=2025-01-07", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["bookings_per_day"], 7)

	bid := biz.ID
	require.NoError(t, env.db.Create(&model.Notification{UserID: owner.ID, BusinessID: &bid, Type: "booking", Title: "One"}).Error)
	require.NoError(t, env.db.Create(&model.Notification{UserID: owner.ID, BusinessID: &bid, Type: "booking", Title: "Two"}).Error)

	rec = env.do(t, http.MethodGet, "/api/notifications?unread=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["unread"])
	first := body["notifications"].([]interface{})[0].(map[string]interface{})

	rec = env.do(t, http.MethodPost, "/api/notifications/"+itoa(first["id"].(float64))+"/read", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/notifications/read-all", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["updated"])
}

func TestIntegrations(t *testing.T) {
	env := setup(t)
	owner, biz := testutil.SeedBusiness(t, env.db, "reef")
	token := tokenFor(t, owner, biz, model.RoleOwner)

	rec := env.do(t, http.MethodPut, "/api/integrations", token, map[string]interface{}{
		"provider": "Mailchimp", "category": "email", "config": map[string]string{"list": "abc"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/integrations", token, map[string]interface{}{
		"provider": "mailchimp", "category": "email", "config": "not an object",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/integrations", token, map[string]interface{}{
		"provider": "mailchimp", "category": "email", "config": map[string]string{"list": "xyz"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/integrations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode(t, rec)["integrations"].([]interface{})
	require.Len(t, list, 1)
	assert.Contains(t, list[0].(map[string]interface{})["config"], "xyz")

	rec = env.do(t, http.MethodDelete, "/api/integrations/mailchimp", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

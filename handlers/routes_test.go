package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"job-board-growth/models"
	"job-board-growth/services"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	app       *fiber.App
	db        *gorm.DB
	referrals *services.ReferralEngine
	viral     *services.ViralGrowthEngine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	ctx := context.Background()
	catalog := services.DefaultCatalog()
	opts := services.EngineOptions{PublicBaseURL: "https://jobs.example.com"}
	referrals, err := services.NewReferralEngine(ctx, db, catalog, opts)
	require.NoError(t, err)
	viral, err := services.NewViralGrowthEngine(ctx, db, catalog, opts)
	require.NoError(t, err)

	app := fiber.New()
	SetupReferralRoutes(app, referrals)
	SetupViralRoutes(app, viral, services.NewNotificationStream(db))

	for _, u := range []models.UserProfile{
		{UserID: "u1", FirstName: "Ada", LastName: "Lovelace", Role: models.RoleCandidate},
		{UserID: "u2", FirstName: "Bob", LastName: "Byte", Role: models.RoleCandidate},
	} {
		require.NoError(t, db.Create(&u).Error)
	}
	return &testEnv{app: app, db: db, referrals: referrals, viral: viral}
}

func (env *testEnv) call(t *testing.T, method, path, userID, roles string, body any) (int, []byte, string) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if roles != "" {
		req.Header.Set("X-User-Roles", roles)
	}
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out, resp.Header.Get("Location")
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestReferralFlow(t *testing.T) {
	env := setupTestEnv(t)

	status, _, _ := env.call(t, "POST", "/referrals/codes", "", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _, _ = env.call(t, "POST", "/referrals/codes", "ghost", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw, _ := env.call(t, "POST", "/referrals/codes", "u1", "", nil)
	require.Equal(t, fiber.StatusCreated, status)
	code := decode[map[string]string](t, raw)["code"]
	assert.Regexp(t, `^ADLO[A-Z0-9]{6}$`, code)

	status, _, _ = env.call(t, "POST", "/referrals/codes", "u1", "", map[string]string{"program_id": "nope"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = env.call(t, "POST", "/referrals/apply", "u2", "", map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw, _ = env.call(t, "POST", "/referrals/apply", "u2", "", map[string]string{"code": code})
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, decode[map[string]bool](t, raw)["applied"])

	status, raw, _ = env.call(t, "POST", "/referrals/apply", "u2", "", map[string]string{"code": code})
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, decode[map[string]bool](t, raw)["applied"])

	status, raw, _ = env.call(t, "GET", "/referrals/me", "u1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	mine := decode[map[string][]models.Referral](t, raw)["referrals"]
	require.Len(t, mine, 1)
	referralID := mine[0].ID

	status, _, _ = env.call(t, "POST", "/referrals/"+referralID+"/complete", "u1", "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw, _ = env.call(t, "POST", "/referrals/"+referralID+"/rewards", "ops", "admin",
		map[string]any{"trigger": "first_hire", "context": map[string]any{"job_id": "j1"}})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, models.ReferralCompleted, decode[models.Referral](t, raw).Status)

	status, _, _ = env.call(t, "POST", "/referrals/"+referralID+"/complete", "ops", "admin", nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, raw, _ = env.call(t, "GET", "/referrals/stats", "u1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := decode[services.ReferralStats](t, raw)
	assert.Equal(t, int64(1), stats.CompletedReferrals)
	assert.Equal(t, 110.0, stats.TotalRewards)
}

func TestCancelReferralOwnership(t *testing.T) {
	env := setupTestEnv(t)

	status, _, _ := env.call(t, "POST", "/referrals/codes", "u1", "", nil)
	require.Equal(t, fiber.StatusCreated, status)
	refs, err := env.referrals.GetUserReferrals(context.Background(), "u1")
	require.NoError(t, err)
	id := refs[0].ID

	status, _, _ = env.call(t, "POST", "/referrals/"+id+"/cancel", "u2", "", nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _, _ = env.call(t, "POST", "/referrals/"+id+"/cancel", "u1", "", map[string]string{"reason": "typo"})
	assert.Equal(t, fiber.StatusOK, status)

	status, _, _ = env.call(t, "POST", "/referrals/"+id+"/cancel", "u1", "", nil)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _, _ = env.call(t, "POST", "/referrals/missing/expire", "ops", "admin", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminCatalogRoutes(t *testing.T) {
	env := setupTestEnv(t)

	def := map[string]any{"name": "Summer Push", "target_audience": "both"}
	status, _, _ := env.call(t, "POST", "/admin/programs", "u1", "", def)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, raw, _ := env.call(t, "POST", "/admin/programs", "ops", "admin", def)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "summer-push", decode[models.ReferralProgram](t, raw).Slug)

	status, _, _ = env.call(t, "POST", "/admin/programs", "ops", "admin", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw, _ = env.call(t, "GET", "/programs", "u1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[map[string][]models.ReferralProgram](t, raw)["programs"], 4)

	status, _, _ = env.call(t, "POST", "/admin/campaigns", "ops", "admin", map[string]any{
		"name":     "Flash",
		"type":     "limited_time",
		"triggers": []map[string]any{{"action": "share_job"}},
	})
	require.Equal(t, fiber.StatusCreated, status)

	status, raw, _ = env.call(t, "GET", "/viral/campaigns", "u1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[map[string][]models.ViralCampaign](t, raw)["campaigns"], 4)
}

func TestViralRoutes(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, env.db.Create(&models.Job{ID: "job-42", Title: "Data Engineer", CompanyName: "Acme"}).Error)

	status, _, _ := env.call(t, "POST", "/viral/actions", "u1", "", map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, raw, _ := env.call(t, "POST", "/viral/actions", "u1", "", map[string]any{
		"action":   "share_job",
		"metadata": map[string]any{"platform": "linkedin", "job_id": "job-42"},
	})
	require.Equal(t, fiber.StatusAccepted, status)
	result := decode[services.TrackResult](t, raw)
	assert.Len(t, result.Rewards, 2)
	assert.Equal(t, []string{"first_share"}, result.Achievements)

	status, raw, _ = env.call(t, "POST", "/viral/share-content", "u1", "", map[string]string{"job_id": "job-42", "platform": "twitter"})
	require.Equal(t, fiber.StatusOK, status)
	content := decode[models.SocialShareContent](t, raw)
	assert.Contains(t, content.URL, "https://jobs.example.com/jobs/data-engineer-job-42?ref=")

	status, _, _ = env.call(t, "POST", "/viral/share-content", "u1", "", map[string]string{"job_id": "job-0"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _, location := env.call(t, "GET", "/viral/share/"+content.TrackingCode, "", "", nil)
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, content.URL, location)

	// postings that are no longer mirrored still land on the bare job id
	require.NoError(t, env.db.Where("id = ?", "job-42").Delete(&models.Job{}).Error)
	status, _, location = env.call(t, "GET", "/viral/share/"+content.TrackingCode, "", "", nil)
	assert.Equal(t, fiber.StatusFound, status)
	assert.Equal(t, "https://jobs.example.com/jobs/job-42?ref="+content.TrackingCode, location)

	status, _, _ = env.call(t, "GET", "/viral/share/unknown", "", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, raw, _ = env.call(t, "GET", "/viral/stats/me", "u1", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	stats := decode[models.UserViralStats](t, raw)
	assert.Equal(t, int64(1), stats.JobShares)
	assert.Equal(t, int64(2), stats.TotalShares)

	status, raw, _ = env.call(t, "GET", "/viral/leaderboard?type=points&limit=5", "u2", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	board := decode[struct {
		Type    string                    `json:"type"`
		Entries []models.LeaderboardEntry `json:"entries"`
	}](t, raw)
	assert.Equal(t, "points", board.Type)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "Ada L.", board.Entries[0].Name)

	status, _, _ = env.call(t, "GET", "/viral/leaderboard?type=karma", "u2", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

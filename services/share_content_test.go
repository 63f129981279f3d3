package services

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"job-board-growth/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedJob(t *testing.T, e *ViralGrowthEngine) models.Job {
	t.Helper()
	job := models.Job{
		ID:          "job-123456789",
		Title:       "senior go engineer",
		CompanyName: "Acme",
		Location:    "Berlin",
		Skills:      []string{"Go", "PostgreSQL", "Kubernetes", "Docker"},
		LogoURL:     "https://cdn.example.com/acme.png",
	}
	require.NoError(t, e.DB.Create(&job).Error)
	return job
}

func TestGenerateSocialShareContent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clock := newTestClock()
	e := newViralEngine(t, db, clock, &Catalog{})
	createUser(t, db, "user-1", "Ada", "Lovelace", models.RoleCandidate, models.UserStats{})
	seedJob(t, e)

	content, err := e.GenerateSocialShareContent(ctx, "job-123456789", "user-1", "LinkedIn")
	require.NoError(t, err)

	wantCode := "user-1_job-12_linkedin_" + strconv.FormatInt(clock.Now().UnixMilli(), 36)
	assert.Equal(t, "linkedin", content.Platform)
	assert.Equal(t, wantCode, content.TrackingCode)
	assert.Equal(t, "Senior Go Engineer at Acme", content.Title)
	assert.Equal(t, "https://jobs.example.com/jobs/senior-go-engineer-job-123456789?ref="+wantCode, content.URL)
	assert.Equal(t, []string{"hiring", "jobs", "careers", "go", "postgresql", "kubernetes"}, content.Hashtags)
	assert.Contains(t, content.Description, "Berlin")
	assert.Equal(t, "https://cdn.example.com/acme.png", content.ImageURL)

	var row models.ShareTrackingCode
	require.NoError(t, db.Where("code = ?", wantCode).First(&row).Error)
	assert.Equal(t, "user-1", row.UserID)
	assert.Equal(t, "job-123456789", row.JobID)

	stats, err := e.GetUserViralStats(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalShares)
	assert.Zero(t, stats.JobShares)
}

func TestGenerateSocialShareContentFallbacks(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clock := newTestClock()
	e := newViralEngine(t, db, clock, &Catalog{})
	seedJob(t, e)

	content, err := e.GenerateSocialShareContent(ctx, "job-123456789", "stranger", "myspace")
	require.NoError(t, err)
	assert.Equal(t, "myspace", content.Platform)
	assert.Equal(t, "Senior Go Engineer at Acme", content.Title, "unknown platforms use the default template")
	assert.True(t, strings.HasPrefix(content.TrackingCode, "strang_job-12_myspace_"))

	clock.Advance(time.Second)
	content, err = e.GenerateSocialShareContent(ctx, "job-123456789", "stranger", "whatsapp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content.CustomMessage, "Hey! A friend thought you'd like this"))
	assert.Equal(t, []string{"go", "postgresql", "kubernetes"}, content.Hashtags)

	clock.Advance(time.Second)
	content, err = e.GenerateSocialShareContent(ctx, "job-123456789", "stranger", "")
	require.NoError(t, err)
	assert.Equal(t, "linkedin", content.Platform)

	_, err = e.GenerateSocialShareContent(ctx, "missing", "stranger", "email")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRecordShareClickAndConversion(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clock := newTestClock()
	e := newViralEngine(t, db, clock, DefaultCatalog())
	seedJob(t, e)

	content, err := e.GenerateSocialShareContent(ctx, "job-123456789", "sharer", "twitter")
	require.NoError(t, err)

	row, err := e.RecordShareClick(ctx, content.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Clicks)
	row, err = e.RecordShareClick(ctx, content.TrackingCode)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row.Clicks)
	assert.Equal(t, content.URL, e.ShareLandingURL(ctx, row))

	_, err = e.RecordShareClick(ctx, "nope")
	assert.ErrorIs(t, err, ErrTrackingCodeNotFound)

	var clicks int64
	require.NoError(t, db.Model(&models.ViralAction{}).
		Where("user_id = ? AND action = ?", "sharer", models.ActionShareClick).Count(&clicks).Error)
	assert.Equal(t, int64(2), clicks)

	_, err = e.CreditShareConversion(ctx, content.TrackingCode, models.ActionShareJob, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.CreditShareConversion(ctx, "nope", models.ActionSignupFromShare, nil)
	assert.ErrorIs(t, err, ErrTrackingCodeNotFound)

	res, err := e.CreditShareConversion(ctx, content.TrackingCode, models.ActionSignupFromShare, map[string]any{"referee_id": "newbie"})
	require.NoError(t, err)
	require.Len(t, res.Rewards, 1)
	assert.Equal(t, "sharer", res.Rewards[0].UserID)
	assert.Equal(t, "newbie", res.Rewards[0].Context["referee_id"])
	assert.Equal(t, content.TrackingCode, res.Rewards[0].Context["tracking_code"])

	stats, err := e.GetUserViralStats(ctx, "sharer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.SignupsFromShares)
}

func TestSkillHashtagsAndLocation(t *testing.T) {
	assert.Equal(t, []string{"nodejs", "go"}, skillHashtags([]string{"Node.js", "", "Go"}))
	assert.Equal(t, "Remote", jobLocation(&models.Job{Remote: true}))
	assert.Equal(t, "Lisbon (remote)", jobLocation(&models.Job{Remote: true, Location: "Lisbon"}))
	assert.Equal(t, "multiple locations", jobLocation(&models.Job{}))
}

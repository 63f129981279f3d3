package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"job-board-growth/models"
	"job-board-growth/services"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func strPtr(s string) *string { return &s }

func TestUserSyncWorkerSyncBatch(t *testing.T) {
	db := setupTestDB(t)
	updated := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	var gotToken, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/profiles", r.URL.Path)
		gotToken = r.Header.Get("X-Service-Token")
		gotSince = r.URL.Query().Get("since")

		ada := RemoteProfile{
			ExternalID:       "u1",
			Email:            "ada@example.com",
			FirstName:        strPtr("Ada"),
			LastName:         strPtr("Lovelace"),
			Role:             "recruiter",
			SubscriptionTier: "professional",
			UpdatedAt:        updated,
		}
		ada.Stats.SuccessfulHires = 6
		ada.Stats.TotalRevenue = 1200
		ada.Engagement = &struct {
			Score         float64 `json:"score"`
			ActiveDays30d int64   `json:"active_days_30d"`
		}{Score: 4.5, ActiveDays30d: 12}

		_ = json.NewEncoder(w).Encode(GetProfileChangesResponse{Users: []RemoteProfile{
			ada,
			{ExternalID: ""},
			{ExternalID: "u2", Role: "candidate", UpdatedAt: updated.Add(-time.Hour)},
		}})
	}))
	defer srv.Close()

	w := NewUserSyncWorker(db, srv.URL, "/api/v1/public/profiles", "svc-token")
	require.NoError(t, w.syncBatch(context.Background()))
	assert.Equal(t, "svc-token", gotToken)
	assert.Equal(t, "0001-01-01T00:00:00Z", gotSince)
	assert.True(t, updated.Equal(w.cursor))

	var profile models.UserProfile
	require.NoError(t, db.Where("user_id = ?", "u1").First(&profile).Error)
	assert.Equal(t, "Ada", profile.FirstName)
	assert.Equal(t, models.RoleRecruiter, profile.Role)

	var stats models.UserStats
	require.NoError(t, db.Where("user_id = ?", "u1").First(&stats).Error)
	assert.Equal(t, int64(6), stats.SuccessfulHires)

	var engagement models.UserEngagementStats
	require.NoError(t, db.Where("user_id = ?", "u1").First(&engagement).Error)
	assert.Equal(t, 4.5, engagement.EngagementScore)

	var count int64
	require.NoError(t, db.Model(&models.UserEngagementStats{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// a second pass updates in place
	require.NoError(t, w.syncBatch(context.Background()))
	require.NoError(t, db.Model(&models.UserProfile{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, updated.Format(time.RFC3339), gotSince)
}

func TestUserSyncWorkerRejectsErrors(t *testing.T) {
	db := setupTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewUserSyncWorker(db, srv.URL, "/profiles", "t")
	err := w.syncBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestJobSyncWorkerSyncBatch(t *testing.T) {
	db := setupTestDB(t)
	updated := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.Job{ID: "job-old", Title: "Old Role", UpdatedAt: updated.Add(-48 * time.Hour)}).Error)

	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/jobs", r.URL.Path)
		assert.Equal(t, "svc-token", r.Header.Get("X-Service-Token"))
		gotSince = r.URL.Query().Get("since")
		_ = json.NewEncoder(w).Encode(GetJobChangesResponse{Jobs: []RemoteJob{
			{ID: "job-1", Title: "Go Engineer", CompanyName: "Acme", Location: "Berlin", Skills: []string{"Go"}, Status: "open", UpdatedAt: updated},
			{ID: "job-old", Status: "closed", UpdatedAt: updated.Add(-time.Hour)},
			{ID: ""},
		}})
	}))
	defer srv.Close()

	w := NewJobSyncWorker(db, srv.URL, "/api/v1/public/jobs", "svc-token")
	w.cursor = w.getLastSyncTime()
	require.NoError(t, w.syncBatch(context.Background()))
	assert.Equal(t, updated.Add(-48*time.Hour).Format(time.RFC3339), gotSince)
	assert.True(t, updated.Equal(w.cursor))

	var job models.Job
	require.NoError(t, db.Where("id = ?", "job-1").First(&job).Error)
	assert.Equal(t, "Go Engineer", job.Title)
	assert.Equal(t, []string{"Go"}, job.Skills)

	var count int64
	require.NoError(t, db.Model(&models.Job{}).Where("id = ?", "job-old").Count(&count).Error)
	assert.Zero(t, count)
}

type fakeRewarder struct {
	mu        sync.Mutex
	byReferee map[string]*models.Referral
	closed    map[string]bool
	failures  int
	attempts  int
	calls     []models.ReferralTrigger
}

func (f *fakeRewarder) FindReferralByReferee(_ context.Context, refereeID string) (*models.Referral, error) {
	if r, ok := f.byReferee[refereeID]; ok {
		return r, nil
	}
	return nil, services.ErrReferralNotFound
}

func (f *fakeRewarder) ProcessReward(_ context.Context, referralID string, trigger models.ReferralTrigger, _ map[string]any) (*models.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("database is locked")
	}
	if f.closed[referralID] {
		return nil, services.ErrInvalidTransition
	}
	f.calls = append(f.calls, trigger)
	return &models.Referral{ID: referralID}, nil
}

type fakeAttributor struct {
	actions []string
}

func (f *fakeAttributor) CreditShareConversion(_ context.Context, code, action string, _ map[string]any) (*services.TrackResult, error) {
	if code == "unknown" {
		return nil, services.ErrTrackingCodeNotFound
	}
	f.actions = append(f.actions, action)
	return &services.TrackResult{}, nil
}

func TestMilestoneApply(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	rewarder := &fakeRewarder{
		byReferee: map[string]*models.Referral{
			"new1": {ID: "r1"},
			"new2": {ID: "r2"},
		},
		closed: map[string]bool{"r2": true},
	}
	shares := &fakeAttributor{}
	client := NewMilestoneSyncClient(db, "http://unused", "t", rewarder, shares)

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	events := []models.MilestoneEvent{
		{ID: "m1", UserID: "new1", Trigger: models.TriggerSignup, ShareCode: "abc", OccurredAt: now},
		{ID: "m2", UserID: "new1", Trigger: models.TriggerFirstHire, OccurredAt: now},
		{ID: "m3", UserID: "new2", Trigger: models.TriggerFirstApplication, ShareCode: "unknown", OccurredAt: now},
		{ID: "m4", UserID: "walk-in", Trigger: models.TriggerSignup, OccurredAt: now},
		{ID: "", UserID: "new1", Trigger: models.TriggerSignup, OccurredAt: now},
	}

	n, err := client.Apply(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []models.ReferralTrigger{models.TriggerSignup, models.TriggerFirstHire}, rewarder.calls)
	assert.Equal(t, []string{models.ActionSignupFromShare}, shares.actions)

	// redelivery of processed events is a no-op
	n, err = client.Apply(ctx, events[:2])
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, rewarder.calls, 2)

	var pending int64
	require.NoError(t, db.Model(&models.MilestoneEvent{}).Where("processed_at IS NULL").Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestMilestoneSyncRetriesFailedEvents(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	var mu sync.Mutex
	served := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		served++
		if served > 1 {
			_, _ = w.Write([]byte(`{"milestones":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"milestones":[{"id":"m1","user_id":"new1","trigger":"first_hire","occurred_at":"2025-03-01T09:00:00Z"}]}`))
	}))
	defer srv.Close()

	rewarder := &fakeRewarder{
		byReferee: map[string]*models.Referral{"new1": {ID: "r1"}},
		failures:  1,
	}
	client := NewMilestoneSyncClient(db, srv.URL, "svc", rewarder, nil)
	since := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	n, err := client.Sync(ctx, since)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, rewarder.attempts)

	var pending int64
	require.NoError(t, db.Model(&models.MilestoneEvent{}).Where("processed_at IS NULL").Count(&pending).Error)
	assert.Equal(t, int64(1), pending)

	// the feed no longer serves m1, the recorded row is retried instead
	n, err = client.Sync(ctx, since.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, rewarder.attempts)
	assert.Equal(t, []models.ReferralTrigger{models.TriggerFirstHire}, rewarder.calls)

	require.NoError(t, db.Model(&models.MilestoneEvent{}).Where("processed_at IS NULL").Count(&pending).Error)
	assert.Zero(t, pending)

	n, err = client.Sync(ctx, since.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, rewarder.attempts)
	assert.Equal(t, 3, served)
}

func TestGetMilestones(t *testing.T) {
	db := setupTestDB(t)
	since := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/public/milestones", r.URL.Path)
		assert.Equal(t, since.Format(time.RFC3339), r.URL.Query().Get("since"))
		assert.Equal(t, "svc", r.Header.Get("X-Service-Token"))
		_, _ = w.Write([]byte(`{"milestones":[{"id":"m1","user_id":"u9","trigger":"first_hire","context":{"job_id":"j1"},"occurred_at":"2025-03-01T09:00:00Z"}]}`))
	}))
	defer srv.Close()

	client := NewMilestoneSyncClient(db, srv.URL, "svc", &fakeRewarder{}, nil)
	events, err := client.GetMilestones(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.TriggerFirstHire, events[0].Trigger)
	assert.Equal(t, "j1", events[0].Context["job_id"])
}

func TestMilestoneApplyAgainstEngine(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	require.NoError(t, db.Create(&models.UserProfile{UserID: "u1", FirstName: "Ada", LastName: "Lovelace", Role: models.RoleCandidate}).Error)

	referrals, err := services.NewReferralEngine(ctx, db, services.DefaultCatalog(), services.EngineOptions{})
	require.NoError(t, err)
	viral, err := services.NewViralGrowthEngine(ctx, db, services.DefaultCatalog(), services.EngineOptions{})
	require.NoError(t, err)

	code, err := referrals.GenerateReferralCode(ctx, "u1", "")
	require.NoError(t, err)
	ok, err := referrals.ApplyReferralCode(ctx, code, "new1")
	require.NoError(t, err)
	require.True(t, ok)

	client := NewMilestoneSyncClient(db, "http://unused", "t", referrals, viral)
	n, err := client.Apply(ctx, []models.MilestoneEvent{
		{ID: "m1", UserID: "new1", Trigger: models.TriggerFirstApplication, OccurredAt: time.Now().UTC()},
		{ID: "m2", UserID: "new1", Trigger: models.TriggerFirstHire, OccurredAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ref, err := referrals.FindReferralByReferee(ctx, "new1")
	require.NoError(t, err)
	assert.Equal(t, models.ReferralCompleted, ref.Status)
	assert.Len(t, ref.RewardsGiven, 3)
}

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"job-board-growth/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
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

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixedSuffix yields the given suffixes in order, repeating the last one
func fixedSuffix(suffixes ...string) func(int) string {
	var mu sync.Mutex
	i := 0
	return func(int) string {
		mu.Lock()
		defer mu.Unlock()
		s := suffixes[i]
		if i < len(suffixes)-1 {
			i++
		}
		return s
	}
}

func createUser(t *testing.T, db *gorm.DB, id, first, last string, role models.UserRole, stats models.UserStats) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserProfile{
		UserID:           id,
		FirstName:        first,
		LastName:         last,
		Role:             role,
		SubscriptionTier: "free",
	}).Error)
	stats.UserID = id
	require.NoError(t, db.Create(&stats).Error)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func newReferralEngine(t *testing.T, db *gorm.DB, clock *testClock, catalog *Catalog, suffix func(int) string) *ReferralEngine {
	t.Helper()
	e, err := NewReferralEngine(context.Background(), db, catalog, EngineOptions{Clock: clock.Now, CodeSuffix: suffix})
	require.NoError(t, err)
	return e
}

func newViralEngine(t *testing.T, db *gorm.DB, clock *testClock, catalog *Catalog) *ViralGrowthEngine {
	t.Helper()
	e, err := NewViralGrowthEngine(context.Background(), db, catalog, EngineOptions{Clock: clock.Now, PublicBaseURL: "https://jobs.example.com/"})
	require.NoError(t, err)
	return e
}

// candidateCatalog has a single candidate program paying signup credit
func candidateCatalog() *Catalog {
	return &Catalog{Programs: []ProgramDefinition{{
		ID:             "candidate_referral",
		Name:           "Candidate Referral Program",
		TargetAudience: models.AudienceCandidate,
		Rewards: []models.ReferralReward{
			{Trigger: models.TriggerSignup, Type: models.RewardCredit, Amount: 10, Currency: "USD", Description: "Signup bonus"},
			{Trigger: models.TriggerFirstHire, Type: models.RewardCash, Amount: 100, Currency: "USD", Description: "Hire bonus"},
		},
		Conditions: []models.ReferralCondition{
			{Type: models.ConditionTimeLimit, Value: "30", Description: "30 days"},
		},
		CompletionTriggers: []models.ReferralTrigger{models.TriggerFirstHire},
	}}}
}

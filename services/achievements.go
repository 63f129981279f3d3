package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"job-board-growth/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// shareActions count towards total_shares and platforms_used
var shareActions = []string{models.ActionShareJob, models.ActionGenerateShareContent}

// meetsUnlockConditions requires every condition to hold; unknown counters never hold
func meetsUnlockConditions(stats *models.UserViralStats, conds []models.UnlockCondition) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		var have int64
		switch c.Type {
		case models.CounterJobShares:
			have = stats.JobShares
		case models.CounterPlatformsUsed:
			have = int64(len(stats.PlatformsUsed))
		case models.CounterApplicationsFromShares:
			have = stats.ApplicationsFromShares
		case models.CounterTotalShares:
			have = stats.TotalShares
		case models.CounterConsecutiveDays:
			have = stats.MaxStreak
		default:
			return false
		}
		if have < c.Threshold {
			return false
		}
	}
	return true
}

// loadViralStats computes a user's viral aggregate from the action log
func loadViralStats(ctx context.Context, db *gorm.DB, userID string) (*models.UserViralStats, error) {
	stats := &models.UserViralStats{UserID: userID, PlatformsUsed: []string{}}
	db = db.WithContext(ctx)

	type actionCount struct {
		Action string
		Total  int64
	}
	var counts []actionCount
	if err := db.Model(&models.ViralAction{}).
		Select("action, COUNT(*) AS total").
		Where("user_id = ?", userID).
		Group("action").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count viral actions: %w", err)
	}
	for _, c := range counts {
		switch c.Action {
		case models.ActionShareJob:
			stats.JobShares = c.Total
			stats.TotalShares += c.Total
		case models.ActionGenerateShareContent:
			stats.TotalShares += c.Total
		case models.ActionApplicationFromShare:
			stats.ApplicationsFromShares = c.Total
		case models.ActionSignupFromShare:
			stats.SignupsFromShares = c.Total
		}
	}

	if err := db.Model(&models.ViralAction{}).
		Distinct("platform").
		Where("user_id = ? AND action IN ? AND platform <> ''", userID, shareActions).
		Order("platform").
		Pluck("platform", &stats.PlatformsUsed).Error; err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}

	var stamps []time.Time
	if err := db.Model(&models.ViralAction{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("created_at", &stamps).Error; err != nil {
		return nil, fmt.Errorf("failed to load action dates: %w", err)
	}
	stats.MaxStreak = longestDailyStreak(stamps)

	var points models.UserPoints
	if err := db.Where("user_id = ?", userID).Limit(1).Find(&points).Error; err != nil {
		return nil, fmt.Errorf("failed to load points: %w", err)
	}
	stats.TotalPoints = points.TotalPoints

	if err := db.Model(&models.UserAchievement{}).Where("user_id = ?", userID).Count(&stats.Achievements).Error; err != nil {
		return nil, fmt.Errorf("failed to count achievements: %w", err)
	}
	return stats, nil
}

// longestDailyStreak is the longest run of consecutive UTC days with activity
func longestDailyStreak(stamps []time.Time) int64 {
	if len(stamps) == 0 {
		return 0
	}
	days := make(map[int64]struct{}, len(stamps))
	for _, t := range stamps {
		days[t.UTC().Unix()/86400] = struct{}{}
	}
	ordered := make([]int64, 0, len(days))
	for d := range days {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	var best, run int64 = 1, 1
	for i := 1; i < len(ordered); i++ {
		if ordered[i] == ordered[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return best
}

// checkAchievements awards every catalog element the user now qualifies for and returns their ids
func (e *ViralGrowthEngine) checkAchievements(ctx context.Context, userID string) ([]string, error) {
	stats, err := loadViralStats(ctx, e.DB, userID)
	if err != nil {
		return nil, err
	}

	var owned []string
	if err := e.DB.WithContext(ctx).Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &owned).Error; err != nil {
		return nil, fmt.Errorf("failed to load achievements: %w", err)
	}
	has := make(map[string]bool, len(owned))
	for _, id := range owned {
		has[id] = true
	}

	var unlocked []string
	for _, el := range e.elementsSnapshot() {
		if has[el.ID] || !meetsUnlockConditions(stats, el.UnlockConditions) {
			continue
		}
		awarded, err := e.awardAchievement(ctx, userID, el)
		if err != nil {
			return unlocked, err
		}
		if awarded {
			unlocked = append(unlocked, el.ID)
			achievementsUnlocked.WithLabelValues(el.ID).Inc()
			log.Printf("🏆 [VIRAL] Achievement unlocked: %s → %s", el.Title, userID)
		}
	}
	return unlocked, nil
}

func (e *ViralGrowthEngine) awardAchievement(ctx context.Context, userID string, el models.GamificationElement) (bool, error) {
	awarded := false
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := models.UserAchievement{
			ID:            uuid.NewString(),
			UserID:        userID,
			AchievementID: el.ID,
			UnlockedAt:    e.now(),
			Metadata:      map[string]any{"points": el.Points, "rarity": string(el.Rarity)},
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if el.Points > 0 {
			if err := e.ledger.AddPoints(tx, userID, el.Points); err != nil {
				return err
			}
		}
		awarded = true
		return e.ledger.Notify(tx, userID, models.NotificationAchievement,
			"Achievement unlocked: "+el.Title, el.Description,
			map[string]any{"achievement_id": el.ID, "points": el.Points, "rarity": string(el.Rarity)})
	})
	if err != nil {
		return false, fmt.Errorf("failed to award achievement %s: %w", el.ID, err)
	}
	return awarded, nil
}

package models

import "time"

// ElementType is the kind of gamification element
type ElementType string

const (
	ElementBadge       ElementType = "badge"
	ElementAchievement ElementType = "achievement"
	ElementLeaderboard ElementType = "leaderboard"
	ElementStreak      ElementType = "streak"
	ElementLevel       ElementType = "level"
)

// Counters an unlock condition can reference
const (
	CounterJobShares              = "job_shares"
	CounterPlatformsUsed          = "platforms_used"
	CounterApplicationsFromShares = "applications_from_shares"
	CounterTotalShares            = "total_shares"
	CounterConsecutiveDays        = "consecutive_days"
)

// UnlockCondition is a named counter that must reach Threshold
type UnlockCondition struct {
	Type      string `json:"type" yaml:"type"`
	Threshold int64  `json:"threshold" yaml:"threshold"`
}

// GamificationElement is a static catalog entry (badge, achievement, ...)
type GamificationElement struct {
	ID               string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type             ElementType       `gorm:"type:varchar(16);not null" json:"type"`
	Title            string            `gorm:"not null" json:"title"`
	Description      string            `json:"description"`
	Icon             string            `gorm:"type:text" json:"icon"`
	Points           int64             `gorm:"default:0" json:"points"`
	Rarity           Rarity            `gorm:"type:varchar(16);default:'common'" json:"rarity"`
	UnlockConditions []UnlockCondition `gorm:"serializer:json" json:"unlock_conditions"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement records that a user holds a gamification element
type UserAchievement struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID        string         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"user_id"`
	AchievementID string         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievement_id"`
	UnlockedAt    time.Time      `json:"unlocked_at"`
	Metadata      map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
}

// UserBadge is a badge handed out by a campaign reward
type UserBadge struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID     string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeID    string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_id"`
	CampaignID string    `gorm:"index" json:"campaign_id,omitempty"`
	AwardedAt  time.Time `json:"awarded_at"`
}

// UserPoints is the running point total per user
type UserPoints struct {
	UserID      string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	TotalPoints int64     `gorm:"default:0;index" json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

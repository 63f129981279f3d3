package models

import "time"

// ViralAction is a raw tracked user action
type ViralAction struct {
	ID        string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string         `gorm:"index:idx_viral_action_user;not null" json:"user_id"`
	Action    string         `gorm:"index:idx_viral_action_user;type:varchar(64);not null" json:"action"`
	Platform  string         `gorm:"type:varchar(32);index" json:"platform,omitempty"`
	Metadata  map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// ViralRewardGiven records a campaign reward handed to a user; rule checks count these
type ViralRewardGiven struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID      string          `gorm:"index:idx_viral_reward_user_campaign;not null" json:"user_id"`
	CampaignID  string          `gorm:"index:idx_viral_reward_user_campaign;not null" json:"campaign_id"`
	RewardType  ViralRewardType `gorm:"type:varchar(32);not null" json:"reward_type"`
	Amount      float64         `json:"amount"`
	Target      string          `json:"target,omitempty"`
	Description string          `json:"description"`
	Action      string          `gorm:"type:varchar(64)" json:"action"`
	Context     map[string]any  `gorm:"serializer:json" json:"context,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// ShareTrackingCode links a generated share to its sharer, job and platform
type ShareTrackingCode struct {
	Code      string    `gorm:"primaryKey;type:varchar(128)" json:"code"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	JobID     string    `gorm:"index;not null" json:"job_id"`
	Platform  string    `gorm:"type:varchar(32)" json:"platform"`
	Clicks    int64     `gorm:"default:0" json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
}

// SocialShareContent is the composed post returned to the client
type SocialShareContent struct {
	Platform      string   `json:"platform"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	Hashtags      []string `json:"hashtags"`
	CustomMessage string   `json:"custom_message"`
	TrackingCode  string   `json:"tracking_code"`
	ImageURL      string   `json:"image_url,omitempty"`
}

// UserViralStats aggregates a user's viral activity
type UserViralStats struct {
	UserID                 string   `json:"user_id"`
	JobShares              int64    `json:"job_shares"`
	TotalShares            int64    `json:"total_shares"`
	PlatformsUsed          []string `json:"platforms_used"`
	ApplicationsFromShares int64    `json:"applications_from_shares"`
	SignupsFromShares      int64    `json:"signups_from_shares"`
	MaxStreak              int64    `json:"max_streak"`
	TotalPoints            int64    `json:"total_points"`
	Achievements           int64    `json:"achievements"`
}

// LeaderboardType selects the ranking metric
type LeaderboardType string

const (
	LeaderboardPoints    LeaderboardType = "points"
	LeaderboardShares    LeaderboardType = "shares"
	LeaderboardReferrals LeaderboardType = "referrals"
)

// LeaderboardEntry is one ranked row
type LeaderboardEntry struct {
	Rank   int     `json:"rank"`
	UserID string  `json:"user_id"`
	Name   string  `json:"name,omitempty"`
	Score  float64 `json:"score"`
}

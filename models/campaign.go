package models

import "time"

// CampaignType classifies a viral campaign
type CampaignType string

const (
	CampaignSocialShare       CampaignType = "social_share"
	CampaignMilestoneBonus    CampaignType = "milestone_bonus"
	CampaignContest           CampaignType = "contest"
	CampaignLimitedTime       CampaignType = "limited_time"
	CampaignAchievementUnlock CampaignType = "achievement_unlock"
)

// Well-known viral actions
const (
	ActionShareJob             = "share_job"
	ActionSignupFromShare      = "signup_from_share"
	ActionApplicationFromShare = "application_from_share"
	ActionGenerateShareContent = "generate_share_content"
	ActionShareClick           = "share_click"
)

// ViralRewardType is what a campaign pays out
type ViralRewardType string

const (
	ViralRewardPoints        ViralRewardType = "points"
	ViralRewardCredit        ViralRewardType = "credit"
	ViralRewardBadge         ViralRewardType = "badge"
	ViralRewardFeatureUnlock ViralRewardType = "feature_unlock"
)

// Rarity of a reward or gamification element
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// RuleType names a throttling predicate on a campaign
type RuleType string

const (
	RuleMaxRewardsPerUser RuleType = "max_rewards_per_user"
	RuleCooldownPeriod    RuleType = "cooldown_period" // seconds
	RuleUniqueParticipant RuleType = "unique_participant"
	RuleMinEngagement     RuleType = "min_engagement"
)

// ViralTrigger matches a tracked action, optionally restricted to a platform
type ViralTrigger struct {
	Action    string `json:"action" yaml:"action"`
	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Threshold int    `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// ViralReward is paid when a trigger listed in Triggers matches.
// An empty Triggers list means any matched trigger unlocks it.
type ViralReward struct {
	Type        ViralRewardType `json:"type" yaml:"type"`
	Amount      float64         `json:"amount,omitempty" yaml:"amount,omitempty"`
	Target      string          `json:"target,omitempty" yaml:"target,omitempty"` // badge id or feature name
	Description string          `json:"description" yaml:"description"`
	Rarity      Rarity          `json:"rarity,omitempty" yaml:"rarity,omitempty"`
	Triggers    []string        `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// UnlockedBy reports whether a matched trigger action unlocks this reward
func (r ViralReward) UnlockedBy(action string) bool {
	if len(r.Triggers) == 0 {
		return true
	}
	for _, t := range r.Triggers {
		if t == action {
			return true
		}
	}
	return false
}

// ViralRule throttles reward distribution
type ViralRule struct {
	Type        RuleType `json:"type" yaml:"type"`
	Value       float64  `json:"value" yaml:"value"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// CampaignMetrics holds goals or running counters of a campaign
type CampaignMetrics struct {
	Participants   int64   `json:"participants" yaml:"participants"`
	Shares         int64   `json:"shares" yaml:"shares"`
	Signups        int64   `json:"signups" yaml:"signups"`
	ConversionRate float64 `json:"conversion_rate" yaml:"conversion_rate"`
}

// ViralCampaign is a time-boxed set of triggers, rewards and rules
type ViralCampaign struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Type           CampaignType    `gorm:"type:varchar(32);not null" json:"type"`
	Description    string          `gorm:"type:text" json:"description"`
	Triggers       []ViralTrigger  `gorm:"serializer:json" json:"triggers"`
	Rewards        []ViralReward   `gorm:"serializer:json" json:"rewards"`
	Rules          []ViralRule     `gorm:"serializer:json" json:"rules"`
	StartDate      time.Time       `gorm:"index" json:"start_date"`
	EndDate        time.Time       `gorm:"index" json:"end_date"`
	IsActive       bool            `gorm:"index" json:"is_active"`
	TargetMetrics  CampaignMetrics `gorm:"serializer:json" json:"target_metrics"`
	CurrentMetrics CampaignMetrics `gorm:"serializer:json" json:"current_metrics"`

	Timestamps
}

// Running reports whether the campaign accepts actions at now
func (c *ViralCampaign) Running(now time.Time) bool {
	if c == nil || !c.IsActive {
		return false
	}
	if now.Before(c.StartDate) {
		return false
	}
	return c.EndDate.IsZero() || now.Before(c.EndDate)
}

package models

import "time"

// ReferralStatus is the lifecycle state of a referral
type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralExpired   ReferralStatus = "expired"
	ReferralCancelled ReferralStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed
func (s ReferralStatus) Terminal() bool {
	return s == ReferralCompleted || s == ReferralExpired || s == ReferralCancelled
}

// GivenReward is one entry of a referral's reward ledger (idempotency guard)
type GivenReward struct {
	Trigger ReferralTrigger    `json:"trigger"`
	Type    ReferralRewardType `json:"type"`
	Amount  float64            `json:"amount"`
	GivenAt time.Time          `json:"given_at"`
}

// Referral tracks a referrer → referee relationship identified by a code
type Referral struct {
	ID           string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ReferrerID   string         `gorm:"index;not null" json:"referrer_id"`
	RefereeID    *string        `gorm:"uniqueIndex:idx_referrals_referee,where:referee_id IS NOT NULL" json:"referee_id,omitempty"`
	Code         string         `gorm:"uniqueIndex;not null" json:"code"`
	ProgramID    string         `gorm:"index;not null" json:"program_id"`
	Status       ReferralStatus `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"`
	RewardsGiven []GivenReward  `gorm:"serializer:json" json:"rewards_given"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	ExpiredAt    *time.Time     `json:"expired_at,omitempty"`
	CancelledAt  *time.Time     `json:"cancelled_at,omitempty"`
	Metadata     map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`

	Timestamps
}

// HasReward reports whether a (trigger, type) reward was already granted
func (r *Referral) HasReward(trigger ReferralTrigger, t ReferralRewardType) bool {
	for _, g := range r.RewardsGiven {
		if g.Trigger == trigger && g.Type == t {
			return true
		}
	}
	return false
}

// ReferralTransaction is the audit log row written for every referral payout
type ReferralTransaction struct {
	ID         string             `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ReferralID string             `gorm:"index;not null" json:"referral_id"`
	UserID     string             `gorm:"index;not null" json:"user_id"`
	Trigger    ReferralTrigger    `gorm:"type:varchar(32)" json:"trigger"`
	RewardType ReferralRewardType `gorm:"type:varchar(32)" json:"reward_type"`
	Amount     float64            `json:"amount"`
	Currency   string             `gorm:"type:varchar(8)" json:"currency,omitempty"`
	Context    map[string]any     `gorm:"serializer:json" json:"context,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

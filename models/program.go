package models

import "time"

// AudienceType restricts which users a referral program is offered to
type AudienceType string

const (
	AudienceCandidate AudienceType = "candidate"
	AudienceRecruiter AudienceType = "recruiter"
	AudienceBoth      AudienceType = "both"
)

// ReferralTrigger is a referee milestone that can unlock a reward
type ReferralTrigger string

const (
	TriggerSignup           ReferralTrigger = "signup"
	TriggerFirstApplication ReferralTrigger = "first_application"
	TriggerFirstHire        ReferralTrigger = "first_hire"
	TriggerSubscription     ReferralTrigger = "subscription"
	TriggerFirstJobPost     ReferralTrigger = "first_job_post"
)

// ReferralRewardType is what the referrer actually receives
type ReferralRewardType string

const (
	RewardCredit               ReferralRewardType = "credit"
	RewardCash                 ReferralRewardType = "cash"
	RewardSubscriptionDiscount ReferralRewardType = "subscription_discount"
	RewardFeatureUnlock        ReferralRewardType = "feature_unlock"
)

// ConditionType names an eligibility predicate evaluated against a user's profile/stats
type ConditionType string

const (
	ConditionMinApplications  ConditionType = "min_applications"
	ConditionMinHires         ConditionType = "min_hires"
	ConditionTimeLimit        ConditionType = "time_limit" // days between code creation and redemption
	ConditionUserType         ConditionType = "user_type"
	ConditionSubscriptionTier ConditionType = "subscription_tier"
)

// ReferralReward is an immutable (trigger → reward) rule of a program
type ReferralReward struct {
	Trigger     ReferralTrigger    `json:"trigger" yaml:"trigger"`
	Type        ReferralRewardType `json:"type" yaml:"type"`
	Amount      float64            `json:"amount" yaml:"amount"`
	Currency    string             `json:"currency,omitempty" yaml:"currency,omitempty"`
	Description string             `json:"description" yaml:"description"`
}

// ReferralCondition is an eligibility predicate. Value is either a number
// (min_*, time_limit) or a string (user_type, subscription_tier).
type ReferralCondition struct {
	Type        ConditionType `json:"type" yaml:"type"`
	Value       string        `json:"value" yaml:"value"`
	Description string        `json:"description" yaml:"description"`
}

// ReferralProgram is a named reward schedule with eligibility conditions
type ReferralProgram struct {
	ID                 string              `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Slug               string              `gorm:"uniqueIndex;not null" json:"slug"`
	Name               string              `gorm:"not null" json:"name"`
	Description        string              `gorm:"type:text" json:"description"`
	TargetAudience     AudienceType        `gorm:"type:varchar(16);not null" json:"target_audience"`
	VIP                bool                `gorm:"default:false" json:"vip"`
	Rewards            []ReferralReward    `gorm:"serializer:json" json:"rewards"`
	Conditions         []ReferralCondition `gorm:"serializer:json" json:"conditions"`
	CompletionTriggers []ReferralTrigger   `gorm:"serializer:json" json:"completion_triggers"`
	IsActive           bool                `gorm:"index" json:"is_active"`
	ValidFrom          time.Time           `json:"valid_from"`
	ValidUntil         *time.Time          `json:"valid_until,omitempty"`
	MaxRedemptions     *int                `json:"max_redemptions,omitempty"`
	CurrentRedemptions int                 `gorm:"default:0" json:"current_redemptions"`
	SortOrder          int                 `gorm:"default:0" json:"sort_order"`

	Timestamps
}

// Available reports whether the program can issue or honour codes at now
func (p *ReferralProgram) Available(now time.Time) bool {
	if p == nil || !p.IsActive {
		return false
	}
	if !p.ValidFrom.IsZero() && now.Before(p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && !now.Before(*p.ValidUntil) {
		return false
	}
	return true
}

// Exhausted reports whether the redemption cap has been reached
func (p *ReferralProgram) Exhausted() bool {
	return p.MaxRedemptions != nil && p.CurrentRedemptions >= *p.MaxRedemptions
}

// CompletesOn reports whether trigger moves a referral of this program to completed
func (p *ReferralProgram) CompletesOn(trigger ReferralTrigger) bool {
	for _, t := range p.CompletionTriggers {
		if t == trigger {
			return true
		}
	}
	return false
}

// RewardsFor returns the program's rewards for a trigger, in declaration order
func (p *ReferralProgram) RewardsFor(trigger ReferralTrigger) []ReferralReward {
	var out []ReferralReward
	for _, r := range p.Rewards {
		if r.Trigger == trigger {
			out = append(out, r)
		}
	}
	return out
}

// Condition returns the first condition of the given type
func (p *ReferralProgram) Condition(t ConditionType) (ReferralCondition, bool) {
	for _, c := range p.Conditions {
		if c.Type == t {
			return c, true
		}
	}
	return ReferralCondition{}, false
}

// models/milestone_event.go
package models

import "time"

// MilestoneEvent mirrors a referee milestone received from the sync service.
// Table name: milestone_events
type MilestoneEvent struct {
	ID          string          `gorm:"primaryKey;type:varchar(64);not null" json:"id"`
	UserID      string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Trigger     ReferralTrigger `gorm:"type:varchar(32);not null" json:"trigger"`
	ShareCode   string          `gorm:"type:varchar(128)" json:"share_code,omitempty"` // tracked share the user arrived through
	Context     map[string]any  `gorm:"serializer:json" json:"context,omitempty"`
	OccurredAt  time.Time       `gorm:"not null;index" json:"occurred_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

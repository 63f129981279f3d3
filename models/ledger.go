package models

import "time"

// UserCredit is a platform-credit ledger entry
type UserCredit struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Amount    float64   `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"type:varchar(8);default:'USD'" json:"currency"`
	Source    string    `gorm:"type:varchar(32);index" json:"source"` // referral, viral_campaign
	SourceID  string    `gorm:"index" json:"source_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentStatus tracks a queued cash payout
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// PendingPayment is a cash reward waiting for the payments collaborator
type PendingPayment struct {
	ID        string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string        `gorm:"index;not null" json:"user_id"`
	Amount    float64       `gorm:"not null" json:"amount"`
	Currency  string        `gorm:"type:varchar(8);default:'USD'" json:"currency"`
	Status    PaymentStatus `gorm:"type:varchar(16);index;default:'pending'" json:"status"`
	Reason    string        `json:"reason"`
	SourceID  string        `gorm:"index" json:"source_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// UserDiscount is a percentage discount applied to the next subscription invoices
type UserDiscount struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	Percentage float64   `gorm:"not null" json:"percentage"`
	Reason     string    `json:"reason"`
	SourceID   string    `gorm:"index" json:"source_id"`
	ValidUntil time.Time `gorm:"index" json:"valid_until"`
	Used       bool      `gorm:"default:false" json:"used"`
	CreatedAt  time.Time `json:"created_at"`
}

// FeatureUnlock grants a premium feature until ExpiresAt
type FeatureUnlock struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string    `gorm:"index:idx_feature_user;not null" json:"user_id"`
	Feature   string    `gorm:"index:idx_feature_user;not null" json:"feature"`
	Source    string    `gorm:"type:varchar(32)" json:"source"`
	SourceID  string    `gorm:"index" json:"source_id"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationType categorises a user notification
type NotificationType string

const (
	NotificationReferralReward NotificationType = "referral_reward"
	NotificationViralReward    NotificationType = "viral_reward"
	NotificationAchievement    NotificationType = "achievement"
	NotificationReferral       NotificationType = "referral_status"
)

// Notification is persisted for the delivery collaborator and streamed over SSE
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID    string           `gorm:"index;not null" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	Data      map[string]any   `gorm:"serializer:json" json:"data,omitempty"`
	Read      bool             `gorm:"default:false;index" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

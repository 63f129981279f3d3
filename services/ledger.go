package services

import (
	"fmt"
	"time"

	"job-board-growth/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReferralFeatureBundle is unlocked by feature_unlock referral rewards
var ReferralFeatureBundle = []string{"premium_search", "priority_listing", "advanced_analytics"}

const (
	DiscountValidity      = 365 * 24 * time.Hour
	FeatureUnlockDuration = 90 * 24 * time.Hour
)

// Ledger holds the reward-application primitives shared by both engines.
// Every method writes through the caller's transaction.
type Ledger struct {
	now func() time.Time
}

func NewLedger(clock func() time.Time) *Ledger {
	if clock == nil {
		clock = utcNow
	}
	return &Ledger{now: clock}
}

func utcNow() time.Time { return time.Now().UTC() }

func (l *Ledger) AddCredit(tx *gorm.DB, userID string, amount float64, currency, source, sourceID, reason string) error {
	if currency == "" {
		currency = "USD"
	}
	credit := models.UserCredit{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Source:    source,
		SourceID:  sourceID,
		Reason:    reason,
		CreatedAt: l.now(),
	}
	if err := tx.Create(&credit).Error; err != nil {
		return fmt.Errorf("failed to add credit: %w", err)
	}
	return nil
}

// EnqueueCashPayment queues a payout; the payments collaborator settles it
func (l *Ledger) EnqueueCashPayment(tx *gorm.DB, userID string, amount float64, currency, sourceID, reason string) error {
	if currency == "" {
		currency = "USD"
	}
	now := l.now()
	payment := models.PendingPayment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Currency:  currency,
		Status:    models.PaymentPending,
		Reason:    reason,
		SourceID:  sourceID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return fmt.Errorf("failed to enqueue payment: %w", err)
	}
	return nil
}

func (l *Ledger) AddSubscriptionDiscount(tx *gorm.DB, userID string, percentage float64, sourceID, reason string) error {
	now := l.now()
	discount := models.UserDiscount{
		ID:         uuid.NewString(),
		UserID:     userID,
		Percentage: percentage,
		Reason:     reason,
		SourceID:   sourceID,
		ValidUntil: now.Add(DiscountValidity),
		CreatedAt:  now,
	}
	if err := tx.Create(&discount).Error; err != nil {
		return fmt.Errorf("failed to add discount: %w", err)
	}
	return nil
}

// UnlockFeatures grants each feature until now+duration
func (l *Ledger) UnlockFeatures(tx *gorm.DB, userID string, features []string, duration time.Duration, source, sourceID string) error {
	now := l.now()
	for _, f := range features {
		unlock := models.FeatureUnlock{
			ID:        uuid.NewString(),
			UserID:    userID,
			Feature:   f,
			Source:    source,
			SourceID:  sourceID,
			ExpiresAt: now.Add(duration),
			CreatedAt: now,
		}
		if err := tx.Create(&unlock).Error; err != nil {
			return fmt.Errorf("failed to unlock feature %s: %w", f, err)
		}
	}
	return nil
}

// AwardBadge is idempotent per (user, badge); it reports whether a new badge was created
func (l *Ledger) AwardBadge(tx *gorm.DB, userID, badgeID, campaignID string) (bool, error) {
	var count int64
	if err := tx.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	badge := models.UserBadge{
		ID:         uuid.NewString(),
		UserID:     userID,
		BadgeID:    badgeID,
		CampaignID: campaignID,
		AwardedAt:  l.now(),
	}
	if err := tx.Create(&badge).Error; err != nil {
		return false, fmt.Errorf("failed to award badge: %w", err)
	}
	return true, nil
}

// AddPoints upserts the user's running point total
func (l *Ledger) AddPoints(tx *gorm.DB, userID string, points int64) error {
	now := l.now()
	row := models.UserPoints{UserID: userID, TotalPoints: points, UpdatedAt: now}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_points": gorm.Expr("user_points.total_points + ?", points),
			"updated_at":   now,
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to add points: %w", err)
	}
	return nil
}

// Notify persists a notification; delivery is handled by the stream and the notification collaborator
func (l *Ledger) Notify(tx *gorm.DB, userID string, kind models.NotificationType, title, message string, data map[string]any) error {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: l.now(),
	}
	if err := tx.Create(&n).Error; err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

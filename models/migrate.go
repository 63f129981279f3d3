package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table the service owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ReferralProgram{},
		&Referral{},
		&ReferralTransaction{},
		&UserCredit{},
		&PendingPayment{},
		&UserDiscount{},
		&FeatureUnlock{},
		&Notification{},
		&ViralCampaign{},
		&GamificationElement{},
		&ViralAction{},
		&ViralRewardGiven{},
		&UserAchievement{},
		&UserPoints{},
		&UserBadge{},
		&ShareTrackingCode{},
		&UserProfile{},
		&UserStats{},
		&UserEngagementStats{},
		&Job{},
		&MilestoneEvent{},
	)
}

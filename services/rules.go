package services

import (
	"errors"
	"log"
	"time"

	"job-board-growth/models"

	"gorm.io/gorm"
)

// RewardCountWindow bounds max_rewards_per_user
const RewardCountWindow = 30 * 24 * time.Hour

// matchingTriggers returns the campaign triggers an action satisfies.
// share_job must also match the trigger's platform when one is set.
func matchingTriggers(campaign *models.ViralCampaign, act *models.ViralAction) []models.ViralTrigger {
	var out []models.ViralTrigger
	for _, t := range campaign.Triggers {
		if t.Action != act.Action {
			continue
		}
		if act.Action == models.ActionShareJob && t.Platform != "" && t.Platform != act.Platform {
			continue
		}
		out = append(out, t)
	}
	return out
}

// thresholdReached checks a trigger's Threshold against the user's count of that action
func thresholdReached(tx *gorm.DB, t models.ViralTrigger, act *models.ViralAction) (bool, error) {
	if t.Threshold <= 1 {
		return true, nil
	}
	var count int64
	if err := tx.Model(&models.ViralAction{}).
		Where("user_id = ? AND action = ?", act.UserID, act.Action).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count >= int64(t.Threshold), nil
}

// checkCampaignRules evaluates every throttling rule; all must pass.
// Unknown rule types fail closed.
func (e *ViralGrowthEngine) checkCampaignRules(tx *gorm.DB, userID string, campaign *models.ViralCampaign, act *models.ViralAction) (bool, error) {
	now := e.now()
	for _, rule := range campaign.Rules {
		switch rule.Type {
		case models.RuleMaxRewardsPerUser:
			var count int64
			if err := tx.Model(&models.ViralRewardGiven{}).
				Where("user_id = ? AND campaign_id = ? AND created_at >= ?", userID, campaign.ID, now.Add(-RewardCountWindow)).
				Count(&count).Error; err != nil {
				return false, err
			}
			if float64(count) >= rule.Value {
				return false, nil
			}

		case models.RuleCooldownPeriod:
			since := now.Add(-time.Duration(rule.Value * float64(time.Second)))
			var count int64
			if err := tx.Model(&models.ViralAction{}).
				Where("user_id = ? AND action = ? AND created_at >= ? AND id <> ?", userID, act.Action, since, act.ID).
				Count(&count).Error; err != nil {
				return false, err
			}
			if count > 0 {
				return false, nil
			}

		case models.RuleUniqueParticipant:
			if rule.Value <= 0 {
				continue
			}
			var count int64
			if err := tx.Model(&models.ViralRewardGiven{}).
				Where("user_id = ? AND campaign_id = ?", userID, campaign.ID).
				Count(&count).Error; err != nil {
				return false, err
			}
			if count > 0 {
				return false, nil
			}

		case models.RuleMinEngagement:
			var stats models.UserEngagementStats
			err := tx.Where("user_id = ?", userID).First(&stats).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			if stats.EngagementScore < rule.Value {
				return false, nil
			}

		default:
			log.Printf("⚠️ [VIRAL] Campaign %s has unknown rule %q, failing closed", campaign.ID, rule.Type)
			return false, nil
		}
	}
	return true, nil
}

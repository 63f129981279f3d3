package services

import (
	"log"
	"strconv"
	"strings"
	"time"

	"job-board-growth/models"
)

// VIP thresholds for selectProgramForUser
const (
	VIPMinSuccessfulHires = 5
	VIPMinRevenue         = 10000.0
)

// subscription tiers in ascending order
var tierRank = map[string]int{
	"free":         0,
	"basic":        1,
	"professional": 2,
	"enterprise":   3,
}

// checkUserMeetsConditions evaluates eligibility predicates. time_limit
// constrains redemption, not issuance, so it passes here. Unknown
// condition types fail closed.
func checkUserMeetsConditions(conditions []models.ReferralCondition, profile *models.UserProfile, stats *models.UserStats) bool {
	for _, c := range conditions {
		if !conditionHolds(c, profile, stats) {
			return false
		}
	}
	return true
}

func conditionHolds(c models.ReferralCondition, profile *models.UserProfile, stats *models.UserStats) bool {
	switch c.Type {
	case models.ConditionMinApplications:
		n, ok := conditionInt(c)
		return ok && stats.TotalApplications >= n
	case models.ConditionMinHires:
		n, ok := conditionInt(c)
		return ok && stats.TotalHires >= n
	case models.ConditionUserType:
		want := strings.ToLower(strings.TrimSpace(c.Value))
		return want == string(models.AudienceBoth) || want == string(profile.Role)
	case models.ConditionSubscriptionTier:
		return tierAtLeast(profile.SubscriptionTier, c.Value)
	case models.ConditionTimeLimit:
		return true
	default:
		log.Printf("⚠️ [REFERRAL] Unknown condition type %q, failing closed", c.Type)
		return false
	}
}

func conditionInt(c models.ReferralCondition) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
	if err != nil {
		log.Printf("⚠️ [REFERRAL] Condition %s has non-numeric value %q", c.Type, c.Value)
		return 0, false
	}
	return n, true
}

func tierAtLeast(have, want string) bool {
	have = strings.ToLower(strings.TrimSpace(have))
	want = strings.ToLower(strings.TrimSpace(want))
	hr, hok := tierRank[have]
	wr, wok := tierRank[want]
	if hok && wok {
		return hr >= wr
	}
	return have == want
}

// redemptionWindow returns the program's time_limit, if any
func redemptionWindow(p *models.ReferralProgram) (time.Duration, bool) {
	c, ok := p.Condition(models.ConditionTimeLimit)
	if !ok {
		return 0, false
	}
	days, ok := conditionInt(c)
	if !ok {
		return 0, false
	}
	return time.Duration(days) * 24 * time.Hour, true
}

// redemptionExpired reports whether the referral is past its program's time_limit at now
func redemptionExpired(p *models.ReferralProgram, r *models.Referral, now time.Time) bool {
	window, ok := redemptionWindow(p)
	if !ok {
		return false
	}
	return now.Sub(r.CreatedAt) > window
}

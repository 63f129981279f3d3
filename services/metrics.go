package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	codesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth",
		Name:      "referral_codes_generated_total",
		Help:      "Referral codes issued, by program.",
	}, []string{"program"})

	codesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth",
		Name:      "referral_codes_applied_total",
		Help:      "Referral code redemption attempts, by outcome.",
	}, []string{"outcome"})

	rewardsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth",
		Name:      "rewards_granted_total",
		Help:      "Rewards granted, by engine and reward type.",
	}, []string{"engine", "type"})

	viralActionsTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth",
		Name:      "viral_actions_tracked_total",
		Help:      "Viral actions tracked, by action.",
	}, []string{"action"})

	achievementsUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "growth",
		Name:      "achievements_unlocked_total",
		Help:      "Gamification elements unlocked, by element.",
	}, []string{"element"})
)

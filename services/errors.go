package services

import "errors"

var (
	ErrUserNotFound            = errors.New("User not found")
	ErrInvalidProgram          = errors.New("Invalid or inactive referral program")
	ErrConditionsNotMet        = errors.New("User does not meet program requirements")
	ErrCodeGenerationExhausted = errors.New("Unable to generate unique referral code")
	ErrProgramExhausted        = errors.New("Referral program has reached its redemption limit")
	ErrReferralNotFound        = errors.New("Referral not found")
	ErrInvalidTransition       = errors.New("Referral is no longer pending")
	ErrJobNotFound             = errors.New("Job not found")
	ErrCampaignNotFound        = errors.New("Campaign not found")
	ErrTrackingCodeNotFound    = errors.New("Tracking code not found")
	ErrInvalidInput            = errors.New("invalid input")
)

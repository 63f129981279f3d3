package models

import (
	"time"
)

// UserRole as reported by the identity service
type UserRole string

const (
	RoleCandidate UserRole = "candidate"
	RoleRecruiter UserRole = "recruiter"
)

// UserProfile is a local snapshot of identity data used for eligibility.
// Populated by the user sync worker from the profile service.
type UserProfile struct {
	UserID           string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	Email            string    `json:"email,omitempty"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Role             UserRole  `gorm:"type:varchar(16);index" json:"role"`
	SubscriptionTier string    `gorm:"type:varchar(32)" json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DisplayName is "First L." for leaderboards
func (p UserProfile) DisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + string([]rune(p.LastName)[:1]) + "."
}

// UserStats holds the hire/revenue counters the identity service exposes
type UserStats struct {
	UserID            string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	TotalApplications int64     `gorm:"default:0" json:"total_applications"`
	TotalHires        int64     `gorm:"default:0" json:"total_hires"`
	SuccessfulHires   int64     `gorm:"default:0" json:"successful_hires"`
	TotalRevenue      float64   `gorm:"default:0" json:"total_revenue"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UserEngagementStats is the engagement score consumed by min_engagement rules
type UserEngagementStats struct {
	UserID          string    `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	EngagementScore float64   `gorm:"default:0" json:"engagement_score"`
	ActiveDays30d   int64     `gorm:"default:0" json:"active_days_30d"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Job is a snapshot of a job posting used to compose share content
type Job struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	CompanyName string    `json:"company_name"`
	Location    string    `json:"location"`
	Remote      bool      `json:"remote"`
	SalaryMin   *int64    `json:"salary_min,omitempty"`
	SalaryMax   *int64    `json:"salary_max,omitempty"`
	Skills      []string  `gorm:"serializer:json" json:"skills"`
	LogoURL     string    `json:"logo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

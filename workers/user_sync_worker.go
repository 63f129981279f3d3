// workers/user_sync_worker.go
package workers

import (
	"context"
	"log"
	"net/http"
	"time"

	"job-board-growth/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches one entry of the profile service's change feed
type RemoteProfile struct {
	ExternalID       string    `json:"external_id"`
	Email            string    `json:"email"`
	FirstName        *string   `json:"first_name,omitempty"`
	LastName         *string   `json:"last_name,omitempty"`
	Role             string    `json:"role"`
	SubscriptionTier string    `json:"subscription_tier"`
	Stats            struct {
		TotalApplications int64   `json:"total_applications"`
		TotalHires        int64   `json:"total_hires"`
		SuccessfulHires   int64   `json:"successful_hires"`
		TotalRevenue      float64 `json:"total_revenue"`
	} `json:"stats"`
	Engagement *struct {
		Score         float64 `json:"score"`
		ActiveDays30d int64   `json:"active_days_30d"`
	} `json:"engagement,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the feed response
type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// UserSyncWorker mirrors profiles, hire/revenue stats and engagement scores
// from the identity service into the local eligibility tables.
type UserSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	cursor       time.Time
}

func NewUserSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *UserSyncWorker {
	return &UserSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *UserSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting User Sync Worker (sync-service → user_profiles)…")
	go w.run(ctx)
}

func (w *UserSyncWorker) run(ctx context.Context) {
	w.cursor = w.getLastSyncTime()
	if err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ [SYNC] Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ [SYNC] Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ User Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime is the newest mirrored profile update, or the zero time
func (w *UserSyncWorker) getLastSyncTime() time.Time {
	var latest models.UserProfile
	if err := w.db.Order("updated_at DESC").Limit(1).Find(&latest).Error; err != nil {
		return time.Time{}
	}
	return latest.UpdatedAt
}

// syncBatch fetches profile changes since the cursor and upserts them
func (w *UserSyncWorker) syncBatch(ctx context.Context) error {
	var response GetProfileChangesResponse
	if err := getFeed(ctx, w.httpClient, w.baseURL, w.endpointPath, w.serviceToken, w.cursor, &response); err != nil {
		return err
	}
	if len(response.Users) == 0 {
		return nil
	}

	var upserted, failed int
	for _, remote := range response.Users {
		if remote.ExternalID == "" {
			continue
		}
		if err := w.upsert(remote); err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert profile external_id=%q: %v", remote.ExternalID, err)
			continue
		}
		upserted++
		if remote.UpdatedAt.After(w.cursor) {
			w.cursor = remote.UpdatedAt
		}
	}

	log.Printf("[SYNC] ✅ Synced %d profile(s) (%d upserted, %d errors), cursor=%s",
		len(response.Users), upserted, failed, w.cursor.Format(time.RFC3339))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (w *UserSyncWorker) upsert(remote RemoteProfile) error {
	return w.db.Transaction(func(tx *gorm.DB) error {
		profile := models.UserProfile{
			UserID:           remote.ExternalID,
			Email:            remote.Email,
			FirstName:        deref(remote.FirstName),
			LastName:         deref(remote.LastName),
			Role:             models.UserRole(remote.Role),
			SubscriptionTier: remote.SubscriptionTier,
			CreatedAt:        remote.CreatedAt,
			UpdatedAt:        remote.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "first_name", "last_name", "role", "subscription_tier", "updated_at",
			}),
		}).Create(&profile).Error; err != nil {
			return err
		}

		stats := models.UserStats{
			UserID:            remote.ExternalID,
			TotalApplications: remote.Stats.TotalApplications,
			TotalHires:        remote.Stats.TotalHires,
			SuccessfulHires:   remote.Stats.SuccessfulHires,
			TotalRevenue:      remote.Stats.TotalRevenue,
			UpdatedAt:         remote.UpdatedAt,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_applications", "total_hires", "successful_hires", "total_revenue", "updated_at",
			}),
		}).Create(&stats).Error; err != nil {
			return err
		}

		if remote.Engagement == nil {
			return nil
		}
		engagement := models.UserEngagementStats{
			UserID:          remote.ExternalID,
			EngagementScore: remote.Engagement.Score,
			ActiveDays30d:   remote.Engagement.ActiveDays30d,
			UpdatedAt:       remote.UpdatedAt,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"engagement_score", "active_days_30d", "updated_at"}),
		}).Create(&engagement).Error
	})
}

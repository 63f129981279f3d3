package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"job-board-growth/models"
	"job-board-growth/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const retryBatchSize = 100

// ReferralRewarder is the part of the referral engine the milestone feed drives
type ReferralRewarder interface {
	FindReferralByReferee(ctx context.Context, refereeID string) (*models.Referral, error)
	ProcessReward(ctx context.Context, referralID string, trigger models.ReferralTrigger, rctx map[string]any) (*models.Referral, error)
}

// ShareAttributor credits conversions that arrived through a tracked share
type ShareAttributor interface {
	CreditShareConversion(ctx context.Context, code, action string, metadata map[string]any) (*services.TrackResult, error)
}

// MilestoneSyncClient polls the milestone feed and pays out referral rewards
type MilestoneSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
	Referrals  ReferralRewarder
	Shares     ShareAttributor
}

func NewMilestoneSyncClient(db *gorm.DB, baseURL, token string, referrals ReferralRewarder, shares ShareAttributor) *MilestoneSyncClient {
	return &MilestoneSyncClient{
		BaseURL:   baseURL,
		Token:     token,
		DB:        db,
		Referrals: referrals,
		Shares:    shares,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *MilestoneSyncClient) GetMilestones(ctx context.Context, since time.Time) ([]models.MilestoneEvent, error) {
	var response struct {
		Milestones []models.MilestoneEvent `json:"milestones"`
	}
	if err := getFeed(ctx, c.HTTPClient, c.BaseURL, "/api/v1/public/milestones", c.Token, since, &response); err != nil {
		return nil, err
	}
	return response.Milestones, nil
}

// shareConversion maps a milestone to the viral action it represents for the sharer
func shareConversion(trigger models.ReferralTrigger) (string, bool) {
	switch trigger {
	case models.TriggerSignup:
		return models.ActionSignupFromShare, true
	case models.TriggerFirstApplication:
		return models.ActionApplicationFromShare, true
	}
	return "", false
}

// Apply records the events and processes the ones not seen before. Events
// that fail stay unprocessed and are picked up again by RetryPending.
func (c *MilestoneSyncClient) Apply(ctx context.Context, events []models.MilestoneEvent) (int, error) {
	processed := 0
	for i := range events {
		ev := events[i]
		if ev.ID == "" || ev.UserID == "" {
			continue
		}
		res := c.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&ev)
		if res.Error != nil {
			return processed, fmt.Errorf("failed to record milestone %s: %w", ev.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			var existing models.MilestoneEvent
			if err := c.DB.WithContext(ctx).Where("id = ?", ev.ID).First(&existing).Error; err != nil {
				return processed, err
			}
			if existing.ProcessedAt != nil {
				continue
			}
		}

		ok, err := c.handle(ctx, &ev)
		if err != nil {
			return processed, err
		}
		if ok {
			processed++
		}
	}
	return processed, nil
}

// RetryPending re-runs recorded events that have not been processed yet, oldest first
func (c *MilestoneSyncClient) RetryPending(ctx context.Context) (int, error) {
	var pending []models.MilestoneEvent
	if err := c.DB.WithContext(ctx).
		Where("processed_at IS NULL").
		Order("occurred_at ASC").
		Limit(retryBatchSize).
		Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to load pending milestones: %w", err)
	}

	processed := 0
	for i := range pending {
		ok, err := c.handle(ctx, &pending[i])
		if err != nil {
			return processed, err
		}
		if ok {
			processed++
		}
	}
	return processed, nil
}

// Sync retries pending events, then fetches and applies the feed since the given time
func (c *MilestoneSyncClient) Sync(ctx context.Context, since time.Time) (int, error) {
	retried, err := c.RetryPending(ctx)
	if err != nil {
		return retried, err
	}
	if retried > 0 {
		log.Printf("🔁 [MILESTONE] Retried %d pending milestone(s)", retried)
	}

	events, err := c.GetMilestones(ctx, since)
	if err != nil {
		return retried, err
	}
	n, err := c.Apply(ctx, events)
	return retried + n, err
}

// handle processes one recorded event and marks it done. A processing failure
// is logged and reported as false; only marking errors are returned.
func (c *MilestoneSyncClient) handle(ctx context.Context, ev *models.MilestoneEvent) (bool, error) {
	if err := c.process(ctx, ev); err != nil {
		log.Printf("❌ [MILESTONE] Event %s (%s for %s) failed, will retry: %v", ev.ID, ev.Trigger, ev.UserID, err)
		return false, nil
	}
	now := time.Now().UTC()
	if err := c.DB.WithContext(ctx).Model(&models.MilestoneEvent{}).
		Where("id = ?", ev.ID).
		Update("processed_at", now).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (c *MilestoneSyncClient) process(ctx context.Context, ev *models.MilestoneEvent) error {
	if ev.ShareCode != "" && c.Shares != nil {
		if action, ok := shareConversion(ev.Trigger); ok {
			meta := map[string]any{"referee_id": ev.UserID, "milestone_id": ev.ID}
			if _, err := c.Shares.CreditShareConversion(ctx, ev.ShareCode, action, meta); err != nil &&
				!errors.Is(err, services.ErrTrackingCodeNotFound) {
				return err
			}
		}
	}

	referral, err := c.Referrals.FindReferralByReferee(ctx, ev.UserID)
	if errors.Is(err, services.ErrReferralNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	rctx := map[string]any{"referee_id": ev.UserID, "milestone_id": ev.ID}
	for k, v := range ev.Context {
		rctx[k] = v
	}
	_, err = c.Referrals.ProcessReward(ctx, referral.ID, ev.Trigger, rctx)
	if errors.Is(err, services.ErrInvalidTransition) {
		log.Printf("⚠️ [MILESTONE] Referral %s is closed, skipping %s", referral.ID, ev.Trigger)
		return nil
	}
	return err
}

// PollMilestones applies milestone changes every pollInterval until ctx is done
func PollMilestones(ctx context.Context, client *MilestoneSyncClient, pollInterval time.Duration) {
	log.Println("Starting milestone polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Milestone polling stopped.")
			return
		case <-ticker.C:
			pollTime := time.Now().UTC()
			n, err := client.Sync(ctx, lastSyncTime)
			if err != nil {
				// keep the window so the batch is fetched again next tick
				log.Printf("❌ [MILESTONE] Error syncing milestones: %v", err)
				continue
			}
			lastSyncTime = pollTime
			if n > 0 {
				log.Printf("✅ [MILESTONE] Processed %d milestone(s)", n)
			}
		}
	}
}

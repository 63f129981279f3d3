package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"job-board-growth/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// ViralGrowthEngine runs campaigns over tracked user actions and keeps the
// gamification ledger. Campaigns and elements are cached from the store.
type ViralGrowthEngine struct {
	DB            *gorm.DB
	ledger        *Ledger
	now           func() time.Time
	publicBaseURL string

	mu            sync.RWMutex
	campaigns     map[string]*models.ViralCampaign
	campaignOrder []string
	elements      []models.GamificationElement
}

// TrackResult reports what a tracked action produced
type TrackResult struct {
	ActionID     string                    `json:"action_id,omitempty"`
	Rewards      []models.ViralRewardGiven `json:"rewards"`
	Achievements []string                  `json:"achievements"`
}

// ObjectWriter stores a raw object by key (R2 in production)
type ObjectWriter interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// NewViralGrowthEngine seeds campaigns and gamification elements and loads them into the cache
func NewViralGrowthEngine(ctx context.Context, db *gorm.DB, catalog *Catalog, opts EngineOptions) (*ViralGrowthEngine, error) {
	e := &ViralGrowthEngine{
		DB:            db,
		now:           opts.clock(),
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		campaigns:     map[string]*models.ViralCampaign{},
	}
	e.ledger = NewLedger(e.now)

	if catalog != nil {
		if err := e.seed(ctx, catalog); err != nil {
			return nil, err
		}
	}
	if err := e.RefreshCatalog(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *ViralGrowthEngine) seed(ctx context.Context, catalog *Catalog) error {
	now := e.now()
	db := e.DB.WithContext(ctx)
	for _, def := range catalog.Campaigns {
		c := def.Model(now)
		c.CreatedAt = now
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error; err != nil {
			return fmt.Errorf("failed to seed campaign %s: %w", def.ID, err)
		}
	}
	for _, def := range catalog.Achievements {
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(def.Model()).Error; err != nil {
			return fmt.Errorf("failed to seed element %s: %w", def.ID, err)
		}
	}
	return nil
}

// RefreshCatalog replaces the campaign and element caches with store truth
func (e *ViralGrowthEngine) RefreshCatalog(ctx context.Context) error {
	var campaigns []models.ViralCampaign
	if err := e.DB.WithContext(ctx).Order("start_date ASC, created_at ASC").Find(&campaigns).Error; err != nil {
		return fmt.Errorf("failed to load campaigns: %w", err)
	}
	var elements []models.GamificationElement
	if err := e.DB.WithContext(ctx).Order("created_at ASC, id ASC").Find(&elements).Error; err != nil {
		return fmt.Errorf("failed to load gamification elements: %w", err)
	}

	byID := make(map[string]*models.ViralCampaign, len(campaigns))
	order := make([]string, 0, len(campaigns))
	for i := range campaigns {
		c := campaigns[i]
		byID[c.ID] = &c
		order = append(order, c.ID)
	}
	e.mu.Lock()
	e.campaigns = byID
	e.campaignOrder = order
	e.elements = elements
	e.mu.Unlock()
	return nil
}

// CreateCampaign persists a new campaign with zeroed metrics and registers it
func (e *ViralGrowthEngine) CreateCampaign(ctx context.Context, def CampaignDefinition) (*models.ViralCampaign, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%w: campaign name is required", ErrInvalidInput)
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	now := e.now()
	c := def.Model(now)
	c.CreatedAt = now
	c.CurrentMetrics = models.CampaignMetrics{}
	if err := e.DB.WithContext(ctx).Create(c).Error; err != nil {
		log.Printf("❌ [VIRAL] Failed to create campaign %s: %v", def.Name, err)
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	e.mu.Lock()
	e.campaigns[c.ID] = c
	e.campaignOrder = append(e.campaignOrder, c.ID)
	e.mu.Unlock()

	log.Printf("✅ [VIRAL] Campaign created: %s (%s)", c.Name, c.ID)
	cp := *c
	return &cp, nil
}

// GetActiveCampaigns returns cached campaigns that are active and inside their window
func (e *ViralGrowthEngine) GetActiveCampaigns() []models.ViralCampaign {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := []models.ViralCampaign{}
	for _, id := range e.campaignOrder {
		if c := e.campaigns[id]; c.Running(now) {
			out = append(out, *c)
		}
	}
	return out
}

// GetCampaign returns a copy of a cached campaign
func (e *ViralGrowthEngine) GetCampaign(id string) (*models.ViralCampaign, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.campaigns[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func (e *ViralGrowthEngine) elementsSnapshot() []models.GamificationElement {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.GamificationElement(nil), e.elements...)
}

// TrackViralAction records an action, pays campaign rewards and checks achievements.
// It never fails the caller: errors are logged and the partial result returned.
func (e *ViralGrowthEngine) TrackViralAction(ctx context.Context, userID, action string, metadata map[string]any) *TrackResult {
	result := &TrackResult{Rewards: []models.ViralRewardGiven{}, Achievements: []string{}}
	action = strings.TrimSpace(action)
	if userID == "" || action == "" {
		log.Printf("⚠️ [VIRAL] Ignoring action with empty user or action")
		return result
	}

	platform, _ := metadata["platform"].(string)
	act := &models.ViralAction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Platform:  strings.ToLower(platform),
		Metadata:  metadata,
		CreatedAt: e.now(),
	}
	if err := e.DB.WithContext(ctx).Create(act).Error; err != nil {
		log.Printf("❌ [VIRAL] Failed to record action %s for %s: %v", action, userID, err)
		return result
	}
	result.ActionID = act.ID
	viralActionsTracked.WithLabelValues(action).Inc()

	for _, campaign := range e.GetActiveCampaigns() {
		c := campaign
		given, err := e.processViralRewards(ctx, act, &c)
		if err != nil {
			log.Printf("❌ [VIRAL] Campaign %s failed for action %s: %v", c.ID, act.ID, err)
			continue
		}
		result.Rewards = append(result.Rewards, given...)
	}

	unlocked, err := e.checkAchievements(ctx, userID)
	if err != nil {
		log.Printf("❌ [VIRAL] Achievement check failed for %s: %v", userID, err)
	}
	result.Achievements = append(result.Achievements, unlocked...)
	return result
}

// processViralRewards pays the rewards tied to the triggers an action matches,
// subject to the campaign's rules, and advances the campaign metrics.
func (e *ViralGrowthEngine) processViralRewards(ctx context.Context, act *models.ViralAction, campaign *models.ViralCampaign) ([]models.ViralRewardGiven, error) {
	triggers := matchingTriggers(campaign, act)
	if len(triggers) == 0 {
		return nil, nil
	}

	var given []models.ViralRewardGiven
	var metrics *models.CampaignMetrics
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reached := false
		for _, t := range triggers {
			ok, err := thresholdReached(tx, t, act)
			if err != nil {
				return err
			}
			if ok {
				reached = true
				break
			}
		}
		if !reached {
			return nil
		}

		ok, err := e.checkCampaignRules(tx, act.UserID, campaign, act)
		if err != nil || !ok {
			return err
		}

		var prior int64
		if err := tx.Model(&models.ViralRewardGiven{}).
			Where("user_id = ? AND campaign_id = ?", act.UserID, campaign.ID).
			Count(&prior).Error; err != nil {
			return err
		}

		for _, reward := range campaign.Rewards {
			if !reward.UnlockedBy(act.Action) {
				continue
			}
			row, err := e.giveViralReward(tx, act.UserID, reward, campaign.ID, act)
			if err != nil {
				return err
			}
			if row != nil {
				given = append(given, *row)
			}
		}

		metrics, err = e.advanceMetrics(tx, campaign.ID, act.Action, prior == 0 && len(given) > 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	if metrics != nil {
		e.mu.Lock()
		if c, ok := e.campaigns[campaign.ID]; ok {
			updated := *c
			updated.CurrentMetrics = *metrics
			e.campaigns[campaign.ID] = &updated
		}
		e.mu.Unlock()
	}
	if len(given) > 0 {
		log.Printf("🎁 [VIRAL] %d reward(s) from %s → %s", len(given), campaign.Name, act.UserID)
	}
	return given, nil
}

// advanceMetrics re-reads the campaign inside tx so concurrent trackers do not overwrite each other
func (e *ViralGrowthEngine) advanceMetrics(tx *gorm.DB, campaignID, action string, newParticipant bool) (*models.CampaignMetrics, error) {
	var c models.ViralCampaign
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", campaignID).First(&c).Error; err != nil {
		return nil, err
	}
	m := c.CurrentMetrics
	switch action {
	case models.ActionShareJob:
		m.Shares++
	case models.ActionSignupFromShare:
		m.Signups++
	}
	if newParticipant {
		m.Participants++
	}
	if m.Shares > 0 {
		m.ConversionRate = float64(m.Signups) / float64(m.Shares)
	} else {
		m.ConversionRate = 0
	}
	if m == c.CurrentMetrics {
		return &m, nil
	}
	if err := tx.Model(&models.ViralCampaign{}).
		Where("id = ?", campaignID).
		Select("current_metrics").
		Updates(&models.ViralCampaign{CurrentMetrics: m}).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// giveViralReward applies one campaign reward and records it. A badge the
// user already holds yields no record.
func (e *ViralGrowthEngine) giveViralReward(tx *gorm.DB, userID string, reward models.ViralReward, campaignID string, act *models.ViralAction) (*models.ViralRewardGiven, error) {
	switch reward.Type {
	case models.ViralRewardPoints:
		if err := e.ledger.AddPoints(tx, userID, int64(reward.Amount)); err != nil {
			return nil, err
		}
	case models.ViralRewardCredit:
		if err := e.ledger.AddCredit(tx, userID, reward.Amount, "USD", "viral_campaign", campaignID, reward.Description); err != nil {
			return nil, err
		}
	case models.ViralRewardBadge:
		created, err := e.ledger.AwardBadge(tx, userID, reward.Target, campaignID)
		if err != nil {
			return nil, err
		}
		if !created {
			return nil, nil
		}
	case models.ViralRewardFeatureUnlock:
		features := ReferralFeatureBundle
		if reward.Target != "" {
			features = []string{reward.Target}
		}
		if err := e.ledger.UnlockFeatures(tx, userID, features, FeatureUnlockDuration, "viral_campaign", campaignID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown viral reward type %q", ErrInvalidInput, reward.Type)
	}

	row := &models.ViralRewardGiven{
		ID:          uuid.NewString(),
		UserID:      userID,
		CampaignID:  campaignID,
		RewardType:  reward.Type,
		Amount:      reward.Amount,
		Target:      reward.Target,
		Description: reward.Description,
		Action:      act.Action,
		Context:     act.Metadata,
		CreatedAt:   e.now(),
	}
	if err := tx.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to record viral reward: %w", err)
	}
	if err := e.ledger.Notify(tx, userID, models.NotificationViralReward, "You earned a reward!", reward.Description,
		map[string]any{"campaign_id": campaignID, "reward_type": string(reward.Type), "amount": reward.Amount, "rarity": string(reward.Rarity)}); err != nil {
		return nil, err
	}
	rewardsGranted.WithLabelValues("viral", string(reward.Type)).Inc()
	return row, nil
}

// GetUserViralStats returns the user's aggregate viral activity
func (e *ViralGrowthEngine) GetUserViralStats(ctx context.Context, userID string) (*models.UserViralStats, error) {
	return loadViralStats(ctx, e.DB, userID)
}

// GetLeaderboard ranks users by points, job shares or completed referrals
func (e *ViralGrowthEngine) GetLeaderboard(ctx context.Context, kind models.LeaderboardType, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	type scored struct {
		UserID string
		Score  float64
	}
	var rows []scored
	db := e.DB.WithContext(ctx)
	var q *gorm.DB
	switch kind {
	case models.LeaderboardPoints, "":
		q = db.Model(&models.UserPoints{}).
			Select("user_id, total_points AS score").
			Where("total_points > 0")
	case models.LeaderboardShares:
		q = db.Model(&models.ViralAction{}).
			Select("user_id, COUNT(*) AS score").
			Where("action = ?", models.ActionShareJob).
			Group("user_id")
	case models.LeaderboardReferrals:
		q = db.Model(&models.Referral{}).
			Select("referrer_id AS user_id, COUNT(*) AS score").
			Where("status = ?", models.ReferralCompleted).
			Group("referrer_id")
	default:
		return nil, fmt.Errorf("%w: unknown leaderboard %q", ErrInvalidInput, kind)
	}
	if err := q.Order("score DESC, user_id ASC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	names := map[string]string{}
	if len(ids) > 0 {
		var profiles []models.UserProfile
		if err := db.Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
			return nil, fmt.Errorf("failed to load leaderboard names: %w", err)
		}
		for _, p := range profiles {
			names[p.UserID] = p.DisplayName()
		}
	}

	out := make([]models.LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		out = append(out, models.LeaderboardEntry{Rank: i + 1, UserID: r.UserID, Name: names[r.UserID], Score: r.Score})
	}
	return out, nil
}

// LeaderboardSnapshot is the document written by SnapshotLeaderboard
type LeaderboardSnapshot struct {
	GeneratedAt time.Time                                            `json:"generated_at"`
	Boards      map[models.LeaderboardType][]models.LeaderboardEntry `json:"boards"`
}

// SnapshotLeaderboard uploads every leaderboard as one JSON document
func (e *ViralGrowthEngine) SnapshotLeaderboard(ctx context.Context, store ObjectWriter, key string) error {
	snap := LeaderboardSnapshot{
		GeneratedAt: e.now(),
		Boards:      map[models.LeaderboardType][]models.LeaderboardEntry{},
	}
	for _, kind := range []models.LeaderboardType{models.LeaderboardPoints, models.LeaderboardShares, models.LeaderboardReferrals} {
		board, err := e.GetLeaderboard(ctx, kind, MaxLeaderboardLimit)
		if err != nil {
			return err
		}
		snap.Boards[kind] = board
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := store.PutObject(ctx, key, body, "application/json"); err != nil {
		return fmt.Errorf("failed to upload leaderboard snapshot: %w", err)
	}
	log.Printf("📤 [VIRAL] Leaderboard snapshot uploaded to %s", key)
	return nil
}

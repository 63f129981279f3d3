package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"job-board-growth/models"
	"job-board-growth/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	codeSuffixLength   = 6
	maxCodeGenAttempts = 10
	topReferrersLimit  = 10
)

// EngineOptions tunes engine construction; zero values use production defaults
type EngineOptions struct {
	Clock         func() time.Time
	CodeSuffix    func(n int) string
	PublicBaseURL string
}

func (o EngineOptions) clock() func() time.Time {
	if o.Clock != nil {
		return o.Clock
	}
	return utcNow
}

// ReferralEngine issues referral codes, redeems them and pays out milestone rewards.
// The store is the source of truth; programs and pending codes are cached in memory.
type ReferralEngine struct {
	DB     *gorm.DB
	ledger *Ledger
	now    func() time.Time
	suffix func(n int) string

	mu           sync.RWMutex
	programs     map[string]*models.ReferralProgram
	programOrder []string
	activeCodes  map[string]*models.Referral
}

// ReferralStats is the aggregate returned by GetReferralStats
type ReferralStats struct {
	TotalReferrals     int64         `json:"total_referrals"`
	CompletedReferrals int64         `json:"completed_referrals"`
	PendingReferrals   int64         `json:"pending_referrals"`
	TotalRewards       float64       `json:"total_rewards"`
	ConversionRate     float64       `json:"conversion_rate"`
	TopReferrers       []TopReferrer `json:"top_referrers"`
}

type TopReferrer struct {
	UserID             string `json:"user_id"`
	CompletedReferrals int64  `json:"completed_referrals"`
}

// NewReferralEngine seeds the catalog, warms the caches and returns a ready engine
func NewReferralEngine(ctx context.Context, db *gorm.DB, catalog *Catalog, opts EngineOptions) (*ReferralEngine, error) {
	e := &ReferralEngine{
		DB:          db,
		now:         opts.clock(),
		suffix:      opts.CodeSuffix,
		programs:    map[string]*models.ReferralProgram{},
		activeCodes: map[string]*models.Referral{},
	}
	if e.suffix == nil {
		e.suffix = utils.RandomCode
	}
	e.ledger = NewLedger(e.now)

	if catalog != nil {
		if err := e.seedPrograms(ctx, catalog.Programs); err != nil {
			return nil, err
		}
	}
	if err := e.RefreshPrograms(ctx); err != nil {
		return nil, err
	}
	e.loadPendingReferrals(ctx)
	return e, nil
}

func (e *ReferralEngine) seedPrograms(ctx context.Context, defs []ProgramDefinition) error {
	now := e.now()
	for i, def := range defs {
		p := def.Model(now, i)
		p.CreatedAt = now
		if err := e.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error; err != nil {
			return fmt.Errorf("failed to seed program %s: %w", def.ID, err)
		}
	}
	return nil
}

// RefreshPrograms replaces the program cache with store truth
func (e *ReferralEngine) RefreshPrograms(ctx context.Context) error {
	var programs []models.ReferralProgram
	if err := e.DB.WithContext(ctx).Order("sort_order ASC, created_at ASC").Find(&programs).Error; err != nil {
		return fmt.Errorf("failed to load referral programs: %w", err)
	}
	byID := make(map[string]*models.ReferralProgram, len(programs))
	order := make([]string, 0, len(programs))
	for i := range programs {
		p := programs[i]
		byID[p.ID] = &p
		order = append(order, p.ID)
	}
	e.mu.Lock()
	e.programs = byID
	e.programOrder = order
	e.mu.Unlock()
	return nil
}

// loadPendingReferrals is best-effort: a failure leaves the index empty
func (e *ReferralEngine) loadPendingReferrals(ctx context.Context) {
	var pending []models.Referral
	if err := e.DB.WithContext(ctx).Where("status = ?", models.ReferralPending).Find(&pending).Error; err != nil {
		log.Printf("❌ [REFERRAL] Failed to load pending referrals: %v", err)
		return
	}
	e.mu.Lock()
	for i := range pending {
		r := pending[i]
		e.activeCodes[r.Code] = &r
	}
	e.mu.Unlock()
	log.Printf("🔁 [REFERRAL] Loaded %d pending referral(s)", len(pending))
}

// GetProgram returns a copy of a cached program
func (e *ReferralEngine) GetProgram(id string) (*models.ReferralProgram, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.programs[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// ListPrograms returns the cached programs in registration order
func (e *ReferralEngine) ListPrograms() []models.ReferralProgram {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.ReferralProgram, 0, len(e.programOrder))
	for _, id := range e.programOrder {
		out = append(out, *e.programs[id])
	}
	return out
}

// CreateProgram persists a new program and registers it
func (e *ReferralEngine) CreateProgram(ctx context.Context, def ProgramDefinition) (*models.ReferralProgram, error) {
	if strings.TrimSpace(def.Name) == "" {
		return nil, fmt.Errorf("%w: program name is required", ErrInvalidInput)
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	e.mu.RLock()
	order := len(e.programOrder)
	e.mu.RUnlock()

	now := e.now()
	p := def.Model(now, order)
	p.CreatedAt = now
	p.CurrentRedemptions = 0
	if err := e.DB.WithContext(ctx).Create(p).Error; err != nil {
		log.Printf("❌ [REFERRAL] Failed to create program %s: %v", def.Name, err)
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	e.mu.Lock()
	e.programs[p.ID] = p
	e.programOrder = append(e.programOrder, p.ID)
	e.mu.Unlock()

	log.Printf("✅ [REFERRAL] Program created: %s (%s)", p.Name, p.ID)
	cp := *p
	return &cp, nil
}

func (e *ReferralEngine) loadUser(ctx context.Context, userID string) (*models.UserProfile, *models.UserStats, error) {
	var profile models.UserProfile
	if err := e.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	stats := models.UserStats{UserID: userID}
	if err := e.DB.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("failed to load stats for %s: %w", userID, err)
	}
	return &profile, &stats, nil
}

// selectProgramForUser picks the VIP program for proven referrers, else the
// program for the user's role, else the first registered program.
func (e *ReferralEngine) selectProgramForUser(profile *models.UserProfile, stats *models.UserStats) *models.ReferralProgram {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.programOrder) == 0 {
		return nil
	}
	now := e.now()
	if stats.SuccessfulHires >= VIPMinSuccessfulHires || stats.TotalRevenue >= VIPMinRevenue {
		for _, id := range e.programOrder {
			if p := e.programs[id]; p.VIP && p.Available(now) {
				return p
			}
		}
	}
	for _, id := range e.programOrder {
		p := e.programs[id]
		if !p.VIP && string(p.TargetAudience) == string(profile.Role) && p.Available(now) {
			return p
		}
	}
	return e.programs[e.programOrder[0]]
}

// GenerateReferralCode issues a new pending referral for referrerID and returns its code.
// An empty programID selects a program from the referrer's profile.
func (e *ReferralEngine) GenerateReferralCode(ctx context.Context, referrerID, programID string) (string, error) {
	profile, stats, err := e.loadUser(ctx, referrerID)
	if err != nil {
		return "", err
	}

	var program *models.ReferralProgram
	if programID == "" {
		program = e.selectProgramForUser(profile, stats)
	} else {
		e.mu.RLock()
		program = e.programs[programID]
		e.mu.RUnlock()
	}
	now := e.now()
	if program == nil || !program.Available(now) {
		return "", ErrInvalidProgram
	}
	if program.Exhausted() {
		return "", ErrProgramExhausted
	}
	if !checkUserMeetsConditions(program.Conditions, profile, stats) {
		return "", ErrConditionsNotMet
	}

	code, err := e.reserveCode(ctx, profile)
	if err != nil {
		return "", err
	}

	referral := &models.Referral{
		ID:           uuid.NewString(),
		ReferrerID:   referrerID,
		Code:         code,
		ProgramID:    program.ID,
		Status:       models.ReferralPending,
		RewardsGiven: []models.GivenReward{},
		Metadata: map[string]any{
			"program_name": program.Name,
		},
		Timestamps: models.Timestamps{CreatedAt: now},
	}
	if err := e.DB.WithContext(ctx).Create(referral).Error; err != nil {
		e.mu.Lock()
		delete(e.activeCodes, code)
		e.mu.Unlock()
		log.Printf("❌ [REFERRAL] Failed to persist referral for %s: %v", referrerID, err)
		return "", fmt.Errorf("failed to create referral: %w", err)
	}

	e.mu.Lock()
	e.activeCodes[code] = referral
	e.mu.Unlock()

	codesGenerated.WithLabelValues(program.ID).Inc()
	log.Printf("🎟️ [REFERRAL] Code %s issued to %s (program=%s)", code, referrerID, program.ID)
	return code, nil
}

// reserveCode generates a code unused by any active or stored referral and
// holds it in the index until the caller persists or releases it.
func (e *ReferralEngine) reserveCode(ctx context.Context, profile *models.UserProfile) (string, error) {
	prefix := utils.ReferralCodePrefix(profile.FirstName, profile.LastName)
	for attempt := 0; attempt < maxCodeGenAttempts; attempt++ {
		code := prefix + strings.ToUpper(e.suffix(codeSuffixLength))

		e.mu.Lock()
		_, taken := e.activeCodes[code]
		if !taken {
			e.activeCodes[code] = &models.Referral{Code: code, Status: models.ReferralPending}
		}
		e.mu.Unlock()
		if taken {
			continue
		}

		var count int64
		if err := e.DB.WithContext(ctx).Unscoped().Model(&models.Referral{}).Where("code = ?", code).Count(&count).Error; err != nil {
			e.release(code)
			return "", fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if count == 0 {
			return code, nil
		}
		e.release(code)
	}
	return "", ErrCodeGenerationExhausted
}

func (e *ReferralEngine) release(code string) {
	e.mu.Lock()
	delete(e.activeCodes, code)
	e.mu.Unlock()
}

var (
	errReferralTaken   = errors.New("referral already bound")
	errAlreadyReferred = errors.New("user already referred")
)

// ApplyReferralCode binds newUserID to the referral behind code and pays the
// signup rewards. Every business rejection (unknown code, inactive program,
// not pending, already bound, already referred, self-referral, expired) is
// reported as false;
// errors are reserved for store failures.
func (e *ReferralEngine) ApplyReferralCode(ctx context.Context, code, newUserID string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	e.mu.RLock()
	cached, ok := e.activeCodes[code]
	var program *models.ReferralProgram
	if ok {
		program = e.programs[cached.ProgramID]
	}
	e.mu.RUnlock()

	now := e.now()
	switch {
	case !ok || cached.ID == "":
		codesApplied.WithLabelValues("unknown_code").Inc()
		return false, nil
	case program == nil || !program.Available(now):
		codesApplied.WithLabelValues("inactive_program").Inc()
		return false, nil
	case cached.Status != models.ReferralPending || cached.RefereeID != nil:
		codesApplied.WithLabelValues("not_pending").Inc()
		return false, nil
	case cached.ReferrerID == newUserID:
		codesApplied.WithLabelValues("self_referral").Inc()
		return false, nil
	}

	if redemptionExpired(program, cached, now) {
		if err := e.ExpireReferral(ctx, cached.ID); err != nil && !errors.Is(err, ErrInvalidTransition) {
			return false, err
		}
		codesApplied.WithLabelValues("expired").Inc()
		return false, nil
	}

	ref := cloneReferral(cached)
	ref.RefereeID = &newUserID
	var completed bool
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bound int64
		if err := tx.Model(&models.Referral{}).Where("referee_id = ?", newUserID).Count(&bound).Error; err != nil {
			return err
		}
		if bound > 0 {
			return errAlreadyReferred
		}
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ? AND referee_id IS NULL", ref.ID, models.ReferralPending).
			Update("referee_id", newUserID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errReferralTaken
		}
		var err error
		completed, err = e.processRewardTx(tx, ref, program, models.TriggerSignup, map[string]any{"new_user_id": newUserID})
		return err
	})
	if errors.Is(err, errReferralTaken) {
		codesApplied.WithLabelValues("not_pending").Inc()
		return false, nil
	}
	if errors.Is(err, errAlreadyReferred) {
		codesApplied.WithLabelValues("already_referred").Inc()
		return false, nil
	}
	if err != nil {
		log.Printf("❌ [REFERRAL] Failed to apply code %s for %s: %v", code, newUserID, err)
		return false, fmt.Errorf("failed to apply referral code: %w", err)
	}

	e.commitReferral(ref, completed)
	codesApplied.WithLabelValues("applied").Inc()
	log.Printf("🤝 [REFERRAL] Code %s applied by %s (referrer=%s)", code, newUserID, ref.ReferrerID)
	return true, nil
}

// ProcessReward grants the program's rewards for trigger that the referral has not received yet
func (e *ReferralEngine) ProcessReward(ctx context.Context, referralID string, trigger models.ReferralTrigger, rctx map[string]any) (*models.Referral, error) {
	var out *models.Referral
	var completed bool
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := findReferral(tx, referralID)
		if err != nil {
			return err
		}
		if ref.Status == models.ReferralExpired || ref.Status == models.ReferralCancelled {
			return ErrInvalidTransition
		}
		e.mu.RLock()
		program := e.programs[ref.ProgramID]
		e.mu.RUnlock()
		if program == nil {
			return ErrInvalidProgram
		}
		completed, err = e.processRewardTx(tx, ref, program, trigger, rctx)
		out = ref
		return err
	})
	if err != nil {
		return nil, err
	}
	e.commitReferral(out, completed)
	return cloneReferral(out), nil
}

// FindReferralByReferee returns the referral a user was referred through
func (e *ReferralEngine) FindReferralByReferee(ctx context.Context, refereeID string) (*models.Referral, error) {
	var ref models.Referral
	err := e.DB.WithContext(ctx).Where("referee_id = ?", refereeID).Order("created_at DESC").First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReferralNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// processRewardTx mutates ref in place and reports whether it was completed
func (e *ReferralEngine) processRewardTx(tx *gorm.DB, ref *models.Referral, program *models.ReferralProgram, trigger models.ReferralTrigger, rctx map[string]any) (bool, error) {
	now := e.now()
	granted := 0
	for _, reward := range program.RewardsFor(trigger) {
		if ref.HasReward(reward.Trigger, reward.Type) {
			continue
		}
		if err := e.giveReward(tx, ref, reward, rctx); err != nil {
			log.Printf("❌ [REFERRAL] Reward %s/%s for referral %s failed: %v", reward.Trigger, reward.Type, ref.ID, err)
			return false, err
		}
		ref.RewardsGiven = append(ref.RewardsGiven, models.GivenReward{
			Trigger: reward.Trigger,
			Type:    reward.Type,
			Amount:  reward.Amount,
			GivenAt: now,
		})
		txRow := models.ReferralTransaction{
			ID:         uuid.NewString(),
			ReferralID: ref.ID,
			UserID:     ref.ReferrerID,
			Trigger:    trigger,
			RewardType: reward.Type,
			Amount:     reward.Amount,
			Currency:   reward.Currency,
			Context:    rctx,
			CreatedAt:  now,
		}
		if err := tx.Create(&txRow).Error; err != nil {
			return false, fmt.Errorf("failed to log referral transaction: %w", err)
		}
		granted++
	}
	if granted > 0 {
		if err := tx.Save(ref).Error; err != nil {
			return false, fmt.Errorf("failed to save referral rewards: %w", err)
		}
	}

	if ref.Status == models.ReferralPending && program.CompletesOn(trigger) {
		if err := e.completeTx(tx, ref, program); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (e *ReferralEngine) giveReward(tx *gorm.DB, ref *models.Referral, reward models.ReferralReward, rctx map[string]any) error {
	userID := ref.ReferrerID
	var err error
	switch reward.Type {
	case models.RewardCredit:
		err = e.ledger.AddCredit(tx, userID, reward.Amount, reward.Currency, "referral", ref.ID, reward.Description)
	case models.RewardCash:
		err = e.ledger.EnqueueCashPayment(tx, userID, reward.Amount, reward.Currency, ref.ID, reward.Description)
	case models.RewardSubscriptionDiscount:
		err = e.ledger.AddSubscriptionDiscount(tx, userID, reward.Amount, ref.ID, reward.Description)
	case models.RewardFeatureUnlock:
		err = e.ledger.UnlockFeatures(tx, userID, ReferralFeatureBundle, FeatureUnlockDuration, "referral", ref.ID)
	default:
		return fmt.Errorf("%w: unknown reward type %q", ErrInvalidInput, reward.Type)
	}
	if err != nil {
		return err
	}

	data := map[string]any{
		"referral_id": ref.ID,
		"trigger":     string(reward.Trigger),
		"reward_type": string(reward.Type),
		"amount":      reward.Amount,
	}
	for k, v := range rctx {
		data[k] = v
	}
	if err := e.ledger.Notify(tx, userID, models.NotificationReferralReward, "You earned a referral reward!", reward.Description, data); err != nil {
		return err
	}
	rewardsGranted.WithLabelValues("referral", string(reward.Type)).Inc()
	return nil
}

func (e *ReferralEngine) completeTx(tx *gorm.DB, ref *models.Referral, program *models.ReferralProgram) error {
	now := e.now()
	res := tx.Model(&models.Referral{}).
		Where("id = ? AND status = ?", ref.ID, models.ReferralPending).
		Updates(map[string]interface{}{"status": models.ReferralCompleted, "completed_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to complete referral: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	ref.Status = models.ReferralCompleted
	ref.CompletedAt = &now

	q := tx.Model(&models.ReferralProgram{}).Where("id = ?", program.ID)
	if program.MaxRedemptions != nil {
		q = q.Where("current_redemptions < ?", *program.MaxRedemptions)
	}
	res = q.UpdateColumn("current_redemptions", gorm.Expr("current_redemptions + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to count redemption: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		log.Printf("⚠️ [REFERRAL] Program %s redemption cap reached; referral %s completed without counting", program.ID, ref.ID)
	}

	return e.ledger.Notify(tx, ref.ReferrerID, models.NotificationReferral, "Referral completed",
		"Your referral reached its final milestone.", map[string]any{"referral_id": ref.ID, "program_id": program.ID})
}

// CompleteReferral moves a pending referral to completed and counts the redemption
func (e *ReferralEngine) CompleteReferral(ctx context.Context, referralID string) error {
	var ref *models.Referral
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ref, err = findReferral(tx, referralID)
		if err != nil {
			return err
		}
		if ref.Status != models.ReferralPending {
			return ErrInvalidTransition
		}
		e.mu.RLock()
		program := e.programs[ref.ProgramID]
		e.mu.RUnlock()
		if program == nil {
			return ErrInvalidProgram
		}
		return e.completeTx(tx, ref, program)
	})
	if err != nil {
		return err
	}
	e.commitReferral(ref, true)
	log.Printf("🏁 [REFERRAL] Referral %s completed", referralID)
	return nil
}

// ExpireReferral moves a pending referral to expired and drops its code from the index
func (e *ReferralEngine) ExpireReferral(ctx context.Context, referralID string) error {
	return e.closeReferral(ctx, referralID, models.ReferralExpired, "")
}

// CancelReferral withdraws a pending referral (referrer or admin initiated)
func (e *ReferralEngine) CancelReferral(ctx context.Context, referralID, reason string) error {
	return e.closeReferral(ctx, referralID, models.ReferralCancelled, reason)
}

func (e *ReferralEngine) closeReferral(ctx context.Context, referralID string, status models.ReferralStatus, reason string) error {
	now := e.now()
	var code string
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := findReferral(tx, referralID)
		if err != nil {
			return err
		}
		code = ref.Code
		updates := map[string]interface{}{"status": status}
		switch status {
		case models.ReferralExpired:
			updates["expired_at"] = now
		case models.ReferralCancelled:
			updates["cancelled_at"] = now
			if reason != "" {
				meta := ref.Metadata
				if meta == nil {
					meta = map[string]any{}
				}
				meta["cancel_reason"] = reason
				ref.Metadata = meta
				if err := tx.Model(ref).Select("metadata").Updates(&models.Referral{Metadata: meta}).Error; err != nil {
					return err
				}
			}
		}
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", referralID, models.ReferralPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.release(code)
	log.Printf("⏹️ [REFERRAL] Referral %s → %s", referralID, status)
	return nil
}

// ExpireStaleReferrals expires every pending referral past its program's time_limit
func (e *ReferralEngine) ExpireStaleReferrals(ctx context.Context) (int, error) {
	var pending []models.Referral
	if err := e.DB.WithContext(ctx).Where("status = ?", models.ReferralPending).Find(&pending).Error; err != nil {
		return 0, fmt.Errorf("failed to list pending referrals: %w", err)
	}
	now := e.now()
	expired := 0
	for i := range pending {
		ref := &pending[i]
		e.mu.RLock()
		program := e.programs[ref.ProgramID]
		e.mu.RUnlock()
		if program == nil || !redemptionExpired(program, ref, now) {
			continue
		}
		if err := e.ExpireReferral(ctx, ref.ID); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// commitReferral mirrors a committed referral into the code index
func (e *ReferralEngine) commitReferral(ref *models.Referral, completed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ref.Status != models.ReferralPending {
		delete(e.activeCodes, ref.Code)
	} else {
		e.activeCodes[ref.Code] = cloneReferral(ref)
	}
	if completed {
		if p, ok := e.programs[ref.ProgramID]; ok {
			if p.MaxRedemptions == nil || p.CurrentRedemptions < *p.MaxRedemptions {
				updated := *p
				updated.CurrentRedemptions++
				e.programs[ref.ProgramID] = &updated
			}
		}
	}
}

// IsActiveCode reports whether code is in the pending index
func (e *ReferralEngine) IsActiveCode(code string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.activeCodes[strings.ToUpper(code)]
	return ok && r.ID != ""
}

// GetReferralStats aggregates referral counts and paid rewards, optionally for one referrer
func (e *ReferralEngine) GetReferralStats(ctx context.Context, userID string) (*ReferralStats, error) {
	q := e.DB.WithContext(ctx).Model(&models.Referral{})
	if userID != "" {
		q = q.Where("referrer_id = ?", userID)
	}
	var referrals []models.Referral
	if err := q.Find(&referrals).Error; err != nil {
		return nil, fmt.Errorf("failed to load referrals: %w", err)
	}

	stats := &ReferralStats{TopReferrers: []TopReferrer{}}
	for _, r := range referrals {
		stats.TotalReferrals++
		switch r.Status {
		case models.ReferralCompleted:
			stats.CompletedReferrals++
		case models.ReferralPending:
			stats.PendingReferrals++
		}
		for _, g := range r.RewardsGiven {
			if g.Type == models.RewardCredit || g.Type == models.RewardCash {
				stats.TotalRewards += g.Amount
			}
		}
	}
	if stats.TotalReferrals > 0 {
		stats.ConversionRate = float64(stats.CompletedReferrals) / float64(stats.TotalReferrals) * 100
	}

	if err := e.DB.WithContext(ctx).Model(&models.Referral{}).
		Select("referrer_id AS user_id, COUNT(*) AS completed_referrals").
		Where("status = ?", models.ReferralCompleted).
		Group("referrer_id").
		Order("completed_referrals DESC").
		Limit(topReferrersLimit).
		Scan(&stats.TopReferrers).Error; err != nil {
		return nil, fmt.Errorf("failed to load top referrers: %w", err)
	}
	if stats.TopReferrers == nil {
		stats.TopReferrers = []TopReferrer{}
	}
	return stats, nil
}

// GetUserReferrals lists a referrer's referrals oldest first
func (e *ReferralEngine) GetUserReferrals(ctx context.Context, userID string) ([]models.Referral, error) {
	var referrals []models.Referral
	if err := e.DB.WithContext(ctx).
		Where("referrer_id = ?", userID).
		Order("created_at ASC").
		Find(&referrals).Error; err != nil {
		return nil, fmt.Errorf("failed to load referrals for %s: %w", userID, err)
	}
	return referrals, nil
}

func findReferral(tx *gorm.DB, id string) (*models.Referral, error) {
	var ref models.Referral
	if err := tx.Where("id = ?", id).First(&ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return &ref, nil
}

func cloneReferral(r *models.Referral) *models.Referral {
	cp := *r
	cp.RewardsGiven = append([]models.GivenReward(nil), r.RewardsGiven...)
	if r.Metadata != nil {
		cp.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

package services

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"time"

	"job-board-growth/models"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/default.yaml
var defaultCatalogYAML []byte

// ProgramDefinition is the catalog form of a referral program
type ProgramDefinition struct {
	ID                 string                     `json:"id" yaml:"id"`
	Name               string                     `json:"name" yaml:"name"`
	Description        string                     `json:"description" yaml:"description"`
	TargetAudience     models.AudienceType        `json:"target_audience" yaml:"target_audience"`
	VIP                bool                       `json:"vip" yaml:"vip"`
	Rewards            []models.ReferralReward    `json:"rewards" yaml:"rewards"`
	Conditions         []models.ReferralCondition `json:"conditions" yaml:"conditions"`
	CompletionTriggers []models.ReferralTrigger   `json:"completion_triggers" yaml:"completion_triggers"`
	Active             *bool                      `json:"active" yaml:"active"`
	ValidDays          int                        `json:"valid_days" yaml:"valid_days"`
	MaxRedemptions     *int                       `json:"max_redemptions" yaml:"max_redemptions"`
}

// CampaignDefinition is the catalog form of a viral campaign
type CampaignDefinition struct {
	ID            string                 `json:"id" yaml:"id"`
	Name          string                 `json:"name" yaml:"name"`
	Type          models.CampaignType    `json:"type" yaml:"type"`
	Description   string                 `json:"description" yaml:"description"`
	DurationDays  int                    `json:"duration_days" yaml:"duration_days"`
	Active        *bool                  `json:"active" yaml:"active"`
	Triggers      []models.ViralTrigger  `json:"triggers" yaml:"triggers"`
	Rewards       []models.ViralReward   `json:"rewards" yaml:"rewards"`
	Rules         []models.ViralRule     `json:"rules" yaml:"rules"`
	TargetMetrics models.CampaignMetrics `json:"target_metrics" yaml:"target_metrics"`
}

// ElementDefinition is the catalog form of a gamification element
type ElementDefinition struct {
	ID               string                   `json:"id" yaml:"id"`
	Type             models.ElementType       `json:"type" yaml:"type"`
	Title            string                   `json:"title" yaml:"title"`
	Description      string                   `json:"description" yaml:"description"`
	Icon             string                   `json:"icon" yaml:"icon"`
	Points           int64                    `json:"points" yaml:"points"`
	Rarity           models.Rarity            `json:"rarity" yaml:"rarity"`
	UnlockConditions []models.UnlockCondition `json:"unlock_conditions" yaml:"unlock_conditions"`
}

// Catalog holds the configuration-driven program, campaign and achievement definitions
type Catalog struct {
	Programs     []ProgramDefinition  `json:"programs" yaml:"programs"`
	Campaigns    []CampaignDefinition `json:"campaigns" yaml:"campaigns"`
	Achievements []ElementDefinition  `json:"achievements" yaml:"achievements"`
}

// ObjectReader fetches a raw object by key (R2 in production)
type ObjectReader interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// ParseCatalog decodes a YAML catalog document
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultCatalog returns the embedded catalog
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		// the embedded document is part of the build
		panic(err)
	}
	return c
}

// LoadCatalog resolves the catalog from object storage, then a local file, then the embedded default.
func LoadCatalog(ctx context.Context, objects ObjectReader, objectKey, path string) (*Catalog, error) {
	if objects != nil && objectKey != "" {
		data, err := objects.GetObject(ctx, objectKey)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch catalog object %q: %w", objectKey, err)
		}
		log.Printf("📦 [CATALOG] Loaded catalog from object %s", objectKey)
		return ParseCatalog(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file %q: %w", path, err)
		}
		log.Printf("📦 [CATALOG] Loaded catalog from %s", path)
		return ParseCatalog(data)
	}
	return DefaultCatalog(), nil
}

// Validate rejects definitions the engines cannot evaluate
func (c *Catalog) Validate() error {
	seen := map[string]bool{}
	for _, p := range c.Programs {
		if p.ID == "" || p.Name == "" {
			return fmt.Errorf("%w: program requires id and name", ErrInvalidInput)
		}
		if seen["p:"+p.ID] {
			return fmt.Errorf("%w: duplicate program %q", ErrInvalidInput, p.ID)
		}
		seen["p:"+p.ID] = true
	}
	for _, cp := range c.Campaigns {
		if cp.ID == "" || cp.Name == "" {
			return fmt.Errorf("%w: campaign requires id and name", ErrInvalidInput)
		}
		if seen["c:"+cp.ID] {
			return fmt.Errorf("%w: duplicate campaign %q", ErrInvalidInput, cp.ID)
		}
		seen["c:"+cp.ID] = true
	}
	for _, e := range c.Achievements {
		if e.ID == "" || len(e.UnlockConditions) == 0 {
			return fmt.Errorf("%w: achievement %q requires unlock conditions", ErrInvalidInput, e.ID)
		}
	}
	return nil
}

func defaultCompletionTriggers() []models.ReferralTrigger {
	return []models.ReferralTrigger{models.TriggerFirstHire, models.TriggerSubscription}
}

// Model builds the persisted program for a definition at now
func (d ProgramDefinition) Model(now time.Time, order int) *models.ReferralProgram {
	active := true
	if d.Active != nil {
		active = *d.Active
	}
	completion := d.CompletionTriggers
	if len(completion) == 0 {
		completion = defaultCompletionTriggers()
	}
	p := &models.ReferralProgram{
		ID:                 d.ID,
		Slug:               slug.Make(d.Name),
		Name:               d.Name,
		Description:        d.Description,
		TargetAudience:     d.TargetAudience,
		VIP:                d.VIP,
		Rewards:            d.Rewards,
		Conditions:         d.Conditions,
		CompletionTriggers: completion,
		IsActive:           active,
		ValidFrom:          now,
		MaxRedemptions:     d.MaxRedemptions,
		SortOrder:          order,
	}
	if d.ValidDays > 0 {
		until := now.AddDate(0, 0, d.ValidDays)
		p.ValidUntil = &until
	}
	return p
}

// Model builds the persisted campaign for a definition at now
func (d CampaignDefinition) Model(now time.Time) *models.ViralCampaign {
	active := true
	if d.Active != nil {
		active = *d.Active
	}
	days := d.DurationDays
	if days <= 0 {
		days = 30
	}
	return &models.ViralCampaign{
		ID:            d.ID,
		Name:          d.Name,
		Type:          d.Type,
		Description:   d.Description,
		Triggers:      d.Triggers,
		Rewards:       d.Rewards,
		Rules:         d.Rules,
		StartDate:     now,
		EndDate:       now.AddDate(0, 0, days),
		IsActive:      active,
		TargetMetrics: d.TargetMetrics,
	}
}

// Model builds the persisted gamification element
func (d ElementDefinition) Model() *models.GamificationElement {
	rarity := d.Rarity
	if rarity == "" {
		rarity = models.RarityCommon
	}
	return &models.GamificationElement{
		ID:               d.ID,
		Type:             d.Type,
		Title:            d.Title,
		Description:      d.Description,
		Icon:             d.Icon,
		Points:           d.Points,
		Rarity:           rarity,
		UnlockConditions: d.UnlockConditions,
	}
}

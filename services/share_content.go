package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"job-board-growth/models"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const defaultSharePlatform = "linkedin"

// shareTemplate verbs: %[1]s job title, %[2]s company, %[3]s location, %[4]s sharer
type shareTemplate struct {
	title    string
	desc     string
	message  string
	hashtags []string
}

var shareTemplates = map[string]shareTemplate{
	"linkedin": {
		title:    "%[1]s at %[2]s",
		desc:     "%[2]s is hiring a %[1]s in %[3]s. Know someone great? Pass it on.",
		message:  "I came across this %[1]s role at %[2]s and thought of my network. Worth a look!",
		hashtags: []string{"hiring", "jobs", "careers"},
	},
	"twitter": {
		title:    "🚀 %[2]s is hiring: %[1]s",
		desc:     "%[1]s · %[3]s",
		message:  "🚀 %[2]s is looking for a %[1]s (%[3]s). Apply or share 👇",
		hashtags: []string{"hiring", "jobsearch"},
	},
	"facebook": {
		title:    "Job opening: %[1]s",
		desc:     "%[2]s is hiring in %[3]s.",
		message:  "Friends, %[2]s is hiring a %[1]s. Share with anyone who might be interested!",
		hashtags: []string{"hiring", "nowhiring"},
	},
	"whatsapp": {
		title:    "%[1]s – %[2]s",
		desc:     "%[3]s",
		message:  "Hey! %[4]s thought you'd like this: %[1]s at %[2]s (%[3]s).",
		hashtags: []string{},
	},
	"email": {
		title:    "A job you might like: %[1]s at %[2]s",
		desc:     "%[2]s is hiring a %[1]s in %[3]s.",
		message:  "Hi,\n\n%[4]s thought this %[1]s opening at %[2]s could be a fit for you.\n\nBest,\n%[4]s",
		hashtags: []string{},
	},
}

const maxSkillHashtags = 3

var titleCaser = cases.Title(language.English, cases.NoLower)

// trackingCode is userId[0:6]_jobId[0:6]_platform_base36(now)
func trackingCode(userID, jobID, platform string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s", prefix(userID, 6), prefix(jobID, 6), platform,
		strconv.FormatInt(now.UnixMilli(), 36))
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func skillHashtags(skills []string) []string {
	out := []string{}
	for _, s := range skills {
		tag := strings.ReplaceAll(slug.Make(s), "-", "")
		if tag == "" {
			continue
		}
		out = append(out, tag)
		if len(out) == maxSkillHashtags {
			break
		}
	}
	return out
}

func jobLocation(job *models.Job) string {
	switch {
	case job.Remote && job.Location != "":
		return job.Location + " (remote)"
	case job.Remote:
		return "Remote"
	case job.Location != "":
		return job.Location
	default:
		return "multiple locations"
	}
}

// GenerateSocialShareContent composes a platform-specific post for a job and
// records the tracking code behind its link.
func (e *ViralGrowthEngine) GenerateSocialShareContent(ctx context.Context, jobID, userID, platform string) (*models.SocialShareContent, error) {
	var job models.Job
	if err := e.DB.WithContext(ctx).Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	sharer := "A friend"
	var profile models.UserProfile
	if err := e.DB.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&profile).Error; err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}
	if profile.FirstName != "" {
		sharer = profile.FirstName
	}

	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = defaultSharePlatform
	}
	tpl, ok := shareTemplates[platform]
	if !ok {
		tpl = shareTemplates[defaultSharePlatform]
	}

	now := e.now()
	code := trackingCode(userID, jobID, platform, now)
	title := titleCaser.String(job.Title)
	company := job.CompanyName
	if company == "" {
		company = "A growing team"
	}
	loc := jobLocation(&job)

	hashtags := append(append([]string{}, tpl.hashtags...), skillHashtags(job.Skills)...)
	content := &models.SocialShareContent{
		Platform:      platform,
		Title:         fmt.Sprintf(tpl.title, title, company, loc, sharer),
		Description:   fmt.Sprintf(tpl.desc, title, company, loc, sharer),
		URL:           jobShareURL(e.publicBaseURL, &job, code),
		Hashtags:      hashtags,
		CustomMessage: fmt.Sprintf(tpl.message, title, company, loc, sharer),
		TrackingCode:  code,
		ImageURL:      job.LogoURL,
	}

	row := models.ShareTrackingCode{
		Code:      code,
		UserID:    userID,
		JobID:     jobID,
		Platform:  platform,
		CreatedAt: now,
	}
	if err := e.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to store tracking code: %w", err)
	}

	e.TrackViralAction(ctx, userID, models.ActionGenerateShareContent, map[string]any{
		"job_id":        jobID,
		"platform":      platform,
		"tracking_code": code,
	})
	return content, nil
}

// jobShareURL is the public job page carrying the tracking code as ?ref=
func jobShareURL(baseURL string, job *models.Job, code string) string {
	path := job.ID
	if s := slug.Make(job.Title); s != "" {
		path = s + "-" + job.ID
	}
	return fmt.Sprintf("%s/jobs/%s?ref=%s", baseURL, path, url.QueryEscape(code))
}

// ShareLandingURL is where a click on a tracked share is redirected. It matches
// the URL handed out in the share content, or the bare job id once the posting
// is no longer mirrored.
func (e *ViralGrowthEngine) ShareLandingURL(ctx context.Context, row *models.ShareTrackingCode) string {
	job := models.Job{ID: row.JobID}
	if err := e.DB.WithContext(ctx).Where("id = ?", row.JobID).First(&job).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("⚠️ [VIRAL] Job lookup for share %s failed: %v", row.Code, err)
	}
	return jobShareURL(e.publicBaseURL, &job, row.Code)
}

// RecordShareClick counts a click on a tracked share link and credits the sharer's action log
func (e *ViralGrowthEngine) RecordShareClick(ctx context.Context, code string) (*models.ShareTrackingCode, error) {
	var row models.ShareTrackingCode
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTrackingCodeNotFound
			}
			return err
		}
		if err := tx.Model(&models.ShareTrackingCode{}).
			Where("code = ?", code).
			UpdateColumn("clicks", gorm.Expr("clicks + 1")).Error; err != nil {
			return err
		}
		row.Clicks++
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.TrackViralAction(ctx, row.UserID, models.ActionShareClick, map[string]any{
		"job_id":        row.JobID,
		"platform":      row.Platform,
		"tracking_code": row.Code,
	})
	return &row, nil
}

// CreditShareConversion attributes a signup or application that arrived through a
// tracked share to the sharer, as signup_from_share or application_from_share.
func (e *ViralGrowthEngine) CreditShareConversion(ctx context.Context, code, action string, metadata map[string]any) (*TrackResult, error) {
	if action != models.ActionSignupFromShare && action != models.ActionApplicationFromShare {
		return nil, fmt.Errorf("%w: %q is not a share conversion", ErrInvalidInput, action)
	}
	var row models.ShareTrackingCode
	if err := e.DB.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrackingCodeNotFound
		}
		return nil, err
	}
	meta := map[string]any{
		"job_id":        row.JobID,
		"platform":      row.Platform,
		"tracking_code": row.Code,
	}
	for k, v := range metadata {
		meta[k] = v
	}
	return e.TrackViralAction(ctx, row.UserID, action, meta), nil
}

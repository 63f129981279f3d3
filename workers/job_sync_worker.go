// workers/job_sync_worker.go
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

// RemoteJob matches one entry of the job service's change feed
type RemoteJob struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CompanyName string    `json:"company_name"`
	Location    string    `json:"location"`
	Remote      bool      `json:"remote"`
	SalaryMin   *int64    `json:"salary_min,omitempty"`
	SalaryMax   *int64    `json:"salary_max,omitempty"`
	Skills      []string  `json:"skills"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GetJobChangesResponse is the top-level structure of the job feed response
type GetJobChangesResponse struct {
	Jobs []RemoteJob `json:"jobs"`
}

// JobSyncWorker mirrors job postings into the jobs table used for share content.
// Closed or deleted postings are removed so they can no longer be shared.
type JobSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	cursor       time.Time
}

func NewJobSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *JobSyncWorker {
	return &JobSyncWorker{
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

func (w *JobSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Job Sync Worker (sync-service → jobs)…")
	go w.run(ctx)
}

func (w *JobSyncWorker) run(ctx context.Context) {
	w.cursor = w.getLastSyncTime()
	if err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ [JOBS] Initial job sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ [JOBS] Job sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Job Sync Worker stopped")
			return
		}
	}
}

func (w *JobSyncWorker) getLastSyncTime() time.Time {
	var latest models.Job
	if err := w.db.Order("updated_at DESC").Limit(1).Find(&latest).Error; err != nil {
		return time.Time{}
	}
	return latest.UpdatedAt
}

func jobClosed(status string) bool {
	return status == "closed" || status == "deleted" || status == "archived"
}

func (w *JobSyncWorker) syncBatch(ctx context.Context) error {
	var response GetJobChangesResponse
	if err := getFeed(ctx, w.httpClient, w.baseURL, w.endpointPath, w.serviceToken, w.cursor, &response); err != nil {
		return err
	}
	if len(response.Jobs) == 0 {
		return nil
	}

	var upserted, removed, failed int
	for _, remote := range response.Jobs {
		if remote.ID == "" {
			continue
		}
		var err error
		if jobClosed(remote.Status) {
			err = w.db.WithContext(ctx).Where("id = ?", remote.ID).Delete(&models.Job{}).Error
			if err == nil {
				removed++
			}
		} else {
			err = w.upsert(ctx, remote)
			if err == nil {
				upserted++
			}
		}
		if err != nil {
			failed++
			log.Printf("[JOBS] ⚠️ Failed to sync job id=%q: %v", remote.ID, err)
			continue
		}
		if remote.UpdatedAt.After(w.cursor) {
			w.cursor = remote.UpdatedAt
		}
	}

	log.Printf("[JOBS] ✅ Synced %d job(s) (%d upserted, %d removed, %d errors), cursor=%s",
		len(response.Jobs), upserted, removed, failed, w.cursor.Format(time.RFC3339))
	return nil
}

func (w *JobSyncWorker) upsert(ctx context.Context, remote RemoteJob) error {
	job := models.Job{
		ID:          remote.ID,
		Title:       remote.Title,
		CompanyName: remote.CompanyName,
		Location:    remote.Location,
		Remote:      remote.Remote,
		SalaryMin:   remote.SalaryMin,
		SalaryMax:   remote.SalaryMax,
		Skills:      remote.Skills,
		LogoURL:     remote.LogoURL,
		CreatedAt:   remote.CreatedAt,
		UpdatedAt:   remote.UpdatedAt,
	}
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "company_name", "location", "remote", "salary_min", "salary_max", "skills", "logo_url", "updated_at",
		}),
	}).Create(&job).Error
}

// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// SchedulerConfig sets job intervals; a zero interval disables that job
type SchedulerConfig struct {
	ExpirySweep         time.Duration
	CatalogRefresh      time.Duration
	LeaderboardSnapshot time.Duration
	SnapshotKey         string
}

// StartGrowthScheduler runs the periodic maintenance jobs until ctx is done.
// snapshots may be nil when object storage is not configured.
func StartGrowthScheduler(ctx context.Context, referrals *ReferralEngine, viral *ViralGrowthEngine, snapshots ObjectWriter, cfg SchedulerConfig) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if cfg.ExpirySweep > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.ExpirySweep),
			gocron.NewTask(func() {
				n, err := referrals.ExpireStaleReferrals(ctx)
				if err != nil {
					log.Printf("❌ [SCHEDULER] Expiry sweep failed: %v", err)
					return
				}
				if n > 0 {
					log.Printf("✅ [SCHEDULER] Expired %d stale referral(s)", n)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	if cfg.CatalogRefresh > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.CatalogRefresh),
			gocron.NewTask(func() {
				if err := referrals.RefreshPrograms(ctx); err != nil {
					log.Printf("❌ [SCHEDULER] Program refresh failed: %v", err)
				}
				if err := viral.RefreshCatalog(ctx); err != nil {
					log.Printf("❌ [SCHEDULER] Campaign refresh failed: %v", err)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	if cfg.LeaderboardSnapshot > 0 && snapshots != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(cfg.LeaderboardSnapshot),
			gocron.NewTask(func() {
				if err := viral.SnapshotLeaderboard(ctx, snapshots, cfg.SnapshotKey); err != nil {
					log.Printf("❌ [SCHEDULER] Leaderboard snapshot failed: %v", err)
				}
			}),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("⚠️ [SCHEDULER] Shutdown: %v", err)
		}
	}()
	return sched, nil
}

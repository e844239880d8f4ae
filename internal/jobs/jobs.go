package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job identifiers.
const (
	JobAddonReleaseRefresh = "addon-release-refresh"
	JobTransientPurge      = "transient-purge"
)

// RegisterDefaults registers the built-in jobs with jm.
func RegisterDefaults(jm *JobManager) {
	jm.Register(JobAddonReleaseRefresh, "Refresh add-on releases", RunAddonReleaseRefresh)
	jm.Register(JobTransientPurge, "Purge expired cache entries", RunTransientPurge)
}

// RunAddonReleaseRefresh warms the release cache for every installed add-on
// and reports how many updates are pending.
func RunAddonReleaseRefresh(app JobContext) (string, error) {
	timeout := app.Config().Addons.FetchTimeout * time.Duration(5)
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rows := app.Resolver().Overview(ctx)
	var installed, updates int
	for _, row := range rows {
		if row.Status.Installed {
			installed++
		}
		if row.UpdateAvailable {
			updates++
		}
	}

	if hub := app.WsHub(); hub != nil {
		if err := hub.BroadcastJSON(map[string]interface{}{"type": "update_count", "count": updates}); err != nil {
			app.Logger().Warn("failed to broadcast update count", zap.Error(err))
		}
	}
	return fmt.Sprintf("Checked %d installed add-ons, %d updates available.", installed, updates), nil
}

// RunTransientPurge deletes expired cache rows and sessions.
func RunTransientPurge(app JobContext) (string, error) {
	st := app.Store()
	transients, err := st.PurgeExpiredTransients()
	if err != nil {
		return "", fmt.Errorf("purging transients: %w", err)
	}
	sessions, err := st.PurgeExpiredSessions()
	if err != nil {
		return "", fmt.Errorf("purging sessions: %w", err)
	}
	return fmt.Sprintf("Removed %d expired cache entries and %d expired sessions.", transients, sessions), nil
}

// StartScheduler schedules the built-in jobs and starts the scheduler in the
// background. The caller stops it with Stop.
func StartScheduler(app JobContext) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	cfg := app.Config().Addons
	schedule := map[string]time.Duration{
		JobAddonReleaseRefresh: cfg.RefreshInterval,
		JobTransientPurge:      cfg.PurgeInterval,
	}
	logger := app.Logger().Named("scheduler")

	for id, interval := range schedule {
		if interval <= 0 {
			logger.Info("job interval is 0, scheduled run is disabled", zap.String("job", id))
			continue
		}
		jobID := id
		logger.Info("scheduling job", zap.String("job", jobID), zap.Duration("every", interval))
		// Submit through the manager so manual and scheduled runs never overlap.
		_, err := s.Every(interval).Do(func() {
			if err := app.JobManager().RunJob(jobID, app); err != nil {
				logger.Warn("scheduled job could not start", zap.String("job", jobID), zap.Error(err))
			}
		})
		if err != nil {
			return nil, fmt.Errorf("scheduling %s: %w", jobID, err)
		}
	}

	s.StartAsync()
	return s, nil
}

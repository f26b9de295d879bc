package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SystemActorID = "system"

	sweepLockName = "project_sweep"
	sweepLockKey  = "global"
	sweepLeaseTTL = 10 * time.Minute

	autoStartReason    = "Auto-started: start date reached"
	autoCompleteReason = "Auto-completed: end date passed"
)

// SweepReport lists what one sweep did.
type SweepReport struct {
	Skipped     bool     `json:"skipped"`
	Started     []string `json:"started"`
	Completed   []string `json:"completed"`
	Failed      []string `json:"failed"`
	LogsDeleted int64    `json:"logsDeleted"`
}

// ProjectScheduler starts SHARED projects whose start date has come and
// completes ONSITE projects whose end date has passed. A lease row keeps
// concurrent instances from sweeping twice.
type ProjectScheduler struct {
	db               *gorm.DB
	stages           *ProjectStageService
	logs             *SystemLogService
	loc              *time.Location
	instance         string
	logRetentionDays int
	cron             *cron.Cron
	now              func() time.Time
}

func NewProjectScheduler(db *gorm.DB, stages *ProjectStageService, logs *SystemLogService, loc *time.Location, logRetentionDays int) *ProjectScheduler {
	if loc == nil {
		loc = time.UTC
	}
	host, _ := os.Hostname()
	return &ProjectScheduler{
		db:               db,
		stages:           stages,
		logs:             logs,
		loc:              loc,
		instance:         fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		logRetentionDays: logRetentionDays,
		now:              time.Now,
	}
}

// Start runs the sweep on schedule, a standard 5-field cron expression
// evaluated in the scheduler's location.
func (s *ProjectScheduler) Start(schedule string) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logger.Error().Err(err).Msg("[ProjectScheduler] Sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	logger.Infof("[ProjectScheduler] Scheduled at %q (%s)", schedule, s.loc)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ProjectScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce sweeps once. Each project moves in its own transaction; one
// failure is logged and does not stop the others.
func (s *ProjectScheduler) RunOnce(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{Started: []string{}, Completed: []string{}, Failed: []string{}}

	held, err := s.acquireLease(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lease: %w", err)
	}
	if !held {
		logger.Info().Msg("[ProjectScheduler] Another instance holds the sweep lease, skipping")
		report.Skipped = true
		return report, nil
	}
	defer s.releaseLease()

	today := civilDay(s.now(), s.loc)

	toStart, err := s.dueProjects(ctx, models.ProjectStageShared, func(p *models.Project) bool {
		return p.StartDate != nil && civilDay(*p.StartDate, s.loc) <= today
	})
	if err != nil {
		return nil, err
	}
	for _, id := range toStart {
		if s.advance(ctx, id, TransitionStart, autoStartReason) {
			report.Started = append(report.Started, id)
		} else {
			report.Failed = append(report.Failed, id)
		}
	}

	toComplete, err := s.dueProjects(ctx, models.ProjectStageOnsite, func(p *models.Project) bool {
		return p.EndDate != nil && civilDay(*p.EndDate, s.loc) < today
	})
	if err != nil {
		return nil, err
	}
	for _, id := range toComplete {
		if s.advance(ctx, id, TransitionComplete, autoCompleteReason) {
			report.Completed = append(report.Completed, id)
		} else {
			report.Failed = append(report.Failed, id)
		}
	}

	if s.logs != nil && s.logRetentionDays > 0 {
		deleted, err := s.logs.CleanupOldLogs(s.logRetentionDays)
		if err != nil {
			logger.Warn().Err(err).Msg("[ProjectScheduler] Audit log cleanup failed")
		}
		report.LogsDeleted = deleted
	}

	logger.Info().
		Int("started", len(report.Started)).
		Int("completed", len(report.Completed)).
		Int("failed", len(report.Failed)).
		Msg("[ProjectScheduler] Sweep finished")
	return report, nil
}

func (s *ProjectScheduler) dueProjects(ctx context.Context, stage models.ProjectStage, due func(*models.Project) bool) ([]string, error) {
	var projects []models.Project
	if err := s.db.WithContext(ctx).
		Where("stage = ?", stage).
		Order("created_at").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("load %s projects: %w", stage, err)
	}
	var ids []string
	for i := range projects {
		if due(&projects[i]) {
			ids = append(ids, projects[i].ID)
		}
	}
	return ids, nil
}

func (s *ProjectScheduler) advance(ctx context.Context, projectID string, t Transition, reason string) bool {
	_, err := s.stages.Transition(ctx, projectID, t, &TransitionRequest{
		ChangeReason: reason,
		ActorID:      SystemActorID,
	})
	if err != nil {
		logger.Error().Err(err).
			Str("project_id", projectID).
			Str("transition", string(t)).
			Msg("[ProjectScheduler] Automatic transition failed")
		return false
	}
	return true
}

func (s *ProjectScheduler) acquireLease(ctx context.Context) (bool, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	lease := models.SchedulerLock{
		LockName:  sweepLockName,
		LockKey:   sweepLockKey,
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(sweepLeaseTTL),
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lease)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// take over a lease its holder never released
	res = db.Model(&models.SchedulerLock{}).
		Where("lock_name = ? AND lock_key = ? AND expires_at < ?", sweepLockName, sweepLockKey, now).
		Updates(map[string]interface{}{
			"locked_by":  s.instance,
			"locked_at":  now,
			"expires_at": now.Add(sweepLeaseTTL),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *ProjectScheduler) releaseLease() {
	if err := s.db.
		Where("lock_name = ? AND lock_key = ? AND locked_by = ?", sweepLockName, sweepLockKey, s.instance).
		Delete(&models.SchedulerLock{}).Error; err != nil {
		logger.Warn().Err(err).Msg("[ProjectScheduler] Failed to release sweep lease")
	}
}

package service

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openshelf/shelfcast/internal/models"
)

// RunLogService records one row per pipeline invocation, scheduled or
// manually triggered.
type RunLogService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRunLogService(db *gorm.DB, logger *zap.Logger) *RunLogService {
	return &RunLogService{db: db, logger: logger}
}

// Record writes the run outcome. summary may be any JSON-serializable
// value; a nil runErr marks the run ok. Logging state must never fail the
// job itself, so errors here are logged and swallowed.
func (s *RunLogService) Record(job string, startedAt time.Time, summary any, runErr error) {
	now := time.Now()
	run := &models.JobRun{
		Job:        job,
		Status:     models.JobRunStatusOK,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}
	if runErr != nil {
		run.Status = models.JobRunStatusFailed
		run.Error = runErr.Error()
	}
	if summary != nil {
		if data, err := json.Marshal(summary); err == nil {
			run.Summary = string(data)
		}
	}

	if err := s.db.Create(run).Error; err != nil {
		s.logger.Error("Failed to record job run",
			zap.String("job", job),
			zap.Error(err))
	}
}

// RecentRuns returns the latest runs for the dashboardish history endpoint.
func (s *RunLogService) RecentRuns(limit int) ([]models.JobRun, error) {
	var runs []models.JobRun
	err := s.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

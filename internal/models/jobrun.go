package models

import (
	"time"
)

// JobRun statuses.
const (
	JobRunStatusOK     = "ok"
	JobRunStatusFailed = "failed"
)

// JobRun records one pipeline invocation, scheduled or manually triggered.
type JobRun struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Job        string     `gorm:"not null;size:100;index" json:"job"`
	Status     string     `gorm:"not null;size:50" json:"status"`
	Summary    string     `gorm:"type:text" json:"summary"`
	Error      string     `gorm:"type:text" json:"error"`
	StartedAt  time.Time  `gorm:"not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

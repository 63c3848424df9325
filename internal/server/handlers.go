package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// dailyResult summarizes one daily schedule-then-publish cycle.
type dailyResult struct {
	Scheduled int      `json:"scheduled"`
	Errors    []string `json:"errors,omitempty"`
}

// quarterHourlyResult summarizes one engage cycle across both pipelines.
type quarterHourlyResult struct {
	Outreach   any      `json:"outreach,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// runDaily schedules tomorrow's posts for every platform, then publishes
// today's scheduled posts. Used by both the cron scheduler and the trigger
// route.
func (s *Server) runDaily(ctx context.Context) error {
	started := time.Now()
	result, err := s.daily(ctx)
	s.RunLog.Record("daily", started, result, err)
	return err
}

func (s *Server) daily(ctx context.Context) (*dailyResult, error) {
	result := &dailyResult{}
	var errs []error

	created, err := s.Distribution.SchedulePosts(ctx)
	result.Scheduled = len(created)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		errs = append(errs, err)
	}

	if err := s.Distribution.PublishScheduledPosts(ctx); err != nil {
		result.Errors = append(result.Errors, err.Error())
		errs = append(errs, err)
	}

	return result, errors.Join(errs...)
}

// runQuarterHourly drives the X outreach sweep and the Reddit suggestion
// pass. Pipeline-internal item failures live in the summaries; only a hard
// pipeline failure makes the run fail.
func (s *Server) runQuarterHourly(ctx context.Context) error {
	started := time.Now()
	result, err := s.quarterHourly(ctx)
	s.RunLog.Record("quarter-hourly", started, result, err)
	return err
}

func (s *Server) quarterHourly(ctx context.Context) (*quarterHourlyResult, error) {
	result := &quarterHourlyResult{}
	var errs []error

	if s.Outreach != nil {
		summary, err := s.Outreach.Run(ctx)
		if err != nil {
			result.Errors = append(result.Errors, "outreach: "+err.Error())
			errs = append(errs, err)
		} else {
			result.Outreach = summary
		}
	}

	if s.Suggestion != nil {
		message, err := s.Suggestion.Run(ctx)
		if err != nil {
			result.Errors = append(result.Errors, "suggestion: "+err.Error())
			errs = append(errs, err)
		} else {
			result.Suggestion = message
		}
	}

	return result, errors.Join(errs...)
}

func (s *Server) handleDaily(c *gin.Context) {
	started := time.Now()
	result, err := s.daily(c.Request.Context())
	s.RunLog.Record("daily", started, result, err)
	if err != nil {
		s.Logger.Error("Daily job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleQuarterHourly(c *gin.Context) {
	started := time.Now()
	result, err := s.quarterHourly(c.Request.Context())
	s.RunLog.Record("quarter-hourly", started, result, err)
	if err != nil {
		s.Logger.Error("Quarter-hourly job failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "result": result})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAdminJob(c *gin.Context) {
	switch c.Param("name") {
	case "daily":
		s.handleDaily(c)
	case "quarter-hourly":
		s.handleQuarterHourly(c)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
	}
}

func (s *Server) handleRecentRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	runs, err := s.RunLog.RecentRuns(limit)
	if err != nil {
		s.Logger.Error("Failed to list job runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

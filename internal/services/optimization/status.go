package optimization

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StatusView is a job as reported to operators
type StatusView struct {
	ID                  uint             `json:"id"`
	Algorithm           string           `json:"algorithm"`
	Status              models.JobStatus `json:"status"`
	Progress            int              `json:"progress"`
	StartedAt           time.Time        `json:"started_at"`
	FinishedAt          *time.Time       `json:"finished_at,omitempty"`
	EstimatedDuration   int              `json:"estimated_duration"`
	ExecutionSeconds    float64          `json:"execution_seconds"`
	Result              datatypes.JSON   `json:"result,omitempty"`
	Metrics             datatypes.JSON   `json:"metrics,omitempty"`
	Error               string           `json:"error,omitempty"`
	RecommendationCount int64            `json:"recommendation_count"`
}

// Progress estimates completion in percent. A running job never reports
// more than 95 so it cannot look finished before it is.
func Progress(job *models.OptimizationJob, now time.Time) int {
	switch job.Status {
	case models.JobStatusCompleted:
		return 100
	case models.JobStatusRunning:
		if job.EstimatedDuration <= 0 {
			return 0
		}
		pct := now.Sub(job.StartedAt).Seconds() / float64(job.EstimatedDuration) * 100
		if pct < 0 {
			return 0
		}
		if pct > 95 {
			return 95
		}
		return int(pct)
	default:
		return 0
	}
}

// StatusOf builds the operator view of job
func StatusOf(job *models.OptimizationJob, now time.Time, recommendations int64) *StatusView {
	return &StatusView{
		ID:                  job.ID,
		Algorithm:           job.Algorithm,
		Status:              job.Status,
		Progress:            Progress(job, now),
		StartedAt:           job.StartedAt,
		FinishedAt:          job.FinishedAt,
		EstimatedDuration:   job.EstimatedDuration,
		ExecutionSeconds:    job.ExecutionSeconds,
		Result:              job.Result,
		Metrics:             job.Metrics,
		Error:               job.ErrorLog,
		RecommendationCount: recommendations,
	}
}

// Status returns the current state of a job
func (m *Manager) Status(ctx context.Context, id uint) (*StatusView, error) {
	var job models.OptimizationJob
	if err := m.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, notFound(err, id)
	}
	var n int64
	if err := m.db.WithContext(ctx).Model(&models.Recommendation{}).Where("job_id = ?", id).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to count recommendations: %w", err)
	}
	return StatusOf(&job, m.now(), n), nil
}

// Cancel stops a running job and kills its solver
func (m *Manager) Cancel(ctx context.Context, id uint) (*models.OptimizationJob, error) {
	res := m.db.WithContext(ctx).Model(&models.OptimizationJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":      models.JobStatusCancelled,
			"finished_at": m.now(),
			"error_log":   cancelMessage,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel job: %w", res.Error)
	}

	job, err := m.load(id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflictf("job %d is %s and cannot be cancelled", id, job.Status)
	}

	if m.kill(id) {
		log.Printf("🛑 Optimization: job %d cancelled, solver killed", id)
	} else {
		log.Printf("🛑 Optimization: job %d cancelled", id)
	}
	m.notify("job.cancelled", job)
	return job, nil
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Status    models.JobStatus
	Algorithm string
	Page      int
	PerPage   int
}

// Page is one page of jobs, newest first
type Page struct {
	Data    []models.OptimizationJob `json:"data"`
	Total   int64                    `json:"total"`
	Page    int                      `json:"page"`
	PerPage int                      `json:"per_page"`
}

// List returns jobs, newest first
func (m *Manager) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 15
	}

	q := m.db.WithContext(ctx).Model(&models.OptimizationJob{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Algorithm != "" {
		q = q.Where("algorithm = ?", f.Algorithm)
	}

	page := &Page{Page: f.Page, PerPage: f.PerPage}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	err := q.Order("started_at DESC, id DESC").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&page.Data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return page, nil
}

// Delete removes a finished job and its recommendations
func (m *Manager) Delete(ctx context.Context, id uint) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.OptimizationJob
		if err := tx.First(&job, id).Error; err != nil {
			return notFound(err, id)
		}
		if job.Status == models.JobStatusRunning {
			return apperr.Conflictf("job %d is still running", id)
		}
		if err := tx.Where("job_id = ?", id).Delete(&models.Recommendation{}).Error; err != nil {
			return fmt.Errorf("failed to delete recommendations: %w", err)
		}
		if err := tx.Delete(&job).Error; err != nil {
			return fmt.Errorf("failed to delete job: %w", err)
		}
		return nil
	})
}

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("optimization job", id)
	}
	return fmt.Errorf("failed to load job %d: %w", id, err)
}

package recommendation

import (
	"context"
	"fmt"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/models"
)

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Status    models.RecommendationStatus
	JobID     uint
	Algorithm string
	Page      int
	PerPage   int
}

// Page is one page of recommendations
type Page struct {
	Data    []models.Recommendation `json:"data"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
}

// List returns recommendations, highest priority and confidence first
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 15
	}

	q := s.db.WithContext(ctx).Model(&models.Recommendation{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.JobID != 0 {
		q = q.Where("job_id = ?", f.JobID)
	}
	if f.Algorithm != "" {
		q = q.Where("algorithm = ?", f.Algorithm)
	}

	page := &Page{Page: f.Page, PerPage: f.PerPage}
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count recommendations: %w", err)
	}
	err := q.Preload("Item").Preload("CurrentArea").Preload("TargetArea").
		Order("CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").
		Order("confidence DESC, id").
		Offset((f.Page - 1) * f.PerPage).Limit(f.PerPage).
		Find(&page.Data).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return page, nil
}

// Get loads one recommendation with its job, item and areas
func (s *Service) Get(ctx context.Context, id uint) (*models.Recommendation, error) {
	var rec models.Recommendation
	err := s.db.WithContext(ctx).
		Preload("Job").Preload("Item").Preload("CurrentArea").Preload("TargetArea").
		First(&rec, id).Error
	if err != nil {
		return nil, notFound(err, id)
	}
	return &rec, nil
}

// Delete removes one recommendation
func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Recommendation{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete recommendation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("recommendation", id)
	}
	return nil
}

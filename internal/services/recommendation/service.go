// Package recommendation stores solver-proposed placements and moves them
// through review: pending, approved or rejected, and finally implemented.
package recommendation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/placement"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultConfidence = 0.5
	defaultAlgorithm  = "Manual"
)

// transitions lists the legal status changes. Implemented is terminal.
var transitions = map[models.RecommendationStatus][]models.RecommendationStatus{
	models.RecommendationPending:  {models.RecommendationApproved, models.RecommendationRejected},
	models.RecommendationApproved: {models.RecommendationPending, models.RecommendationRejected, models.RecommendationImplemented},
	models.RecommendationRejected: {models.RecommendationPending, models.RecommendationApproved},
}

// CanTransition reports whether a recommendation may move from one status
// to another. Staying in the same status is always allowed.
func CanTransition(from, to models.RecommendationStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Proposal is one suggested placement in a bulk create
type Proposal struct {
	ItemID        uint            `json:"item_id"`
	CurrentAreaID *uint           `json:"current_area_id"`
	TargetAreaID  uint            `json:"target_area_id"`
	TargetX       *float64        `json:"x"`
	TargetY       *float64        `json:"y"`
	Reason        string          `json:"reason"`
	Priority      models.Priority `json:"priority"`
	Confidence    *float64        `json:"confidence"`
	Algorithm     string          `json:"algorithm"`
}

// Service handles recommendation operations
type Service struct {
	db  *database.DB
	now func() time.Time
}

// NewService creates a new recommendation service
func NewService(db *database.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// BulkCreate stores every proposal as pending, or none of them
func (s *Service) BulkCreate(ctx context.Context, jobID uint, proposals []Proposal) ([]models.Recommendation, error) {
	var recs []models.Recommendation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		recs, err = BulkCreateTx(tx, jobID, proposals)
		return err
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// BulkCreateTx is BulkCreate inside the caller's transaction. All
// references are checked before anything is written.
func BulkCreateTx(tx *gorm.DB, jobID uint, proposals []Proposal) ([]models.Recommendation, error) {
	if len(proposals) == 0 {
		return nil, apperr.Invalid("recommendations", "at least one recommendation is required")
	}

	var job models.OptimizationJob
	if err := tx.Select("id", "algorithm").First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("optimization job", jobID)
		}
		return nil, fmt.Errorf("load job: %w", err)
	}

	itemIDs := make([]uint, 0, len(proposals))
	areaIDs := make([]uint, 0, len(proposals))
	for _, p := range proposals {
		itemIDs = append(itemIDs, p.ItemID)
		areaIDs = append(areaIDs, p.TargetAreaID)
		if p.CurrentAreaID != nil {
			areaIDs = append(areaIDs, *p.CurrentAreaID)
		}
	}
	items, err := existing(tx, &models.Item{}, itemIDs)
	if err != nil {
		return nil, err
	}
	areas, err := existing(tx, &models.StorageArea{}, areaIDs)
	if err != nil {
		return nil, err
	}

	v := &apperr.ValidationError{}
	recs := make([]models.Recommendation, 0, len(proposals))
	for i, p := range proposals {
		field := fmt.Sprintf("recommendations[%d]", i)
		if !items[p.ItemID] {
			v.Add(field+".item_id", fmt.Sprintf("item %d does not exist", p.ItemID))
		}
		if !areas[p.TargetAreaID] {
			v.Add(field+".target_area_id", fmt.Sprintf("storage area %d does not exist", p.TargetAreaID))
		}
		if p.CurrentAreaID != nil && !areas[*p.CurrentAreaID] {
			v.Add(field+".current_area_id", fmt.Sprintf("storage area %d does not exist", *p.CurrentAreaID))
		}
		if strings.TrimSpace(p.Reason) == "" {
			v.Add(field+".reason", "required")
		}

		priority := p.Priority
		if priority == "" {
			priority = models.PriorityMedium
		}
		if !priority.Valid() {
			v.Add(field+".priority", "must be low, medium or high")
		}
		confidence := defaultConfidence
		if p.Confidence != nil {
			confidence = *p.Confidence
		}
		if confidence < 0 || confidence > 1 {
			v.Add(field+".confidence", "must be between 0 and 1")
		}
		algorithm := p.Algorithm
		if algorithm == "" {
			algorithm = defaultAlgorithm
		}

		recs = append(recs, models.Recommendation{
			JobID:         jobID,
			ItemID:        p.ItemID,
			CurrentAreaID: p.CurrentAreaID,
			TargetAreaID:  p.TargetAreaID,
			TargetX:       p.TargetX,
			TargetY:       p.TargetY,
			Reason:        strings.TrimSpace(p.Reason),
			Confidence:    confidence,
			Priority:      priority,
			Algorithm:     algorithm,
			Status:        models.RecommendationPending,
		})
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	if err := tx.Create(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to store recommendations: %w", err)
	}
	return recs, nil
}

// existing returns which of ids are present in model's table
func existing(tx *gorm.DB, model interface{}, ids []uint) (map[uint]bool, error) {
	var found []uint
	if err := tx.Model(model).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("check references: %w", err)
	}
	set := make(map[uint]bool, len(found))
	for _, id := range found {
		set[id] = true
	}
	return set, nil
}

// UpdateStatus moves one recommendation along the transition table.
// Entering approved or rejected stamps the approver and time.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status models.RecommendationStatus, note, approver string) (*models.Recommendation, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "must be pending, approved, rejected or implemented")
	}

	var rec models.Recommendation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error; err != nil {
			return notFound(err, id)
		}
		if !CanTransition(rec.Status, status) {
			return apperr.Conflictf("recommendation %d cannot move from %s to %s", id, rec.Status, status)
		}

		updates := map[string]interface{}{"status": status}
		if note != "" {
			updates["note"] = note
		}
		if rec.Status != status && (status == models.RecommendationApproved || status == models.RecommendationRejected) {
			now := s.now()
			updates["approved_by"] = approver
			updates["approved_at"] = now
		}
		if err := tx.Model(&rec).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&rec, id).Error
	})
	if err != nil {
		return nil, passDomain("failed to update recommendation", err)
	}
	return &rec, nil
}

// BulkApprove approves every pending or rejected recommendation among ids
// and returns how many rows changed. Repeating the call changes nothing.
func (s *Service) BulkApprove(ctx context.Context, ids []uint, note, approver string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.Invalid("recommendation_ids", "at least one id is required")
	}

	updates := map[string]interface{}{
		"status":      models.RecommendationApproved,
		"approved_by": approver,
		"approved_at": s.now(),
	}
	if note != "" {
		updates["note"] = note
	}
	res := s.db.WithContext(ctx).Model(&models.Recommendation{}).
		Where("id IN ? AND status IN ?", ids, []models.RecommendationStatus{
			models.RecommendationPending, models.RecommendationRejected,
		}).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to approve recommendations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Statistics summarizes recommendations, optionally for one job
type Statistics struct {
	Total        int64                     `json:"total"`
	Pending      int64                     `json:"pending"`
	Approved     int64                     `json:"approved"`
	Rejected     int64                     `json:"rejected"`
	Implemented  int64                     `json:"implemented"`
	ApprovalRate float64                   `json:"approval_rate"`
	ByPriority   map[models.Priority]int64 `json:"by_priority"`
}

// Statistics counts by status and priority. jobID 0 covers all jobs.
func (s *Service) Statistics(ctx context.Context, jobID uint) (*Statistics, error) {
	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.Recommendation{})
		if jobID != 0 {
			q = q.Where("job_id = ?", jobID)
		}
		return q
	}

	var byStatus []struct {
		Status models.RecommendationStatus
		N      int64
	}
	if err := base().Select("status, COUNT(*) AS n").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count recommendations: %w", err)
	}
	var byPriority []struct {
		Priority models.Priority
		N        int64
	}
	if err := base().Select("priority, COUNT(*) AS n").Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, fmt.Errorf("failed to count recommendations: %w", err)
	}

	stats := &Statistics{ByPriority: map[models.Priority]int64{
		models.PriorityHigh: 0, models.PriorityMedium: 0, models.PriorityLow: 0,
	}}
	for _, row := range byStatus {
		stats.Total += row.N
		switch row.Status {
		case models.RecommendationPending:
			stats.Pending = row.N
		case models.RecommendationApproved:
			stats.Approved = row.N
		case models.RecommendationRejected:
			stats.Rejected = row.N
		case models.RecommendationImplemented:
			stats.Implemented = row.N
		}
	}
	for _, row := range byPriority {
		stats.ByPriority[row.Priority] = row.N
	}
	if stats.Total > 0 {
		stats.ApprovalRate = math.Round(float64(stats.Approved)/float64(stats.Total)*10000) / 100
	}
	return stats, nil
}

// Implemented is the outcome of carrying out a recommendation
type Implemented struct {
	Recommendation *models.Recommendation `json:"recommendation"`
	Placement      *models.Placement      `json:"placement"`
}

// Implement places quantity units of the recommended item into the target
// area and marks the recommendation implemented. Only approved
// recommendations can be implemented; capacity rules apply as usual.
func (s *Service) Implement(ctx context.Context, id uint, quantity int, actor string) (*Implemented, error) {
	if quantity < 1 {
		return nil, apperr.Invalid("quantity", "must be at least 1")
	}

	out := &Implemented{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.Recommendation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, id).Error; err != nil {
			return notFound(err, id)
		}
		if rec.Status != models.RecommendationApproved {
			return apperr.Conflictf("recommendation %d is %s, only approved recommendations can be implemented", id, rec.Status)
		}

		var area models.StorageArea
		if err := tx.First(&area, rec.TargetAreaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("storage area", rec.TargetAreaID)
			}
			return err
		}

		p := &models.Placement{
			WarehouseID: area.WarehouseID,
			AreaID:      area.ID,
			ItemID:      rec.ItemID,
			Quantity:    quantity,
			PlacedAt:    s.now(),
			Status:      models.PlacementStatusPlaced,
			Note:        fmt.Sprintf("implemented from recommendation #%d", rec.ID),
			CreatedBy:   actor,
		}
		if err := placement.CreateTx(tx, p); err != nil {
			return err
		}

		res := tx.Model(&models.Recommendation{}).
			Where("id = ? AND status = ?", rec.ID, models.RecommendationApproved).
			Update("status", models.RecommendationImplemented)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflictf("recommendation %d changed while being implemented", id)
		}
		rec.Status = models.RecommendationImplemented

		out.Recommendation = &rec
		out.Placement = p
		return nil
	})
	if err != nil {
		return nil, passDomain("failed to implement recommendation", err)
	}
	return out, nil
}

func notFound(err error, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("recommendation", id)
	}
	return err
}

func passDomain(msg string, err error) error {
	var (
		v  *apperr.ValidationError
		nf *apperr.NotFoundError
		ce *apperr.CapacityExceededError
		cf *apperr.ConflictError
	)
	if errors.As(err, &v) || errors.As(err, &nf) || errors.As(err, &ce) || errors.As(err, &cf) {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

package optimization

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/services/recommendation"
	"github.com/xelth-com/eckslot/internal/solver"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ResultSink persists what a solver reported for a job
type ResultSink interface {
	// Record stores the report of a running job. It returns false when the
	// job had already left the running state and the report was dropped.
	Record(ctx context.Context, jobID uint, outcome *solver.Outcome) (bool, error)
}

// DBSink writes reports and their recommendations in one transaction
type DBSink struct {
	db  *database.DB
	now func() time.Time
}

// NewDBSink creates a sink over db
func NewDBSink(db *database.DB) *DBSink {
	return &DBSink{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Record implements ResultSink
func (s *DBSink) Record(ctx context.Context, jobID uint, outcome *solver.Outcome) (bool, error) {
	report := outcome.Report
	if report == nil {
		return false, nil
	}

	status := models.JobStatusCompleted
	if report.Status == string(models.JobStatusFailed) {
		status = models.JobStatusFailed
	}
	finished := s.now()

	recorded := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.OptimizationJob
		if err := tx.Select("id", "algorithm").First(&job, jobID).Error; err != nil {
			return fmt.Errorf("load job: %w", err)
		}

		updates := map[string]interface{}{
			"status":            status,
			"finished_at":       finished,
			"execution_seconds": outcome.Duration.Seconds(),
			"result":            rawJSON(report.Result),
			"metrics":           rawJSON(report.Metrics),
		}
		if status == models.JobStatusFailed {
			msg := report.Error
			if msg == "" {
				msg = "solver reported failure"
			}
			updates["error_log"] = msg
		}
		res := tx.Model(&models.OptimizationJob{}).
			Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			log.Printf("⚠️ Optimization: late result for job %d ignored", jobID)
			return nil
		}
		recorded = true

		if status != models.JobStatusCompleted || len(report.Recommendations) == 0 {
			return nil
		}
		proposals := make([]recommendation.Proposal, 0, len(report.Recommendations))
		for _, p := range report.Recommendations {
			proposals = append(proposals, recommendation.Proposal{
				ItemID:        p.ItemID,
				CurrentAreaID: p.CurrentAreaID,
				TargetAreaID:  p.TargetAreaID,
				TargetX:       p.TargetX,
				TargetY:       p.TargetY,
				Reason:        p.Reason,
				Priority:      models.Priority(p.Priority),
				Confidence:    p.Confidence,
				Algorithm:     job.Algorithm,
			})
		}
		_, err := recommendation.BulkCreateTx(tx, jobID, proposals)
		return err
	})
	if err != nil {
		return false, err
	}
	return recorded, nil
}

func rawJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

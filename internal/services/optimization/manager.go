// Package optimization runs placement optimization jobs. A job is created
// in the running state, the external solver is invoked synchronously with
// a snapshot of the warehouse, and whatever it reports is recorded. A job
// that is cancelled while its solver runs has the process killed; a report
// arriving afterwards is dropped.
package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/solver"
)

const (
	cancelMessage   = "optimization cancelled by user"
	genericFailure  = "optimization run failed"
	noReportMessage = "solver exited without reporting a result"
)

// Notifier receives job lifecycle events
type Notifier interface {
	Notify(event string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, interface{}) {}

// Options configures a Manager
type Options struct {
	Tuning   config.SolverTuning
	Debug    bool // expose solver diagnostics to callers
	Sink     ResultSink
	Notifier Notifier
}

// Manager owns the lifecycle of optimization jobs
type Manager struct {
	db       *database.DB
	registry *solver.Registry
	sink     ResultSink
	notifier Notifier
	tuning   config.SolverTuning
	debug    bool
	now      func() time.Time

	mu       sync.Mutex
	inflight map[uint]context.CancelFunc
}

// NewManager creates a job manager
func NewManager(db *database.DB, registry *solver.Registry, opts Options) *Manager {
	m := &Manager{
		db:       db,
		registry: registry,
		sink:     opts.Sink,
		notifier: opts.Notifier,
		tuning:   opts.Tuning,
		debug:    opts.Debug,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[uint]context.CancelFunc),
	}
	if m.sink == nil {
		m.sink = NewDBSink(db)
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	if m.tuning == (config.SolverTuning{}) {
		m.tuning = config.DefaultSolverTuning()
	}
	return m
}

// RunResult is returned by a successful or cancelled Submit
type RunResult struct {
	Job                 *models.OptimizationJob `json:"job"`
	RecommendationCount int64                   `json:"recommendation_count"`
	Output              string                  `json:"output,omitempty"` // debug only
}

// Submit validates req, creates a running job and runs the solver to
// completion. Failures after the job exists are returned as
// *apperr.JobFailedError with the job already marked failed.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*RunResult, error) {
	params, err := resolve(m.db.WithContext(ctx), req, m.tuning)
	if err != nil {
		return nil, err
	}
	algo, ok := m.registry.Get(params.Algorithm)
	if !ok {
		return nil, apperr.Invalid("algorithm", fmt.Sprintf("unknown algorithm %q", params.Algorithm))
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, m.publicError(0, fmt.Errorf("marshal parameters: %w", err))
	}
	job := &models.OptimizationJob{
		Algorithm:         algo.Name,
		Parameters:        raw,
		Objective:         params.Objective,
		EstimatedDuration: defaultEstimatedDuration,
		Status:            models.JobStatusRunning,
		StartedAt:         m.now(),
		CreatedBy:         req.CreatedBy,
	}
	if err := m.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, m.publicError(0, fmt.Errorf("create job: %w", err))
	}
	log.Printf("🧮 Optimization: job %d started (%s, %d warehouses, %d items)",
		job.ID, algo.Code, len(params.WarehouseIDs), len(params.ItemIDs))
	m.notify("job.started", job)

	return m.execute(ctx, job, algo, params, raw)
}

func (m *Manager) execute(ctx context.Context, job *models.OptimizationJob, algo solver.Algorithm, params *Parameters, raw json.RawMessage) (*RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	m.track(job.ID, cancel)
	defer func() {
		m.untrack(job.ID)
		cancel()
	}()

	snap, err := takeSnapshot(m.db.WithContext(ctx), params.WarehouseIDs, params.ItemIDs, m.now())
	if err != nil {
		return nil, m.fail(job.ID, err)
	}

	outcome, runErr := algo.Runner.Run(runCtx, solver.Request{JobID: job.ID, Params: raw, State: snap})
	if outcome != nil {
		// the job row may already be terminal; timing is still recorded
		if err := m.db.Model(&models.OptimizationJob{}).Where("id = ?", job.ID).
			Update("execution_seconds", outcome.Duration.Seconds()).Error; err != nil {
			log.Printf("⚠️ Optimization: cannot record execution time of job %d: %v", job.ID, err)
		}
	}

	if runErr != nil {
		if current, err := m.load(job.ID); err == nil && current.Status == models.JobStatusCancelled {
			log.Printf("🛑 Optimization: job %d cancelled", job.ID)
			return &RunResult{Job: current}, nil
		}
		return nil, m.fail(job.ID, runErr)
	}
	if outcome == nil {
		outcome = &solver.Outcome{}
	}

	if outcome.Report != nil {
		if _, err := m.sink.Record(context.Background(), job.ID, outcome); err != nil {
			return nil, m.fail(job.ID, fmt.Errorf("record solver report: %w", err))
		}
	}

	// the solver may have written the job row itself, so the stored row wins
	current, err := m.load(job.ID)
	if err != nil {
		return nil, m.fail(job.ID, err)
	}
	switch current.Status {
	case models.JobStatusRunning:
		return nil, m.fail(job.ID, errors.New(noReportMessage))
	case models.JobStatusFailed:
		m.notify("job.failed", current)
		return nil, m.publicError(job.ID, errors.New(current.ErrorLog))
	}

	result := &RunResult{Job: current}
	if err := m.db.Model(&models.Recommendation{}).Where("job_id = ?", job.ID).Count(&result.RecommendationCount).Error; err != nil {
		return nil, fmt.Errorf("count recommendations: %w", err)
	}
	if m.debug {
		result.Output = outcome.Output
	}
	log.Printf("✅ Optimization: job %d %s with %d recommendations in %.1fs",
		job.ID, current.Status, result.RecommendationCount, outcome.Duration.Seconds())
	m.notify("job."+string(current.Status), current)
	return result, nil
}

// fail marks a running job failed with cause as its diagnostic and returns
// the error callers should see
func (m *Manager) fail(jobID uint, cause error) error {
	diag := cause.Error()
	var perr *apperr.ProcessError
	if errors.As(cause, &perr) {
		diag = perr.Diagnostic
	}

	res := m.db.Model(&models.OptimizationJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusRunning).
		Updates(map[string]interface{}{
			"status":      models.JobStatusFailed,
			"finished_at": m.now(),
			"error_log":   diag,
		})
	if res.Error != nil {
		log.Printf("❌ Optimization: could not mark job %d failed: %v", jobID, res.Error)
	}
	log.Printf("❌ Optimization: job %d failed: %v", jobID, cause)
	if job, err := m.load(jobID); err == nil {
		m.notify("job.failed", job)
	}
	return m.publicError(jobID, cause)
}

func (m *Manager) publicError(jobID uint, cause error) error {
	msg := genericFailure
	if m.debug {
		msg = genericFailure + ": " + cause.Error()
	}
	return &apperr.JobFailedError{JobID: jobID, Message: msg, Cause: cause}
}

func (m *Manager) load(id uint) (*models.OptimizationJob, error) {
	var job models.OptimizationJob
	if err := m.db.First(&job, id).Error; err != nil {
		return nil, notFound(err, id)
	}
	return &job, nil
}

func (m *Manager) notify(event string, job *models.OptimizationJob) {
	m.notifier.Notify(event, StatusOf(job, m.now(), 0))
}

func (m *Manager) track(id uint, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[id] = cancel
}

func (m *Manager) untrack(id uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

// kill stops the solver of a job running in this process, if any
func (m *Manager) kill(id uint) bool {
	m.mu.Lock()
	cancel, ok := m.inflight[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

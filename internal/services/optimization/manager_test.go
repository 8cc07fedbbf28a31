package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckslot/internal/apperr"
	"github.com/xelth-com/eckslot/internal/config"
	"github.com/xelth-com/eckslot/internal/database"
	"github.com/xelth-com/eckslot/internal/database/dbtest"
	"github.com/xelth-com/eckslot/internal/models"
	"github.com/xelth-com/eckslot/internal/solver"
	"gorm.io/datatypes"
)

type runnerFunc func(ctx context.Context, req solver.Request) (*solver.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
	return f(ctx, req)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Notify(event string, _ interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fixture struct {
	db     *database.DB
	m      *Manager
	events *recorder
	wh     *models.Warehouse
	area   *models.StorageArea
	items  []*models.Item
}

func setup(t *testing.T, runner solver.Runner, debug bool) *fixture {
	t.Helper()
	db := dbtest.Open(t)

	registry := solver.NewRegistry()
	require.NoError(t, registry.Register(solver.Algorithm{
		Code:   "simulated_annealing",
		Name:   "Simulated Annealing",
		Runner: runner,
	}))

	f := &fixture{db: db, events: &recorder{}}
	f.m = NewManager(db, registry, Options{Debug: debug, Notifier: f.events})
	f.wh = dbtest.Warehouse(t, db, "Main", 20, 10, 5)
	f.area = dbtest.Area(t, db, f.wh.ID, "A1", 0, 0, 5, 5, 2, 10)
	f.items = []*models.Item{
		dbtest.CubeItem(t, db, "I1"),
		dbtest.CubeItem(t, db, "I2"),
	}
	return f
}

// script writes an sh solver into a temp dir and returns a runner for it
func script(t *testing.T, body string) solver.Runner {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solver.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return solver.NewProcessRunner(solver.Config{Interpreter: "sh", ScriptPath: path, Timeout: 20 * time.Second})
}

func (f *fixture) job(t *testing.T, id uint) *models.OptimizationJob {
	t.Helper()
	var job models.OptimizationJob
	require.NoError(t, f.db.First(&job, id).Error)
	return &job
}

// noJSON reports an unset JSON column, which scans back as "null"
func noJSON(j datatypes.JSON) bool {
	return len(j) == 0 || string(j) == "null"
}

func completedReport() *solver.Outcome {
	return &solver.Outcome{Report: &solver.Report{Status: "completed", Result: json.RawMessage(`{"moves":0}`)}}
}

func TestSubmitDefaultsToActiveWarehousesAndAllItems(t *testing.T) {
	var got solver.Request
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		got = req
		return completedReport(), nil
	}), false)

	dbtest.Warehouse(t, f.db, "Overflow", 10, 10, 5)
	closed := dbtest.Warehouse(t, f.db, "Closed", 10, 10, 5)
	require.NoError(t, f.db.Model(closed).Update("is_active", false).Error)
	for i := 3; i <= 6; i++ {
		dbtest.CubeItem(t, f.db, fmt.Sprintf("I%d", i))
	}
	retired := dbtest.CubeItem(t, f.db, "RETIRED")
	require.NoError(t, f.db.Model(retired).Update("is_active", false).Error)

	res, err := f.m.Submit(context.Background(), SubmitRequest{CreatedBy: "7"})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, res.Job.Status)
	assert.Equal(t, "Simulated Annealing", res.Job.Algorithm)
	assert.Equal(t, 300, res.Job.EstimatedDuration)
	assert.Equal(t, "7", res.Job.CreatedBy)
	require.NotNil(t, res.Job.FinishedAt)

	var params Parameters
	require.NoError(t, json.Unmarshal(res.Job.Parameters, &params))
	assert.Len(t, params.WarehouseIDs, 2)
	assert.NotContains(t, params.WarehouseIDs, closed.ID)
	assert.Len(t, params.ItemIDs, 7)
	assert.Contains(t, params.ItemIDs, retired.ID)
	assert.Equal(t, ModeSpaceUtilization, params.PriorityMode)
	assert.Equal(t, 80.0, params.TargetUtilization)
	assert.Equal(t, 1000.0, params.Tuning.TemperatureInitial)
	assert.Equal(t, 0.95, params.Tuning.CoolingRate)

	assert.Equal(t, res.Job.ID, got.JobID)
	snap, ok := got.State.(*Snapshot)
	require.True(t, ok)
	assert.Len(t, snap.Warehouses, 2)
	assert.Len(t, snap.Items, 7)

	assert.Equal(t, []string{"job.started", "job.completed"}, f.events.seen())
}

func TestSubmitValidation(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		t.Fatal("solver must not run")
		return nil, nil
	}), false)

	low := 40.0
	_, err := f.m.Submit(context.Background(), SubmitRequest{
		PriorityMode:      "cheapest",
		TargetUtilization: &low,
		Objective:         strings.Repeat("x", 501),
	})
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "priority_mode")
	assert.Contains(t, verr.Fields, "target_utilization")
	assert.Contains(t, verr.Fields, "objective")

	_, err = f.m.Submit(context.Background(), SubmitRequest{WarehouseIDs: []uint{f.wh.ID, 999}})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields["warehouse_ids"], "999")

	_, err = f.m.Submit(context.Background(), SubmitRequest{AllItems: true, ItemIDs: []uint{f.items[0].ID}})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "item_ids")

	_, err = f.m.Submit(context.Background(), SubmitRequest{Algorithm: "genetic"})
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "algorithm")

	var n int64
	require.NoError(t, f.db.Model(&models.OptimizationJob{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSubmitRequiresSomethingToOptimize(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return completedReport(), nil
	}), false)
	require.NoError(t, f.db.Model(&models.Warehouse{}).Where("1 = 1").Update("is_active", false).Error)

	_, err := f.m.Submit(context.Background(), SubmitRequest{})
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "warehouse_ids")
}

func TestResolveEmptyItemListKeepsInactiveItems(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return completedReport(), nil
	}), false)
	extra := dbtest.CubeItem(t, f.db, "SEASONAL")
	require.NoError(t, f.db.Model(extra).Update("is_active", false).Error)

	params, err := resolve(f.db.DB, SubmitRequest{}, config.DefaultSolverTuning())
	require.NoError(t, err)
	assert.Equal(t, []uint{f.items[0].ID, f.items[1].ID, extra.ID}, params.ItemIDs)

	params, err = resolve(f.db.DB, SubmitRequest{AllItems: true}, config.DefaultSolverTuning())
	require.NoError(t, err)
	assert.Len(t, params.ItemIDs, 3)
}

func TestExecutionTimeRecordedOnFailure(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return &solver.Outcome{Duration: 1500 * time.Millisecond, ExitCode: 3}, &apperr.ProcessError{Diagnostic: "boom", ExitCode: 3}
	}), false)

	_, err := f.m.Submit(context.Background(), SubmitRequest{})
	require.Error(t, err)

	var job models.OptimizationJob
	require.NoError(t, f.db.Last(&job).Error)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.InDelta(t, 1.5, job.ExecutionSeconds, 1e-9)
}

func TestMissingSolverFailsJob(t *testing.T) {
	runner := solver.NewProcessRunner(solver.Config{
		Interpreter: "sh",
		ScriptPath:  filepath.Join(t.TempDir(), "absent.py"),
	})

	for _, debug := range []bool{false, true} {
		t.Run(fmt.Sprintf("debug=%v", debug), func(t *testing.T) {
			f := setup(t, runner, debug)

			res, err := f.m.Submit(context.Background(), SubmitRequest{})
			assert.Nil(t, res)
			var jerr *apperr.JobFailedError
			require.True(t, errors.As(err, &jerr))
			if debug {
				assert.Contains(t, jerr.Error(), "not found")
			} else {
				assert.Equal(t, "optimization run failed", jerr.Error())
			}
			var perr *apperr.ProcessError
			assert.True(t, errors.As(err, &perr))

			job := f.job(t, jerr.JobID)
			assert.Equal(t, models.JobStatusFailed, job.Status)
			assert.Contains(t, job.ErrorLog, "not found")
			assert.NotNil(t, job.FinishedAt)
			assert.Contains(t, f.events.seen(), "job.failed")
		})
	}
}

func TestSolverReportCreatesRecommendations(t *testing.T) {
	var f *fixture
	runner := runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return f.scriptRunner(t).Run(ctx, req)
	})
	f = setup(t, runner, false)

	res, err := f.m.Submit(context.Background(), SubmitRequest{PriorityMode: ModeBalanced})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, res.Job.Status)
	assert.EqualValues(t, 2, res.RecommendationCount)
	assert.Empty(t, res.Output)

	job := f.job(t, res.Job.ID)
	assert.JSONEq(t, `{"moves":2}`, string(job.Result))
	assert.JSONEq(t, `{"utilization":42.5}`, string(job.Metrics))
	assert.Greater(t, job.ExecutionSeconds, 0.0)

	var recs []models.Recommendation
	require.NoError(t, f.db.Where("job_id = ?", job.ID).Order("id").Find(&recs).Error)
	require.Len(t, recs, 2)
	assert.Equal(t, models.PriorityHigh, recs[0].Priority)
	assert.Equal(t, 0.9, recs[0].Confidence)
	assert.Equal(t, models.PriorityMedium, recs[1].Priority)
	assert.Equal(t, 0.5, recs[1].Confidence)
	for _, r := range recs {
		assert.Equal(t, models.RecommendationPending, r.Status)
		assert.Equal(t, "Simulated Annealing", r.Algorithm)
	}

	view, err := f.m.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
	assert.EqualValues(t, 2, view.RecommendationCount)
}

// scriptRunner writes a solver that checks its state file and reports two
// recommendations for the fixture's items
func (f *fixture) scriptRunner(t *testing.T) solver.Runner {
	return script(t, fmt.Sprintf(`
for arg in "$@"; do
  case "$arg" in
    --state-file=*) state="${arg#--state-file=}" ;;
    --result-file=*) result="${arg#--result-file=}" ;;
  esac
done
grep -q '"code":"I1"' "$state" || exit 4
cat > "$result" <<'JSON'
{"status":"completed","result":{"moves":2},"metrics":{"utilization":42.5},
 "recommendations":[
  {"item_id":%d,"target_area_id":%d,"reason":"closer to dispatch","priority":"high","confidence":0.9},
  {"item_id":%d,"target_area_id":%d,"reason":"fills a gap"}]}
JSON
`, f.items[0].ID, f.area.ID, f.items[1].ID, f.area.ID))
}

func TestSolverFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		expect string
	}{
		{"non-zero exit", "echo 'Traceback: boom' >&2\nexit 3", "boom"},
		{"exit zero without report", "exit 0", "solver exited without reporting a result"},
		{"malformed report", `for a in "$@"; do case "$a" in --result-file=*) echo '{nope' > "${a#--result-file=}";; esac; done`, "malformed solver report"},
		{"reported failure", `for a in "$@"; do case "$a" in --result-file=*) echo '{"status":"failed","error":"no feasible layout"}' > "${a#--result-file=}";; esac; done`, "no feasible layout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, script(t, tt.body), false)

			_, err := f.m.Submit(context.Background(), SubmitRequest{})
			var jerr *apperr.JobFailedError
			require.True(t, errors.As(err, &jerr))
			assert.Equal(t, "optimization run failed", jerr.Error())

			job := f.job(t, jerr.JobID)
			assert.Equal(t, models.JobStatusFailed, job.Status)
			assert.Contains(t, job.ErrorLog, tt.expect)
			assert.NotNil(t, job.FinishedAt)
		})
	}
}

func TestInvalidRecommendationsFailJobAtomically(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return &solver.Outcome{Report: &solver.Report{
			Status: "completed",
			Recommendations: []solver.Proposal{
				{ItemID: 1, TargetAreaID: 1, Reason: "ok"},
				{ItemID: 999, TargetAreaID: 1, Reason: "ghost item"},
			},
		}}, nil
	}), false)

	_, err := f.m.Submit(context.Background(), SubmitRequest{})
	var jerr *apperr.JobFailedError
	require.True(t, errors.As(err, &jerr))

	job := f.job(t, jerr.JobID)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorLog, "item_id")
	assert.True(t, noJSON(job.Result))

	var n int64
	require.NoError(t, f.db.Model(&models.Recommendation{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestSolverMayWriteJobRowItself(t *testing.T) {
	var f *fixture
	f = setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		err := f.db.Model(&models.OptimizationJob{}).Where("id = ?", req.JobID).Updates(map[string]interface{}{
			"status":      models.JobStatusCompleted,
			"finished_at": time.Now().UTC(),
			"result":      `{"legacy":true}`,
		}).Error
		return &solver.Outcome{}, err
	}), false)

	res, err := f.m.Submit(context.Background(), SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, res.Job.Status)
	assert.JSONEq(t, `{"legacy":true}`, string(res.Job.Result))
}

func TestCancelKillsRunningSolver(t *testing.T) {
	f := setup(t, script(t, "exec sleep 30"), false)

	type submitted struct {
		res *RunResult
		err error
	}
	done := make(chan submitted, 1)
	go func() {
		res, err := f.m.Submit(context.Background(), SubmitRequest{})
		done <- submitted{res, err}
	}()

	require.Eventually(t, func() bool {
		f.m.mu.Lock()
		defer f.m.mu.Unlock()
		return len(f.m.inflight) == 1
	}, 5*time.Second, 10*time.Millisecond)

	var jobID uint
	require.NoError(t, f.db.Model(&models.OptimizationJob{}).Select("id").Row().Scan(&jobID))

	job, err := f.m.Cancel(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, job.Status)
	assert.Equal(t, "optimization cancelled by user", job.ErrorLog)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, models.JobStatusCancelled, out.res.Job.Status)
	case <-time.After(10 * time.Second):
		t.Fatal("solver was not killed")
	}

	_, err = f.m.Cancel(context.Background(), jobID)
	var cerr *apperr.ConflictError
	assert.True(t, errors.As(err, &cerr))

	_, err = f.m.Cancel(context.Background(), 999)
	var nerr *apperr.NotFoundError
	assert.True(t, errors.As(err, &nerr))
}

func TestLateResultAfterCancelIsDropped(t *testing.T) {
	var f *fixture
	f = setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		if _, err := f.m.Cancel(context.Background(), req.JobID); err != nil {
			return nil, err
		}
		return &solver.Outcome{Report: &solver.Report{
			Status:          "completed",
			Result:          json.RawMessage(`{"moves":1}`),
			Recommendations: []solver.Proposal{{ItemID: f.items[0].ID, TargetAreaID: f.area.ID, Reason: "late"}},
		}}, nil
	}), false)

	res, err := f.m.Submit(context.Background(), SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, res.Job.Status)
	assert.Equal(t, "optimization cancelled by user", res.Job.ErrorLog)
	assert.True(t, noJSON(res.Job.Result))
	assert.Zero(t, res.RecommendationCount)
}

func TestProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := func(status models.JobStatus, elapsed time.Duration) *models.OptimizationJob {
		return &models.OptimizationJob{Status: status, StartedAt: now.Add(-elapsed), EstimatedDuration: 300}
	}

	assert.Equal(t, 0, Progress(job(models.JobStatusRunning, 0), now))
	assert.Equal(t, 50, Progress(job(models.JobStatusRunning, 150*time.Second), now))
	assert.Equal(t, 33, Progress(job(models.JobStatusRunning, 100*time.Second), now))
	assert.Equal(t, 95, Progress(job(models.JobStatusRunning, time.Hour), now))
	assert.Equal(t, 100, Progress(job(models.JobStatusCompleted, time.Second), now))
	assert.Equal(t, 0, Progress(job(models.JobStatusFailed, time.Hour), now))
	assert.Equal(t, 0, Progress(job(models.JobStatusCancelled, time.Hour), now))
}

func TestListAndDelete(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return &solver.Outcome{Report: &solver.Report{
			Status:          "completed",
			Recommendations: []solver.Proposal{{ItemID: 1, TargetAreaID: 1, Reason: "tidy"}},
		}}, nil
	}), false)

	first, err := f.m.Submit(context.Background(), SubmitRequest{})
	require.NoError(t, err)
	_, err = f.m.Submit(context.Background(), SubmitRequest{})
	require.NoError(t, err)

	running := &models.OptimizationJob{Algorithm: "Simulated Annealing", Status: models.JobStatusRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, f.db.Create(running).Error)

	page, err := f.m.List(context.Background(), Filter{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	err = f.m.Delete(context.Background(), running.ID)
	var cerr *apperr.ConflictError
	assert.True(t, errors.As(err, &cerr))

	require.NoError(t, f.m.Delete(context.Background(), first.Job.ID))
	_, err = f.m.Status(context.Background(), first.Job.ID)
	var nerr *apperr.NotFoundError
	assert.True(t, errors.As(err, &nerr))

	var n int64
	require.NoError(t, f.db.Model(&models.Recommendation{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestWarehouseStateAndCatalog(t *testing.T) {
	f := setup(t, runnerFunc(func(ctx context.Context, req solver.Request) (*solver.Outcome, error) {
		return completedReport(), nil
	}), false)
	require.NoError(t, f.db.Create(&models.Placement{
		WarehouseID: f.wh.ID, AreaID: f.area.ID, ItemID: f.items[0].ID,
		Quantity: 2, PlacedAt: time.Now().UTC(), Status: models.PlacementStatusPlaced,
	}).Error)
	hidden := dbtest.Area(t, f.db, f.wh.ID, "A2", 10, 0, 2, 2, 2, 8)
	require.NoError(t, f.db.Model(hidden).Update("is_available", false).Error)

	snap, err := f.m.WarehouseState(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, snap.Warehouses, 1)
	require.Len(t, snap.Warehouses[0].Areas, 1)
	area := snap.Warehouses[0].Areas[0]
	assert.InDelta(t, 2.0, area.Used, 1e-9)
	assert.InDelta(t, 8.0, area.Remaining, 1e-9)
	assert.Equal(t, 20.0, snap.Utilization)
	assert.Len(t, snap.Items, 2)
	assert.Len(t, snap.Placements, 1)

	catalog := f.m.Algorithms()
	require.Len(t, catalog.Algorithms, 1)
	assert.Equal(t, "simulated_annealing", catalog.Algorithms[0].Code)
	assert.Equal(t, []string{ModeSpaceUtilization, ModeAccessibility, ModeBalanced}, catalog.PriorityModes)
	assert.Equal(t, 80.0, catalog.TargetUtilization.Default)
}

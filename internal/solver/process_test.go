package solver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckslot/internal/apperr"
)

// writeScript drops a shell script standing in for the solver
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solver.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func shRunner(script string) *ProcessRunner {
	return NewProcessRunner(Config{Interpreter: "sh", ScriptPath: script, Timeout: 10 * time.Second})
}

func TestRunReadsReport(t *testing.T) {
	script := writeScript(t, `
for arg in "$@"; do
  case "$arg" in
    --result-file=*) out="${arg#--result-file=}" ;;
    --state-file=*) state="${arg#--state-file=}" ;;
    --job-id=*) job="${arg#--job-id=}" ;;
  esac
done
test -s "$state" || exit 3
echo "annealing job $job"
cat > "$out" <<JSON
{"status":"completed","metrics":{"job":$job},"recommendations":[{"item_id":4,"target_area_id":2,"reason":"closer to dock","priority":"high"}]}
JSON
`)
	outcome, err := shRunner(script).Run(context.Background(), Request{
		JobID:  17,
		Params: json.RawMessage(`{"priority_mode":"balanced"}`),
		State:  map[string]int{"areas": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.ExitCode)
	assert.Contains(t, outcome.Output, "annealing job 17")
	assert.NotEmpty(t, outcome.RunID)
	require.NotNil(t, outcome.Report)
	assert.Equal(t, "completed", outcome.Report.Status)
	assert.JSONEq(t, `{"job":17}`, string(outcome.Report.Metrics))
	require.Len(t, outcome.Report.Recommendations, 1)
	assert.Equal(t, uint(4), outcome.Report.Recommendations[0].ItemID)
	assert.Equal(t, "high", outcome.Report.Recommendations[0].Priority)
}

func TestRunWithoutReport(t *testing.T) {
	outcome, err := shRunner(writeScript(t, "echo done\n")).Run(context.Background(), Request{JobID: 1})
	require.NoError(t, err)
	assert.Nil(t, outcome.Report)
}

func TestRunNonZeroExit(t *testing.T) {
	script := writeScript(t, "echo 'Traceback: boom' >&2\nexit 4\n")

	outcome, err := shRunner(script).Run(context.Background(), Request{JobID: 1})

	var procErr *apperr.ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, 4, procErr.ExitCode)
	assert.Contains(t, procErr.Diagnostic, "Traceback: boom")
	require.NotNil(t, outcome)
	assert.Equal(t, 4, outcome.ExitCode)
}

func TestRunMalformedReport(t *testing.T) {
	script := writeScript(t, `
for arg in "$@"; do
  case "$arg" in --result-file=*) out="${arg#--result-file=}" ;; esac
done
echo "{not json" > "$out"
`)
	_, err := shRunner(script).Run(context.Background(), Request{JobID: 1})

	var procErr *apperr.ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Diagnostic, "malformed solver report")
}

func TestRunMissingSolver(t *testing.T) {
	_, err := NewProcessRunner(Config{Interpreter: "sh", ScriptPath: "/nonexistent/optimize.py"}).
		Run(context.Background(), Request{JobID: 1})
	var procErr *apperr.ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Diagnostic, "not found")

	_, err = NewProcessRunner(Config{Interpreter: "/nonexistent/python3", ScriptPath: writeScript(t, "exit 0\n")}).
		Run(context.Background(), Request{JobID: 1})
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Diagnostic, "not found")
}

func TestRunKilledOnCancel(t *testing.T) {
	script := writeScript(t, "exec sleep 30\n")
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := shRunner(script).Run(ctx, Request{JobID: 1})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunTimeout(t *testing.T) {
	script := writeScript(t, "exec sleep 30\n")
	runner := NewProcessRunner(Config{Interpreter: "sh", ScriptPath: script, Timeout: 200 * time.Millisecond})

	_, err := runner.Run(context.Background(), Request{JobID: 1})

	var procErr *apperr.ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Contains(t, procErr.Diagnostic, "timed out")
}

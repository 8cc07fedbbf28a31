package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/eckslot/internal/apperr"
)

// maxDiagnostic bounds how much process output is kept as a diagnostic
const maxDiagnostic = 8 * 1024

// waitDelay bounds how long Run waits for output after the solver is killed
const waitDelay = 2 * time.Second

// Config holds configuration for the process runner
type Config struct {
	Interpreter string        // e.g. python3, resolved through PATH
	ScriptPath  string        // solver entry point
	WorkDir     string        // parent for per-run temp dirs, os.TempDir() when empty
	Timeout     time.Duration // 0 disables the timeout
}

// ProcessRunner runs the solver as a child process
type ProcessRunner struct {
	config Config
}

// NewProcessRunner creates a runner. Paths are checked on every run, not
// here, so a solver installed after startup is picked up.
func NewProcessRunner(config Config) *ProcessRunner {
	if config.Interpreter == "" {
		config.Interpreter = "python3"
	}
	return &ProcessRunner{config: config}
}

// Run executes one solver invocation:
//
//	<interpreter> <script> --job-id=N --params=<json> --state-file=<path> --result-file=<path>
func (p *ProcessRunner) Run(ctx context.Context, req Request) (*Outcome, error) {
	interpreter, err := exec.LookPath(p.config.Interpreter)
	if err != nil {
		return nil, &apperr.ProcessError{
			Diagnostic: fmt.Sprintf("solver interpreter not found at %s", p.config.Interpreter),
			ExitCode:   -1,
		}
	}
	if _, err := os.Stat(p.config.ScriptPath); err != nil {
		return nil, &apperr.ProcessError{
			Diagnostic: fmt.Sprintf("solver script not found at %s", p.config.ScriptPath),
			ExitCode:   -1,
		}
	}

	runDir, err := os.MkdirTemp(p.config.WorkDir, "solver-run-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer os.RemoveAll(runDir)

	statePath := filepath.Join(runDir, "state.json")
	resultPath := filepath.Join(runDir, "result.json")

	state, err := json.Marshal(req.State)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal solver state: %w", err)
	}
	if err := os.WriteFile(statePath, state, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write solver state: %w", err)
	}

	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	args := []string{
		p.config.ScriptPath,
		fmt.Sprintf("--job-id=%d", req.JobID),
		"--params=" + string(params),
		"--state-file=" + statePath,
		"--result-file=" + resultPath,
	}

	runCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	outcome := &Outcome{RunID: uuid.New().String()}

	cmd := exec.CommandContext(runCtx, interpreter, args...)
	cmd.Env = append(os.Environ(), "SOLVER_RUN_ID="+outcome.RunID)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	// a killed solver may leave children holding the output pipe
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	outcome.Duration = time.Since(start)
	outcome.Output = output.String()

	if runErr != nil {
		outcome.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			outcome.ExitCode = exitErr.ExitCode()
		}

		switch {
		case ctx.Err() != nil:
			return outcome, fmt.Errorf("solver run interrupted: %w", ctx.Err())
		case runCtx.Err() == context.DeadlineExceeded:
			return outcome, &apperr.ProcessError{
				Diagnostic: fmt.Sprintf("solver timed out after %s\n%s", p.config.Timeout, tail(outcome.Output)),
				ExitCode:   -1,
			}
		case outcome.ExitCode >= 0:
			return outcome, &apperr.ProcessError{Diagnostic: diagnostic(outcome.Output, runErr), ExitCode: outcome.ExitCode}
		default:
			return outcome, &apperr.ProcessError{Diagnostic: runErr.Error(), ExitCode: -1}
		}
	}

	report, err := readReport(resultPath)
	if err != nil {
		return outcome, &apperr.ProcessError{Diagnostic: err.Error(), ExitCode: 0}
	}
	outcome.Report = report
	return outcome, nil
}

// readReport loads the result file. A missing file is not an error; the
// solver may have reported through other means.
func readReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read solver report: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("malformed solver report: %w", err)
	}
	return &report, nil
}

func diagnostic(output string, err error) string {
	out := strings.TrimSpace(output)
	if out == "" {
		return err.Error()
	}
	return tail(out)
}

// tail keeps the last maxDiagnostic bytes, where tracebacks end up
func tail(s string) string {
	if len(s) <= maxDiagnostic {
		return s
	}
	return "..." + s[len(s)-maxDiagnostic:]
}

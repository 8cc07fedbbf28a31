// Package solver runs the external placement optimizer. The optimizer is
// an opaque program: it receives the job parameters and a snapshot of the
// warehouse state as files, and may write a JSON report back.
package solver

import (
	"context"
	"encoding/json"
	"time"
)

// Request describes one solver run
type Request struct {
	JobID  uint
	Params json.RawMessage // passed verbatim on the command line
	State  interface{}     // serialized to the state file
}

// Proposal is a single placement suggestion in a solver report
type Proposal struct {
	ItemID        uint     `json:"item_id"`
	CurrentAreaID *uint    `json:"current_area_id,omitempty"`
	TargetAreaID  uint     `json:"target_area_id"`
	TargetX       *float64 `json:"x,omitempty"`
	TargetY       *float64 `json:"y,omitempty"`
	Reason        string   `json:"reason"`
	Priority      string   `json:"priority,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

// Report is the document a solver writes to its result file
type Report struct {
	Status          string          `json:"status"` // completed or failed
	Result          json.RawMessage `json:"result,omitempty"`
	Metrics         json.RawMessage `json:"metrics,omitempty"`
	Error           string          `json:"error,omitempty"`
	Recommendations []Proposal      `json:"recommendations,omitempty"`
}

// Outcome is everything observed about a finished run
type Outcome struct {
	RunID    string
	ExitCode int
	Output   string // stdout and stderr, interleaved
	Duration time.Duration
	Report   *Report // nil when the solver wrote no report
}

// Runner executes the solver. Run blocks until the process exits or ctx
// is done, in which case the process is killed.
type Runner interface {
	Run(ctx context.Context, req Request) (*Outcome, error)
}

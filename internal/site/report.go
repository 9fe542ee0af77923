// Package site orchestrates one site's build as a phase machine
// (Init → Load → Extract → Plan → Execute → Finalize) and runs multi-site
// builds with per-site failure isolation.
package site

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/arcadeforge/arcadeforge/internal/errors"
)

// Phase is a build phase. Phases advance monotonically; a site that stops
// early lands in PhaseFailed.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseLoad
	PhaseExtract
	PhasePlan
	PhaseExecute
	PhaseFinalize
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseLoad:
		return "load"
	case PhaseExtract:
		return "extract"
	case PhasePlan:
		return "plan"
	case PhaseExecute:
		return "execute"
	case PhaseFinalize:
		return "finalize"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the phase name rather than its ordinal.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Failure records one failed unit or extraction with enough context to
// act on without re-running the build.
type Failure struct {
	Game    string `json:"game"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report is the machine-readable outcome of one site build.
type Report struct {
	RunID        string        `json:"run_id"`
	Site         string        `json:"site"`
	Phase        Phase         `json:"phase"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	TotalGames   int           `json:"total_games"`
	Built        int           `json:"built"`
	CacheHits    int           `json:"cache_hits"`
	Failed       int           `json:"failed"`
	BytesWritten int64         `json:"bytes_written"`
	Failures     []Failure     `json:"failures,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// NewReport starts a report for one site.
func NewReport(site string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Site:      site,
		Phase:     PhaseInit,
		StartedAt: time.Now(),
	}
}

// RecordFailure appends a failure, pulling code and context out of
// structured errors.
func (r *Report) RecordFailure(game string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{
		Game:    game,
		Code:    errors.CodeOf(err),
		Message: err.Error(),
	})
}

// Finish stamps the terminal phase and duration.
func (r *Report) Finish(phase Phase) {
	r.Phase = phase
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
}

// FailureRate is failures over total games in [0.0, 1.0].
func (r *Report) FailureRate() float64 {
	if r.TotalGames == 0 {
		return 0.0
	}
	return float64(r.Failed) / float64(r.TotalGames)
}

// JSON renders the report for the CLI layer.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

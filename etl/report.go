package etl

import (
	"time"
)

// State is a stage of the job lifecycle
type State string

const (
	StateValidating   State = "VALIDATING"
	StateExtracting   State = "EXTRACTING"
	StateTransforming State = "TRANSFORMING"
	StateLoading      State = "LOADING"
	StateDone         State = "DONE"
	StateError        State = "ERROR"
)

// ChunkReport describes one commit of the load stage
type ChunkReport struct {
	Index     int    `json:"index"`
	Ops       int    `json:"ops"`
	Items     int    `json:"items"`
	IndexOnly bool   `json:"index_only,omitempty"`
	Committed bool   `json:"committed"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// Report is the outcome of one run
type Report struct {
	RunID        string        `json:"run_id"`
	Job          string        `json:"job"`
	Period       int           `json:"period"`
	Destination  Destination   `json:"destination"`
	DryRun       bool          `json:"dry_run"`
	State        State         `json:"state"`
	FailedState  State         `json:"failed_state,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
	Stats        StatsSnapshot `json:"stats"`
	Chunks       []ChunkReport `json:"chunks,omitempty"`
	FailedChunks int           `json:"failed_chunks"`
	Operations   int           `json:"operations"`
	IndexOps     int           `json:"index_ops"`
	FilesWritten int           `json:"files_written"`
	Duplicates   int           `json:"duplicates"`
	Warnings     []string      `json:"warnings,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// Duration returns how long the run took
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Healthy reports whether the run finished with every chunk committed
func (r *Report) Healthy() bool {
	return r.State == StateDone && r.FailedChunks == 0
}

// CommitSizes returns the operation count of every chunk, in order
func (r *Report) CommitSizes() []int {
	sizes := make([]int, len(r.Chunks))
	for i, c := range r.Chunks {
		sizes[i] = c.Ops
	}
	return sizes
}

// Summary flattens the report for progress emitters
func (r *Report) Summary() map[string]interface{} {
	return map[string]interface{}{
		"job":           r.Job,
		"period":        r.Period,
		"state":         string(r.State),
		"extracted":     r.Stats.Extract.Succeeded,
		"transformed":   r.Stats.Transform.Succeeded,
		"loaded":        r.Stats.Load.Succeeded,
		"failed":        r.Stats.Extract.Failed + r.Stats.Transform.Failed + r.Stats.Load.Failed,
		"chunks":        len(r.Chunks),
		"failed_chunks": r.FailedChunks,
		"files":         r.FilesWritten,
		"duration_ms":   r.Duration().Milliseconds(),
	}
}

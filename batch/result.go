package batch

import (
	"fmt"
)

// Status is the outcome of one operation in a commit
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// OpDetail is the per-operation line of a Result
type OpDetail struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result describes one commit. It is not modified after Commit returns.
type Result struct {
	Backend   string     `json:"backend"`
	TotalOps  int        `json:"total_ops"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	ElapsedMS int64      `json:"elapsed_ms"`
	Details   []OpDetail `json:"details,omitempty"`
}

func newResult(backend string, ops []Operation, err error, elapsedMS int64) *Result {
	r := &Result{
		Backend:   backend,
		TotalOps:  len(ops),
		ElapsedMS: elapsedMS,
		Details:   make([]OpDetail, len(ops)),
	}

	status := StatusSuccess
	msg := ""
	if err != nil {
		status = StatusFailure
		msg = err.Error()
		r.Failed = len(ops)
	} else {
		r.Succeeded = len(ops)
	}

	for i, op := range ops {
		r.Details[i] = OpDetail{
			Path:   op.Path.String(),
			Kind:   op.Kind,
			Status: status,
			Error:  msg,
		}
	}
	return r
}

// CommitError is returned when a backend rejects a whole batch. Every
// operation in Result is marked failed with the same message. It matches
// errors.ErrBatchCommit.
type CommitError struct {
	Result *Result
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit of %d operations to %s failed: %v", e.Result.TotalOps, e.Result.Backend, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

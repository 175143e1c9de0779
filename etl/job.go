package etl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teranos/legisync/batch"
)

// ValidationResult separates problems that abort a run from ones that are
// only worth a log line
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// Errorf records an aborting problem
func (v *ValidationResult) Errorf(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Warnf records a non-aborting problem
func (v *ValidationResult) Warnf(format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// OK reports whether there are no errors
func (v ValidationResult) OK() bool {
	return len(v.Errors) == 0
}

// Merge appends other's problems
func (v *ValidationResult) Merge(other ValidationResult) {
	v.Errors = append(v.Errors, other.Errors...)
	v.Warnings = append(v.Warnings, other.Warnings...)
}

func (v ValidationResult) String() string {
	return strings.Join(v.Errors, "; ")
}

// Key is the deterministic identity of a stored document
type Key struct {
	Code   string
	Period int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s", k.Period, k.Code)
}

// Keyed is implemented by transformed items
type Keyed interface {
	Key() Key
}

// Extracted is the raw output of the extract stage. Upstream is how many
// entities the upstream listed before any item limit; zero means len(Items).
// Truncated is set when the item limit left listed entities unfetched.
type Extracted[E any] struct {
	Timestamp time.Time
	Items     []E
	Upstream  int
	Truncated bool
}

// Job is the strategy one entity type plugs into the engine.
//
// Extract fetches raw items; Transform maps one item (a failure excludes
// only that item); Load turns one transformed item into store operations.
type Job[E any, T Keyed] interface {
	Name() string
	Validate(jc *JobContext) ValidationResult
	Extract(ctx context.Context, jc *JobContext) (Extracted[E], error)
	Transform(ctx context.Context, jc *JobContext, item E) (T, error)
	Load(jc *JobContext, item T) ([]batch.Operation, error)
}

// Indexer is implemented by jobs that maintain index documents. Index is
// called with the items whose chunks committed, and its operations are
// written after every item chunk.
type Indexer[T Keyed] interface {
	Index(jc *JobContext, loaded []T) ([]batch.Operation, error)
}

// Runner is a job bound to its engine
type Runner interface {
	Name() string
	Run(ctx context.Context, jc *JobContext) (*Report, error)
}

// Package etl is the job lifecycle engine every synchronization job runs on.
//
// A run moves strictly through VALIDATING, EXTRACTING, TRANSFORMING and
// LOADING to DONE, or to ERROR from any of them. Item-level failures in
// extract and transform are counted and excluded; chunk-level failures in
// load are counted and the next chunk is attempted; validation failures,
// period resolution failures and local file write failures end the run.
package etl

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/pulse"
)

// Engine drives one Job through the lifecycle
type Engine[E any, T Keyed] struct {
	job Job[E, T]
}

// NewEngine binds job to an engine
func NewEngine[E any, T Keyed](job Job[E, T]) *Engine[E, T] {
	return &Engine[E, T]{job: job}
}

// Name returns the job name
func (e *Engine[E, T]) Name() string {
	return e.job.Name()
}

// Job returns the strategy this engine drives
func (e *Engine[E, T]) Job() Job[E, T] {
	return e.job
}

// run carries the state of one Run call
type run[E any, T Keyed] struct {
	job    Job[E, T]
	jc     *JobContext
	report *Report

	// limitCut is set when the item limit left upstream entities out
	limitCut bool
}

// Run executes the job. The returned report is never nil; it is complete
// even when err is not.
func (e *Engine[E, T]) Run(ctx context.Context, jc *JobContext) (*Report, error) {
	jc.fill(e.job.Name())

	r := &run[E, T]{
		job: e.job,
		jc:  jc,
		report: &Report{
			RunID:       uuid.New().String(),
			Job:         e.job.Name(),
			Destination: jc.Options.Destination,
			DryRun:      jc.Options.DryRun,
			StartedAt:   jc.Now(),
		},
	}
	jc.Logger = logger.ChildLogger(jc.Logger, logger.FieldRunID, r.report.RunID)

	err := r.execute(ctx)

	r.report.FinishedAt = jc.Now()
	r.report.Stats = jc.Stats.Snapshot()
	r.report.Period = jc.Period.Number

	if err != nil {
		r.report.FailedState = r.report.State
		r.report.State = StateError
		r.report.Error = err.Error()
		jc.Progress.EmitError(string(r.report.FailedState), err)
		jc.Logger.Errorw("Run failed",
			logger.FieldState, r.report.FailedState,
			logger.FieldError, err.Error(),
		)
		return r.report, err
	}

	r.report.State = StateDone
	jc.Progress.EmitComplete(r.report.Summary())
	jc.Logger.Infow("Run finished",
		logger.FieldPeriod, r.report.Period,
		logger.FieldSucceeded, r.report.Stats.Load.Succeeded,
		logger.FieldFailed, r.report.Stats.Load.Failed,
		"failed_chunks", r.report.FailedChunks,
		logger.FieldDurationMS, r.report.Duration().Milliseconds(),
	)
	return r.report, nil
}

func (r *run[E, T]) enter(state State, message string) {
	r.report.State = state
	r.jc.Logger.Debugw("Entering state", logger.FieldState, state)
	r.jc.Progress.EmitStage(string(state), message)
}

func (r *run[E, T]) execute(ctx context.Context) error {
	r.enter(StateValidating, "Checking options")
	if err := r.validate(); err != nil {
		return err
	}

	r.enter(StateExtracting, "Fetching from upstream")
	items, err := r.extract(ctx)
	if err != nil {
		return err
	}

	r.enter(StateTransforming, "Mapping records")
	transformed := r.transform(ctx, items)

	r.enter(StateLoading, "Writing to "+string(r.jc.Options.Destination))
	return r.load(ctx, transformed)
}

func (r *run[E, T]) validate() error {
	var result ValidationResult
	r.jc.Options.validate(&result)

	dest := r.jc.Options.Destination
	if !r.jc.Options.DryRun {
		if dest == DestinationLocalFiles && r.jc.Exporter == nil {
			result.Errorf("destination %s has no exporter configured", dest)
		}
		if dest.UsesWriter() && r.jc.Writer == nil {
			result.Errorf("destination %s has no batch writer configured", dest)
		}
	}
	if r.jc.Settings.BatchSize < 1 {
		result.Errorf("batch size must be >= 1, got %d", r.jc.Settings.BatchSize)
	}

	result.Merge(r.job.Validate(r.jc))

	for _, w := range result.Warnings {
		r.jc.Logger.Warnw("Validation warning", "warning", w)
	}
	r.report.Warnings = append(r.report.Warnings, result.Warnings...)

	if !result.OK() {
		return errors.NewValidationError("%s", result.String())
	}
	return nil
}

func (r *run[E, T]) extract(ctx context.Context) ([]E, error) {
	jc := r.jc

	var err error
	if n := jc.Options.PeriodNumber; n != nil {
		jc.Period, err = jc.Periods.ByNumber(ctx, *n)
	} else {
		jc.Period, err = jc.Periods.Current(ctx, jc.Now())
	}
	if err != nil {
		return nil, errors.Wrap(err, "resolve legislature")
	}
	jc.Logger = jc.Logger.With(logger.FieldPeriod, jc.Period.Number)
	jc.Logger.Infow("Legislature resolved", "start", jc.Period.Start.Format("2006-01-02"), "end", jc.Period.End.Format("2006-01-02"))

	extracted, err := r.job.Extract(ctx, jc)
	if err != nil {
		jc.Stats.RecordError()
		return nil, errors.Wrap(err, "extract")
	}

	items := extracted.Items
	jc.Stats.Extract.Succeed(len(items))

	upstreamTotal := extracted.Upstream
	if upstreamTotal < len(items) {
		upstreamTotal = len(items)
	}
	jc.Stats.SetUpstream(upstreamTotal)

	kept := jc.Limit(len(items))
	if kept < len(items) || extracted.Truncated {
		r.limitCut = true
		jc.Logger.Infow("Item limit applied", logger.FieldTotal, upstreamTotal, logger.FieldCount, kept)
	}
	items = items[:kept]
	jc.Stats.SetLimited(len(items))

	jc.Progress.EmitProgress(pulse.Event{
		Stage:   string(StateExtracting),
		Percent: 100,
		Message: progressMessage(len(items), len(items), "items extracted"),
		Done:    len(items),
		Total:   len(items),
	})
	return items, nil
}

func (r *run[E, T]) transform(ctx context.Context, items []E) []T {
	jc := r.jc
	out := make([]T, 0, len(items))
	seen := make(map[Key]int, len(items))

	for i, item := range items {
		t, err := r.job.Transform(ctx, jc, item)
		if err != nil {
			if !errors.IsMapping(err) {
				err = errors.Mark(err, errors.ErrMapping)
			}
			jc.Stats.Transform.Fail(1)
			jc.Stats.RecordError()
			jc.Logger.Warnw("Item excluded, transform failed", logger.FieldError, err.Error())
		} else {
			jc.Stats.Transform.Succeed(1)
			key := t.Key()
			if at, dup := seen[key]; dup {
				out[at] = t
				r.report.Duplicates++
			} else {
				seen[key] = len(out)
				out = append(out, t)
			}
		}
		r.progress(StateTransforming, i+1, len(items), "items transformed")
	}

	if r.report.Duplicates > 0 {
		jc.Logger.Infow("Duplicate identities collapsed", logger.FieldCount, r.report.Duplicates)
	}
	return out
}

// progress emits an event every ProgressInterval items and at the end
func (r *run[E, T]) progress(state State, done, total int, what string) {
	if done != total && done%r.jc.Settings.ProgressInterval != 0 {
		return
	}
	r.jc.Progress.EmitProgress(pulse.Event{
		Stage:   string(state),
		Percent: pulse.Percent(done, total),
		Message: progressMessage(done, total, what),
		Done:    done,
		Total:   total,
	})
}

func progressMessage(done, total int, what string) string {
	return fmt.Sprintf("%d/%d %s", done, total, what)
}

package etl

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/pulse"
)

// FanOut calls fn for every input with at most Settings.Concurrency calls in
// flight. A failing input is logged, counted as an extract failure and left
// out; the others carry on. Results keep the order of inputs.
func FanOut[I, O any](ctx context.Context, jc *JobContext, label string, inputs []I, fn func(ctx context.Context, in I) (O, error)) []O {
	limit := jc.Settings.Concurrency
	if limit < 1 {
		limit = 1
	}
	interval := jc.Settings.ProgressInterval
	if interval < 1 {
		interval = 1
	}

	results := make([]O, len(inputs))
	ok := make([]bool, len(inputs))
	var done atomic.Int64

	var g errgroup.Group
	g.SetLimit(limit)

	for i, in := range inputs {
		i, in := i, in // per-iteration copies (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			out, err := fn(ctx, in)
			if err != nil {
				jc.Stats.Extract.Fail(1)
				jc.Stats.RecordError()
				jc.Logger.Warnw("Item excluded, fetch failed",
					logger.FieldLabel, label,
					logger.FieldEntity, in,
					logger.FieldError, err.Error(),
				)
			} else {
				results[i] = out
				ok[i] = true
			}

			n := int(done.Add(1))
			if n%interval == 0 || n == len(inputs) {
				jc.Progress.EmitProgress(pulse.Event{
					Stage:   string(StateExtracting),
					Percent: pulse.Percent(n, len(inputs)),
					Message: progressMessage(n, len(inputs), label),
					Done:    n,
					Total:   len(inputs),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]O, 0, len(inputs))
	for i, r := range results {
		if ok[i] {
			kept = append(kept, r)
		}
	}
	return kept
}

// FanOutLimited is FanOut under the item limit. Inputs are fetched in order,
// in waves of at most Settings.Concurrency, until the results hold the limit
// or the inputs run out, so a failed input is replaced by the next one.
// size reports how many items one result holds; nil counts each as one.
// The returned bool is false when inputs were left unfetched.
func FanOutLimited[I, O any](ctx context.Context, jc *JobContext, label string, inputs []I, size func(O) int, fn func(ctx context.Context, in I) (O, error)) ([]O, bool) {
	if jc.Options.ItemLimit == nil {
		return FanOut(ctx, jc, label, inputs, fn), true
	}
	want := *jc.Options.ItemLimit

	var out []O
	got, next := 0, 0
	for next < len(inputs) && got < want {
		wave := jc.Settings.Concurrency
		if size == nil && want-got < wave {
			wave = want - got
		}
		if wave < 1 {
			wave = 1
		}
		end := min(next+wave, len(inputs))

		for _, o := range FanOut(ctx, jc, label, inputs[next:end], fn) {
			out = append(out, o)
			if size == nil {
				got++
			} else {
				got += size(o)
			}
		}
		next = end
	}
	return out, next == len(inputs)
}

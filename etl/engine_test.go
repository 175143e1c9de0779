package etl

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/export"
	"github.com/teranos/legisync/internal/util"
	"github.com/teranos/legisync/pulse"
)

type rawItem struct {
	ID  int
	Bad bool
	Tag string
}

type doc struct {
	ID     string
	Period int
	Tag    string
}

func (d doc) Key() Key { return Key{Code: d.ID, Period: d.Period} }

type fakeJob struct {
	items      []rawItem
	extractErr error
	upstream   int
	truncated  bool
	warn       string
	invalid    string

	extractCalls   atomic.Int32
	transformCalls atomic.Int32
}

func (j *fakeJob) Name() string { return "fake" }

func (j *fakeJob) Validate(jc *JobContext) ValidationResult {
	var v ValidationResult
	if j.warn != "" {
		v.Warnf("%s", j.warn)
	}
	if j.invalid != "" {
		v.Errorf("%s", j.invalid)
	}
	return v
}

func (j *fakeJob) Extract(ctx context.Context, jc *JobContext) (Extracted[rawItem], error) {
	j.extractCalls.Add(1)
	if j.extractErr != nil {
		return Extracted[rawItem]{}, j.extractErr
	}
	return Extracted[rawItem]{Timestamp: jc.Now(), Items: j.items, Upstream: j.upstream, Truncated: j.truncated}, nil
}

func (j *fakeJob) Transform(ctx context.Context, jc *JobContext, item rawItem) (doc, error) {
	j.transformCalls.Add(1)
	if item.Bad {
		return doc{}, errors.Newf("item %d has no name", item.ID)
	}
	return doc{ID: strconv.Itoa(item.ID), Period: jc.Period.Number, Tag: item.Tag}, nil
}

func (j *fakeJob) Load(jc *JobContext, d doc) ([]batch.Operation, error) {
	op, err := batch.SetOp(fmt.Sprintf("legislaturas/%d/itens/%s", d.Period, d.ID), map[string]any{"id": d.ID, "tag": d.Tag})
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

// indexedJob adds an index document listing what was loaded
type indexedJob struct {
	*fakeJob
}

func (j indexedJob) Index(jc *JobContext, loaded []doc) ([]batch.Operation, error) {
	ids := make([]any, len(loaded))
	for i, d := range loaded {
		ids[i] = d.ID
	}
	op, err := batch.SetOp(fmt.Sprintf("legislaturas/%d/indices/itens", jc.Period.Number), map[string]any{
		"total": len(loaded),
		"ids":   ids,
	})
	if err != nil {
		return nil, err
	}
	return []batch.Operation{op}, nil
}

func items(n int) []rawItem {
	out := make([]rawItem, n)
	for i := range out {
		out[i] = rawItem{ID: i + 1}
	}
	return out
}

func testContext(opts Options, writer batch.Writer) *JobContext {
	if opts.Destination == "" {
		opts.Destination = DestinationMock
	}
	if opts.PeriodNumber == nil {
		opts.PeriodNumber = util.Ptr(57)
	}
	settings := DefaultSettings()
	settings.RetryDelay = time.Millisecond
	jc := NewJobContext(opts, settings, nil)
	jc.Logger = zap.NewNop().Sugar()
	jc.Writer = writer
	return jc
}

func memWriter(opts ...batch.MemoryOption) (*batch.MemoryBackend, *batch.Queue) {
	mem := batch.NewMemoryBackend(opts...)
	return mem, batch.New(mem, zap.NewNop().Sugar())
}

func TestRun_HappyPath(t *testing.T) {
	mem, w := memWriter()
	job := &fakeJob{items: items(5)}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 57, report.Period)
	assert.Equal(t, "fake", report.Job)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, int64(5), report.Stats.Extract.Succeeded)
	assert.Equal(t, int64(5), report.Stats.Transform.Succeeded)
	assert.Equal(t, int64(5), report.Stats.Load.Succeeded)
	assert.Equal(t, 5, mem.Len())
	assert.True(t, report.Healthy())

	d, ok := mem.Get("legislaturas/57/itens/3")
	require.True(t, ok)
	assert.Equal(t, "3", d["id"])
}

func TestRun_ItemLimitTruncatesAfterFetch(t *testing.T) {
	for _, tc := range []struct{ extracted, limit, want int }{
		{10, 3, 3},
		{2, 5, 2},
		{7, 7, 7},
	} {
		t.Run(fmt.Sprintf("%d_limit_%d", tc.extracted, tc.limit), func(t *testing.T) {
			_, w := memWriter()
			job := &fakeJob{items: items(tc.extracted)}

			report, err := NewEngine[rawItem, doc](job).Run(context.Background(),
				testContext(Options{ItemLimit: util.Ptr(tc.limit)}, w))
			require.NoError(t, err)

			assert.Equal(t, int32(tc.want), job.transformCalls.Load())
			assert.Equal(t, int64(tc.extracted), report.Stats.Upstream)
			assert.Equal(t, int64(tc.want), report.Stats.Limited)
		})
	}
}

func TestRun_ChunksAndIsolatesFailedCommit(t *testing.T) {
	mem, w := memWriter(batch.WithFailures(batch.FailCommit(2, errors.New("deadline exceeded"))))
	job := &fakeJob{items: items(1203)}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, []int{500, 500, 203}, mem.Commits())
	assert.Equal(t, []int{500, 500, 203}, report.CommitSizes())
	assert.Equal(t, 1, report.FailedChunks)
	assert.False(t, report.Chunks[1].Committed)
	assert.True(t, report.Chunks[2].Committed, "third chunk runs after the second fails")
	assert.Equal(t, int64(703), report.Stats.Load.Succeeded)
	assert.Equal(t, int64(500), report.Stats.Load.Failed)
	assert.Equal(t, 703, mem.Len())
	assert.Equal(t, StateDone, report.State)
	assert.False(t, report.Healthy())
}

func TestRun_RespectsSmallerBatchSize(t *testing.T) {
	mem, w := memWriter()
	jc := testContext(Options{}, w)
	jc.Settings.BatchSize = 4

	_, err := NewEngine[rawItem, doc](&fakeJob{items: items(10)}).Run(context.Background(), jc)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 2}, mem.Commits())
}

func TestRun_Idempotent(t *testing.T) {
	mem, w := memWriter()
	job := &fakeJob{items: items(20)}

	_, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)
	first := mem.Snapshot()

	_, err = NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, first, mem.Snapshot())
	assert.Equal(t, 20, mem.Len())
}

func TestRun_DuplicatesCollapseToLast(t *testing.T) {
	mem, w := memWriter()
	job := &fakeJob{items: []rawItem{{ID: 1, Tag: "a"}, {ID: 2}, {ID: 1, Tag: "b"}}}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, []int{2}, mem.Commits())
	d, _ := mem.Get("legislaturas/57/itens/1")
	assert.Equal(t, "b", d["tag"])
}

func TestRun_TransformFailuresAreIsolated(t *testing.T) {
	mem, w := memWriter()
	list := items(6)
	list[1].Bad = true
	list[4].Bad = true

	report, err := NewEngine[rawItem, doc](&fakeJob{items: list}).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.Stats.Transform.Failed)
	assert.Equal(t, int64(4), report.Stats.Transform.Succeeded)
	assert.Equal(t, int64(2), report.Stats.Errors)
	assert.Equal(t, 4, mem.Len())
}

func TestRun_DryRunSkipsCommit(t *testing.T) {
	mem, w := memWriter()
	job := indexedJob{&fakeJob{items: items(7)}}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{DryRun: true}, w))
	require.NoError(t, err)

	assert.Empty(t, mem.Commits())
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 7, report.Operations)
	assert.Equal(t, 1, report.IndexOps)
	assert.True(t, report.DryRun)
	assert.Equal(t, int32(7), job.transformCalls.Load(), "dry run transforms everything")
}

func TestRun_DryRunNeedsNoSink(t *testing.T) {
	jc := testContext(Options{DryRun: true, Destination: DestinationStore}, nil)
	_, err := NewEngine[rawItem, doc](&fakeJob{items: items(2)}).Run(context.Background(), jc)
	assert.NoError(t, err)
}

func TestRun_LocalFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	jc := testContext(Options{Destination: DestinationLocalFiles}, nil)
	jc.Exporter = export.New(fs, "exports")

	report, err := NewEngine[rawItem, doc](indexedJob{&fakeJob{items: items(3)}}).Run(context.Background(), jc)
	require.NoError(t, err)

	assert.Equal(t, 4, report.FilesWritten)
	exists, _ := afero.Exists(fs, "exports/legislaturas/57/itens/2.json")
	assert.True(t, exists)
	exists, _ = afero.Exists(fs, "exports/legislaturas/57/indices/itens.json")
	assert.True(t, exists)
}

func TestRun_LocalFilesFailureIsFatal(t *testing.T) {
	jc := testContext(Options{Destination: DestinationLocalFiles}, nil)
	jc.Exporter = export.New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "exports")

	report, err := NewEngine[rawItem, doc](&fakeJob{items: items(3)}).Run(context.Background(), jc)
	require.Error(t, err)
	assert.Equal(t, StateError, report.State)
	assert.Equal(t, StateLoading, report.FailedState)
	assert.NotEmpty(t, report.Error)
}

func TestRun_ValidationStopsBeforeExtract(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		job  *fakeJob
	}{
		{"zero limit", Options{ItemLimit: util.Ptr(0)}, &fakeJob{}},
		{"period out of range", Options{PeriodNumber: util.Ptr(200)}, &fakeJob{}},
		{"unknown destination", Options{Destination: "ftp"}, &fakeJob{}},
		{"reversed range", Options{DateRange: &DateRange{
			Start: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		}}, &fakeJob{}},
		{"job rule", Options{}, &fakeJob{invalid: "--membros needs --id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, w := memWriter()
			report, err := NewEngine[rawItem, doc](tt.job).Run(context.Background(), testContext(tt.opts, w))

			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, StateValidating, report.FailedState)
			assert.Equal(t, int32(0), tt.job.extractCalls.Load())
			assert.Empty(t, mem.Commits())
		})
	}
}

func TestRun_MissingWriter(t *testing.T) {
	_, err := NewEngine[rawItem, doc](&fakeJob{}).Run(context.Background(), testContext(Options{Destination: DestinationStore}, nil))
	assert.True(t, errors.IsValidation(err))
}

func TestRun_WarningsContinue(t *testing.T) {
	_, w := memWriter()
	report, err := NewEngine[rawItem, doc](&fakeJob{items: items(1), warn: "no --id, syncing everyone"}).
		Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)
	assert.Equal(t, []string{"no --id, syncing everyone"}, report.Warnings)
}

func TestRun_ExtractFailureIsFatal(t *testing.T) {
	_, w := memWriter()
	job := &fakeJob{extractErr: errors.Mark(errors.New("GET /deputados: HTTP 503"), errors.ErrTransient)}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StateExtracting, report.FailedState)
	assert.Equal(t, int32(0), job.transformCalls.Load())
}

func TestRun_ResolvesCurrentPeriod(t *testing.T) {
	_, w := memWriter()
	jc := testContext(Options{}, w)
	jc.Options.PeriodNumber = nil
	jc.Now = func() time.Time { return time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC) }

	report, err := NewEngine[rawItem, doc](&fakeJob{items: items(1)}).Run(context.Background(), jc)
	require.NoError(t, err)
	assert.Equal(t, 56, report.Period)
}

func TestRun_IndexWrittenLastForCompleteRun(t *testing.T) {
	mem, w := memWriter(batch.WithMaxOps(2))
	job := indexedJob{&fakeJob{items: items(4)}}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, mem.Commits(), "index committed last")
	assert.True(t, report.Chunks[2].IndexOnly)

	idx, ok := mem.Get("legislaturas/57/indices/itens")
	require.True(t, ok)
	assert.Equal(t, 4, idx["total"])
	assert.Equal(t, []any{"1", "2", "3", "4"}, idx["ids"])
}

func TestRun_IndexKeptOnPartialRun(t *testing.T) {
	for _, tc := range []struct {
		name   string
		opts   Options
		reason string
	}{
		{"single entity", Options{EntityID: "3"}, "--id 3"},
		{"item limit", Options{ItemLimit: util.Ptr(2)}, "item limit"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mem, w := memWriter()
			_, err := NewEngine[rawItem, doc](indexedJob{&fakeJob{items: items(4)}}).Run(context.Background(), testContext(Options{}, w))
			require.NoError(t, err)

			report, err := NewEngine[rawItem, doc](indexedJob{&fakeJob{items: items(4)}}).Run(context.Background(), testContext(tc.opts, w))
			require.NoError(t, err)

			assert.Equal(t, 0, report.IndexOps)
			require.NotEmpty(t, report.Warnings)
			assert.Contains(t, report.Warnings[len(report.Warnings)-1], tc.reason)

			idx, ok := mem.Get("legislaturas/57/indices/itens")
			require.True(t, ok)
			assert.Equal(t, 4, idx["total"], "index from the full run survives")
		})
	}
}

func TestRun_IndexSkippedAfterFailedChunk(t *testing.T) {
	mem, w := memWriter(batch.WithMaxOps(2), batch.WithFailures(batch.FailCommit(1, errors.New("unavailable"))))
	job := indexedJob{&fakeJob{items: items(4)}}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2}, mem.Commits())
	assert.Equal(t, 0, report.IndexOps)
	assert.Contains(t, report.Warnings, "index not updated: chunks failed to commit")
	_, ok := mem.Get("legislaturas/57/indices/itens")
	assert.False(t, ok)
}

func TestRun_UpstreamCountFromJob(t *testing.T) {
	_, w := memWriter()
	job := &fakeJob{items: items(3), upstream: 10, truncated: true}

	report, err := NewEngine[rawItem, doc](indexedJob{job}).Run(context.Background(),
		testContext(Options{ItemLimit: util.Ptr(3)}, w))
	require.NoError(t, err)

	assert.Equal(t, int64(10), report.Stats.Upstream)
	assert.Equal(t, int64(3), report.Stats.Limited)
	assert.Equal(t, int32(3), job.transformCalls.Load())
	assert.Equal(t, 0, report.IndexOps, "entities left unfetched make the run partial")
}

func TestRun_IndexSkippedWhenNothingLoaded(t *testing.T) {
	mem, w := memWriter(batch.WithFailures(func(int, []batch.Operation) error { return errors.New("down") }))
	job := indexedJob{&fakeJob{items: items(3)}}

	report, err := NewEngine[rawItem, doc](job).Run(context.Background(), testContext(Options{}, w))
	require.NoError(t, err)
	assert.Equal(t, 0, report.IndexOps)
	assert.Equal(t, []int{3}, mem.Commits())
}

type recorder struct {
	mu     sync.Mutex
	stages []string
	events []pulse.Event
	panics bool
}

func (r *recorder) EmitStage(stage, _ string) {
	r.mu.Lock()
	r.stages = append(r.stages, stage)
	r.mu.Unlock()
	if r.panics {
		panic("observer bug")
	}
}

func (r *recorder) EmitProgress(e pulse.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) EmitComplete(map[string]interface{}) {}
func (r *recorder) EmitError(string, error)             {}
func (r *recorder) EmitInfo(string)                     {}

func TestRun_EmitsStagesAndProgress(t *testing.T) {
	_, w := memWriter()
	rec := &recorder{}
	jc := testContext(Options{}, w)
	jc.Progress = rec
	jc.Settings.ProgressInterval = 10

	_, err := NewEngine[rawItem, doc](&fakeJob{items: items(25)}).Run(context.Background(), jc)
	require.NoError(t, err)

	assert.Equal(t, []string{"VALIDATING", "EXTRACTING", "TRANSFORMING", "LOADING"}, rec.stages)

	var transform []pulse.Event
	for _, e := range rec.events {
		if e.Stage == string(StateTransforming) {
			transform = append(transform, e)
		}
	}
	require.Len(t, transform, 3)
	assert.Equal(t, 10, transform[0].Done)
	assert.Equal(t, 100.0, transform[2].Percent)
}

func TestRun_PanickingEmitterDoesNotAffectRun(t *testing.T) {
	mem, w := memWriter()
	jc := testContext(Options{}, w)
	jc.Progress = &recorder{panics: true}

	report, err := NewEngine[rawItem, doc](&fakeJob{items: items(3)}).Run(context.Background(), jc)
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, 3, mem.Len())
}

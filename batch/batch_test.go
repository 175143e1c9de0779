package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teranos/legisync/errors"
)

// countingBackend fails the test if anything reaches Apply
type countingBackend struct {
	*MemoryBackend
	applied int
}

func (c *countingBackend) Apply(ctx context.Context, ops []Operation) error {
	c.applied++
	return c.MemoryBackend.Apply(ctx, ops)
}

func newQueue(b Backend) *Queue {
	return New(b, zap.NewNop().Sugar())
}

func TestParsePath(t *testing.T) {
	valid := []string{
		"deputados/204554",
		"/deputados/204554/",
		"congressoNacional/camaraDeputados/legislaturas/57/deputados/204554",
	}
	for _, p := range valid {
		_, err := ParsePath(p)
		assert.NoError(t, err, p)
	}

	invalid := []string{
		"",
		"/",
		"deputados",
		"congressoNacional/camaraDeputados/legislaturas",
		"a//b/c",
		"a/ /b/c",
	}
	for _, p := range invalid {
		_, err := ParsePath(p)
		assert.True(t, errors.IsValidation(err), p)
	}

	p := MustPath("a/b/c/d")
	assert.Equal(t, "a/b/c", p.Collection())
	assert.Equal(t, "d", p.DocID())
	assert.Equal(t, []string{"a", "b", "c", "d"}, p.Segments())
}

func TestOddPathsFailBeforeBackend(t *testing.T) {
	b := &countingBackend{MemoryBackend: NewMemoryBackend()}
	q := newQueue(b)

	assert.True(t, errors.IsValidation(q.Set("a/b/c", map[string]any{"x": 1})))
	assert.True(t, errors.IsValidation(q.Update("a", map[string]any{"x": 1})))
	assert.True(t, errors.IsValidation(q.Delete("a/b/c/d/e")))
	assert.Equal(t, 0, q.Pending())

	res, err := q.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalOps)
	assert.Equal(t, 0, b.applied, "empty commit never reaches the backend")
}

func TestCommit_AppliesAndClears(t *testing.T) {
	b := NewMemoryBackend()
	q := newQueue(b)

	require.NoError(t, q.Set("deputados/1", map[string]any{"nome": "A", "partido": "X"}))
	require.NoError(t, q.Set("deputados/2", map[string]any{"nome": "B"}))
	assert.Equal(t, 2, q.Pending())

	res, err := q.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalOps)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, "memory", res.Backend)
	require.Len(t, res.Details, 2)
	assert.Equal(t, StatusSuccess, res.Details[0].Status)
	assert.Equal(t, "deputados/1", res.Details[0].Path)
	assert.Equal(t, 0, q.Pending())

	require.NoError(t, q.Update("deputados/1", map[string]any{"partido": "Y", "gabinete.sala": "301"}))
	require.NoError(t, q.Delete("deputados/2"))
	_, err = q.Commit(context.Background())
	require.NoError(t, err)

	doc, ok := b.Get("deputados/1")
	require.True(t, ok)
	assert.Equal(t, "A", doc["nome"])
	assert.Equal(t, "Y", doc["partido"])
	assert.Equal(t, map[string]any{"sala": "301"}, doc["gabinete"])
	_, ok = b.Get("deputados/2")
	assert.False(t, ok)
	assert.Equal(t, []string{"deputados/1"}, b.Paths())
}

func TestSetMerge(t *testing.T) {
	b := NewMemoryBackend()
	q := newQueue(b)

	require.NoError(t, q.Set("orgaos/1", map[string]any{"sigla": "CCJC", "nome": "old"}))
	_, err := q.Commit(context.Background())
	require.NoError(t, err)

	require.NoError(t, q.Set("orgaos/1", map[string]any{"nome": "new"}, Merge()))
	require.NoError(t, q.Set("orgaos/2", map[string]any{"a": 1, "b": 2}, MergeFields("a")))
	_, err = q.Commit(context.Background())
	require.NoError(t, err)

	doc, _ := b.Get("orgaos/1")
	assert.Equal(t, map[string]any{"sigla": "CCJC", "nome": "new"}, doc)
	doc, _ = b.Get("orgaos/2")
	assert.Equal(t, map[string]any{"a": 1}, doc)
}

func TestSetMerge_NestedLeaves(t *testing.T) {
	b := NewMemoryBackend()
	q := newQueue(b)

	require.NoError(t, q.Set("deputados/1", map[string]any{
		"nome":     "Bia",
		"gabinete": map[string]any{"sala": "301", "predio": "4"},
	}))
	_, err := q.Commit(context.Background())
	require.NoError(t, err)

	require.NoError(t, q.Set("deputados/1", map[string]any{
		"gabinete": map[string]any{"sala": "410", "telefone": "3215-5410"},
	}, Merge()))
	_, err = q.Commit(context.Background())
	require.NoError(t, err)

	doc, _ := b.Get("deputados/1")
	assert.Equal(t, "Bia", doc["nome"])
	assert.Equal(t, map[string]any{"sala": "410", "predio": "4", "telefone": "3215-5410"}, doc["gabinete"])
}

func TestCommit_AtomicFailure(t *testing.T) {
	b := NewMemoryBackend()
	q := newQueue(b)

	require.NoError(t, q.Set("deputados/1", map[string]any{"n": 1}))
	require.NoError(t, q.Update("deputados/404", map[string]any{"n": 2}))

	res, err := q.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBatchCommit))
	assert.True(t, errors.IsNotFoundError(err), "cause class survives")

	var ce *CommitError
	require.True(t, errors.As(err, &ce))
	assert.Same(t, res, ce.Result)

	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 0, res.Succeeded)
	for _, d := range res.Details {
		assert.Equal(t, StatusFailure, d.Status)
		assert.Equal(t, res.Details[0].Error, d.Error)
		assert.NotEmpty(t, d.Error)
	}

	assert.Equal(t, 0, b.Len(), "nothing applied")
	assert.Equal(t, 0, q.Pending(), "queue cleared after failure")
}

func TestQueue_EnforcesCeiling(t *testing.T) {
	q := newQueue(NewMemoryBackend(WithMaxOps(3)))
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Delete("x/"+string(rune('a'+i))))
	}
	err := q.Delete("x/d")
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, 3, q.Pending())
	assert.Equal(t, 3, q.MaxOps())
}

func TestMemoryBackend_FailureInjection(t *testing.T) {
	b := NewMemoryBackend(WithFailures(FailCommit(2, errors.New("deadline exceeded"))))
	q := newQueue(b)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Set("c/"+string(rune('a'+i)), map[string]any{"i": i}))
		_, err := q.Commit(context.Background())
		if i == 1 {
			assert.Error(t, err)
		} else {
			assert.NoError(t, err)
		}
	}

	assert.Equal(t, []int{1, 1, 1}, b.Commits())
	assert.Equal(t, []string{"c/a", "c/c"}, b.Paths())
}

func TestMemoryBackend_Latency(t *testing.T) {
	q := newQueue(NewMemoryBackend(WithLatency(30 * time.Millisecond)))
	require.NoError(t, q.Set("a/b", map[string]any{}))

	start := time.Now()
	res, err := q.Commit(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.GreaterOrEqual(t, res.ElapsedMS, int64(30))
}

func TestMemoryBackend_CopiesData(t *testing.T) {
	b := NewMemoryBackend()
	q := newQueue(b)

	data := map[string]any{"tags": []any{"a"}}
	require.NoError(t, q.Set("a/b", data))
	_, err := q.Commit(context.Background())
	require.NoError(t, err)

	data["tags"] = []any{"mutated"}
	doc, _ := b.Get("a/b")
	assert.Equal(t, []any{"a"}, doc["tags"])
}

func TestClassifyCommit(t *testing.T) {
	assert.NoError(t, classifyCommit(nil))
	assert.True(t, errors.IsTransient(classifyCommit(status.Error(codes.Unavailable, "down"))))
	assert.True(t, errors.IsTransient(classifyCommit(errors.Wrap(status.Error(codes.Aborted, "contention"), "commit"))))
	assert.True(t, errors.IsClient(classifyCommit(status.Error(codes.PermissionDenied, "no"))))
	assert.True(t, errors.IsNotFoundError(classifyCommit(status.Error(codes.NotFound, "gone"))))
}

func TestSetOptions(t *testing.T) {
	assert.Nil(t, setOptions(Operation{Kind: KindSet}))
	assert.Len(t, setOptions(Operation{Kind: KindSet, Merge: true}), 1)
	assert.Len(t, setOptions(Operation{Kind: KindSet, Merge: true, MergeFields: []string{"a.b", "c"}}), 1)
	assert.Len(t, updates(map[string]any{"a": 1, "b.c": 2}), 2)
}

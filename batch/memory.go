package batch

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/teranos/legisync/errors"
)

// FailureFunc decides whether commit number n (1-based) is rejected
type FailureFunc func(n int, ops []Operation) error

// MemoryBackend is an in-process document store with the same ceiling,
// timing and atomicity as the real one. It backs the mock destination.
type MemoryBackend struct {
	latency time.Duration
	maxOps  int
	fail    FailureFunc

	mu      sync.Mutex
	docs    map[string]map[string]any
	commits []int
}

// MemoryOption configures a MemoryBackend
type MemoryOption func(*MemoryBackend)

// WithLatency simulates the round trip of a commit
func WithLatency(d time.Duration) MemoryOption {
	return func(m *MemoryBackend) {
		m.latency = d
	}
}

// WithMaxOps overrides the per-commit ceiling
func WithMaxOps(n int) MemoryOption {
	return func(m *MemoryBackend) {
		m.maxOps = n
	}
}

// WithFailures injects commit failures
func WithFailures(f FailureFunc) MemoryOption {
	return func(m *MemoryBackend) {
		m.fail = f
	}
}

// FailCommit rejects exactly the nth commit
func FailCommit(n int, err error) FailureFunc {
	return func(i int, _ []Operation) error {
		if i == n {
			return err
		}
		return nil
	}
}

// NewMemoryBackend creates an empty in-memory store
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		maxOps: DefaultMaxOps,
		docs:   make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) MaxOps() int { return m.maxOps }

// Apply applies ops to a copy of the store and swaps it in only if every
// operation succeeded
func (m *MemoryBackend) Apply(ctx context.Context, ops []Operation) error {
	if len(ops) > m.maxOps {
		return errors.Newf("batch of %d operations exceeds the %d ceiling", len(ops), m.maxOps)
	}

	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), "commit interrupted")
		case <-timer.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.commits = append(m.commits, len(ops))
	if m.fail != nil {
		if err := m.fail(len(m.commits), ops); err != nil {
			return err
		}
	}

	next := make(map[string]map[string]any, len(m.docs))
	for k, v := range m.docs {
		next[k] = v
	}

	for _, op := range ops {
		key := op.Path.String()
		switch op.Kind {
		case KindSet:
			data := copyMap(op.Data)
			if op.Merge {
				merged := copyMap(next[key])
				if merged == nil {
					merged = make(map[string]any)
				}
				if len(op.MergeFields) > 0 {
					for _, f := range op.MergeFields {
						if v, ok := getField(data, f); ok {
							setField(merged, f, v)
						}
					}
				} else {
					mergeAll(merged, data)
				}
				data = merged
			}
			next[key] = data
		case KindUpdate:
			existing, ok := next[key]
			if !ok {
				return errors.Mark(errors.Newf("update %s: no such document", key), errors.ErrNotFound)
			}
			updated := copyMap(existing)
			for f, v := range op.Data {
				setField(updated, f, copyValue(v))
			}
			next[key] = updated
		case KindDelete:
			delete(next, key)
		}
	}

	m.docs = next
	return nil
}

// Get returns a copy of the document at path
func (m *MemoryBackend) Get(path string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[strings.Trim(path, "/")]
	if !ok {
		return nil, false
	}
	return copyMap(doc), true
}

// Len returns the number of stored documents
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Paths returns every stored document path, sorted
func (m *MemoryBackend) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.docs))
	for p := range m.docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Commits returns the size of every commit attempted, in order
func (m *MemoryBackend) Commits() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.commits...)
}

// Snapshot returns a copy of every stored document keyed by path
func (m *MemoryBackend) Snapshot() map[string]map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string]any, len(m.docs))
	for k, v := range m.docs {
		out[k] = copyMap(v)
	}
	return out
}

func getField(doc map[string]any, dotted string) (any, bool) {
	parts := strings.Split(dotted, ".")
	var cur any = doc
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func setField(doc map[string]any, dotted string, value any) {
	parts := strings.Split(dotted, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// mergeAll writes every leaf of src into dst, descending into nested maps
// the way Firestore's MergeAll does
func mergeAll(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeAll(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

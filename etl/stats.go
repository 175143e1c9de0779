package etl

import "sync/atomic"

// StageStats counts items through one stage
type StageStats struct {
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Succeed records n items that made it through the stage
func (s *StageStats) Succeed(n int) {
	s.succeeded.Add(int64(n))
}

// Fail records n items excluded by the stage
func (s *StageStats) Fail(n int) {
	s.failed.Add(int64(n))
}

// Snapshot returns the current counts
func (s *StageStats) Snapshot() StageSnapshot {
	ok, bad := s.succeeded.Load(), s.failed.Load()
	return StageSnapshot{Total: ok + bad, Succeeded: ok, Failed: bad}
}

// StageSnapshot is a point-in-time copy of StageStats
type StageSnapshot struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Stats are the processing counters of one run. Fan-out goroutines update
// them concurrently; progress callbacks read them.
type Stats struct {
	Extract   StageStats
	Transform StageStats
	Load      StageStats

	errors   atomic.Int64
	upstream atomic.Int64
	limited  atomic.Int64
}

// RecordError bumps the monotonic error counter
func (s *Stats) RecordError() {
	s.errors.Add(1)
}

// Errors returns the error counter
func (s *Stats) Errors() int64 {
	return s.errors.Load()
}

// SetUpstream records how many items the upstream returned before any limit
func (s *Stats) SetUpstream(n int) {
	s.upstream.Store(int64(n))
}

// SetLimited records how many items were kept after the item limit
func (s *Stats) SetLimited(n int) {
	s.limited.Store(int64(n))
}

// Snapshot returns a copy of all counters
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Extract:   s.Extract.Snapshot(),
		Transform: s.Transform.Snapshot(),
		Load:      s.Load.Snapshot(),
		Errors:    s.errors.Load(),
		Upstream:  s.upstream.Load(),
		Limited:   s.limited.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Extract   StageSnapshot `json:"extract"`
	Transform StageSnapshot `json:"transform"`
	Load      StageSnapshot `json:"load"`
	Errors    int64         `json:"errors"`
	Upstream  int64         `json:"upstream"`
	Limited   int64         `json:"limited"`
}

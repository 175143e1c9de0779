package etl

import (
	"time"

	"go.uber.org/zap"

	"github.com/teranos/legisync/batch"
	"github.com/teranos/legisync/export"
	"github.com/teranos/legisync/logger"
	"github.com/teranos/legisync/period"
	"github.com/teranos/legisync/pulse"
	"github.com/teranos/legisync/upstream"
)

// JobContext is everything one running job owns. It is created once per
// process invocation and never shared between jobs.
type JobContext struct {
	Options  Options
	Settings Settings
	Logger   *zap.SugaredLogger
	Stats    *Stats

	API      *upstream.Client
	Periods  *period.Resolver
	Progress pulse.ProgressEmitter

	// Writer receives operations for the store, emulatedStore and mock destinations
	Writer batch.Writer
	// Exporter receives documents for the localFiles destination
	Exporter *export.Exporter

	// Period is resolved when extraction starts
	Period period.Period

	Now func() time.Time
}

// NewJobContext creates a context with fresh stats and no-op progress
func NewJobContext(opts Options, settings Settings, api *upstream.Client) *JobContext {
	return &JobContext{
		Options:  opts,
		Settings: settings,
		Logger:   logger.Logger,
		Stats:    &Stats{},
		API:      api,
		Progress: pulse.NopEmitter{},
		Now:      time.Now,
	}
}

// fill supplies defaults for anything left unset
func (jc *JobContext) fill(job string) {
	if jc.Logger == nil {
		jc.Logger = logger.Logger
	}
	jc.Logger = jc.Logger.Named(job)
	if jc.Stats == nil {
		jc.Stats = &Stats{}
	}
	if jc.Now == nil {
		jc.Now = time.Now
	}
	if jc.Periods == nil {
		var fetcher period.Fetcher
		if jc.API != nil {
			fetcher = jc.API
		}
		jc.Periods = period.NewResolver(fetcher, period.WithClock(jc.Now), period.WithLogger(jc.Logger))
	}
	jc.Progress = pulse.Safe(jc.Progress, jc.Logger)
	if jc.Settings.Concurrency < 1 {
		jc.Settings.Concurrency = 1
	}
	if jc.Settings.ProgressInterval < 1 {
		jc.Settings.ProgressInterval = 1
	}
}

// Limit applies the item limit to n extracted items
func (jc *JobContext) Limit(n int) int {
	if jc.Options.ItemLimit != nil && *jc.Options.ItemLimit < n {
		return *jc.Options.ItemLimit
	}
	return n
}

package am

import (
	"net/url"
	"strings"

	"github.com/teranos/legisync/errors"
)

// MaxBatchSize is the document store's per-commit operation ceiling
const MaxBatchSize = 500

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidationError("upstream.base_url must be an absolute URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.RequestsPerSecond <= 0 {
		return errors.NewValidationError("upstream.requests_per_second must be > 0, got %f", c.Upstream.RequestsPerSecond)
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return errors.NewValidationError("upstream.timeout_seconds must be > 0, got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.ConnectivityTimeoutSeconds <= 0 {
		return errors.NewValidationError("upstream.connectivity_timeout_seconds must be > 0, got %d", c.Upstream.ConnectivityTimeoutSeconds)
	}
	if c.Upstream.PageSize <= 0 {
		return errors.NewValidationError("upstream.page_size must be > 0, got %d", c.Upstream.PageSize)
	}
	// 0 = no page ceiling
	if c.Upstream.MaxPages < 0 {
		return errors.NewValidationError("upstream.max_pages must be >= 0, got %d", c.Upstream.MaxPages)
	}
	if c.Upstream.PageDelayMS < 0 {
		return errors.NewValidationError("upstream.page_delay_ms must be >= 0, got %d", c.Upstream.PageDelayMS)
	}
	if c.Upstream.PageParam == "" || c.Upstream.SizeParam == "" {
		return errors.NewValidationError("upstream.page_param and upstream.size_param cannot be empty")
	}

	if c.ETL.Concurrency < 1 {
		return errors.NewValidationError("etl.concurrency must be >= 1, got %d", c.ETL.Concurrency)
	}
	if c.ETL.RetryAttempts < 1 {
		return errors.NewValidationError("etl.retry_attempts must be >= 1, got %d", c.ETL.RetryAttempts)
	}
	if c.ETL.RetryDelayMS < 0 {
		return errors.NewValidationError("etl.retry_delay_ms must be >= 0, got %d", c.ETL.RetryDelayMS)
	}
	if c.ETL.BatchSize < 1 || c.ETL.BatchSize > MaxBatchSize {
		return errors.NewValidationError("etl.batch_size must be in 1..%d, got %d", MaxBatchSize, c.ETL.BatchSize)
	}
	if c.ETL.ProgressInterval < 1 {
		return errors.NewValidationError("etl.progress_interval must be >= 1, got %d", c.ETL.ProgressInterval)
	}

	if c.Store.MockLatencyMS < 0 {
		return errors.NewValidationError("store.mock_latency_ms must be >= 0, got %d", c.Store.MockLatencyMS)
	}
	if segs := strings.Split(strings.Trim(c.Store.RootCollection, "/"), "/"); c.Store.RootCollection == "" || len(segs)%2 != 0 {
		return errors.NewValidationError("store.root_collection must have an even number of segments, got %q", c.Store.RootCollection)
	}
	if c.Export.BaseDir == "" {
		return errors.NewValidationError("export.base_dir cannot be empty")
	}

	return nil
}

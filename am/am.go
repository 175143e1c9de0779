package am

import "time"

// Config represents the legisync configuration
type Config struct {
	Upstream UpstreamConfig `mapstructure:"upstream" toml:"upstream"`
	ETL      ETLConfig      `mapstructure:"etl" toml:"etl"`
	Store    StoreConfig    `mapstructure:"store" toml:"store"`
	Export   ExportConfig   `mapstructure:"export" toml:"export"`
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Period   PeriodConfig   `mapstructure:"period" toml:"period"`
}

// UpstreamConfig configures the paginated HTTP data source
type UpstreamConfig struct {
	BaseURL                    string  `mapstructure:"base_url" toml:"base_url"`
	RequestsPerSecond          float64 `mapstructure:"requests_per_second" toml:"requests_per_second"`                   // global throttle ceiling
	TimeoutSeconds             int     `mapstructure:"timeout_seconds" toml:"timeout_seconds"`                           // per request
	ConnectivityTimeoutSeconds int     `mapstructure:"connectivity_timeout_seconds" toml:"connectivity_timeout_seconds"` // `legisync check`
	PageSize                   int     `mapstructure:"page_size" toml:"page_size"`
	MaxPages                   int     `mapstructure:"max_pages" toml:"max_pages"`         // 0 = unbounded
	PageDelayMS                int     `mapstructure:"page_delay_ms" toml:"page_delay_ms"` // pause between page requests
	PageParam                  string  `mapstructure:"page_param" toml:"page_param"`
	SizeParam                  string  `mapstructure:"size_param" toml:"size_param"`
	UserAgent                  string  `mapstructure:"user_agent" toml:"user_agent"`
}

// ETLConfig holds the static settings every job runs with
type ETLConfig struct {
	Concurrency      int `mapstructure:"concurrency" toml:"concurrency"` // in-flight upstream requests per fan-out
	RetryAttempts    int `mapstructure:"retry_attempts" toml:"retry_attempts"`
	RetryDelayMS     int `mapstructure:"retry_delay_ms" toml:"retry_delay_ms"`
	BatchSize        int `mapstructure:"batch_size" toml:"batch_size"`               // commit ceiling, at most 500
	ProgressInterval int `mapstructure:"progress_interval" toml:"progress_interval"` // items between progress events
}

// StoreConfig configures the document store connection
type StoreConfig struct {
	ProjectID       string `mapstructure:"project_id" toml:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file" toml:"credentials_file"`
	EmulatorHost    string `mapstructure:"emulator_host" toml:"emulator_host"` // used by --emulator
	Token           string `mapstructure:"token" toml:"token,omitempty"`       // bearer credential, passed through
	MockLatencyMS   int    `mapstructure:"mock_latency_ms" toml:"mock_latency_ms"`
	RootCollection  string `mapstructure:"root_collection" toml:"root_collection"` // document path prefix for every job
}

// ExportConfig configures the local file export (--pc)
type ExportConfig struct {
	BaseDir string `mapstructure:"base_dir" toml:"base_dir"`
}

// DatabaseConfig configures the SQLite run ledger
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// PeriodConfig configures the legislature table
type PeriodConfig struct {
	TableFile string `mapstructure:"table_file" toml:"table_file"` // empty = embedded table
}

// Timeout returns the per-request timeout
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// ConnectivityTimeout returns the timeout for the connectivity check
func (u UpstreamConfig) ConnectivityTimeout() time.Duration {
	return time.Duration(u.ConnectivityTimeoutSeconds) * time.Second
}

// PageDelay returns the pause inserted between page requests
func (u UpstreamConfig) PageDelay() time.Duration {
	return time.Duration(u.PageDelayMS) * time.Millisecond
}

// RetryDelay returns the fixed delay between retry attempts
func (e ETLConfig) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelayMS) * time.Millisecond
}

// MockLatency returns the simulated commit latency of the mock backend
func (s StoreConfig) MockLatency() time.Duration {
	return time.Duration(s.MockLatencyMS) * time.Millisecond
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

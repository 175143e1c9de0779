package etl

import (
	"time"

	"github.com/teranos/legisync/am"
	"github.com/teranos/legisync/batch"
)

// Settings are the static knobs every job runs with
type Settings struct {
	Concurrency      int
	RetryAttempts    int
	RetryDelay       time.Duration
	BatchSize        int
	ProgressInterval int
	RootCollection   string
}

// DefaultSettings mirrors the configuration defaults
func DefaultSettings() Settings {
	return Settings{
		Concurrency:      3,
		RetryAttempts:    3,
		RetryDelay:       2 * time.Second,
		BatchSize:        batch.DefaultMaxOps,
		ProgressInterval: 50,
		RootCollection:   "congressoNacional/camaraDeputados",
	}
}

// SettingsFrom builds Settings from the application configuration
func SettingsFrom(cfg *am.Config) Settings {
	return Settings{
		Concurrency:      cfg.ETL.Concurrency,
		RetryAttempts:    cfg.ETL.RetryAttempts,
		RetryDelay:       cfg.ETL.RetryDelay(),
		BatchSize:        cfg.ETL.BatchSize,
		ProgressInterval: cfg.ETL.ProgressInterval,
		RootCollection:   cfg.Store.RootCollection,
	}
}

package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Upstream (Câmara dos Deputados open data API)
	v.SetDefault("upstream.base_url", "https://dadosabertos.camara.leg.br/api/v2")
	v.SetDefault("upstream.requests_per_second", 5.0) // upstream rejects bursts above ~10/s
	v.SetDefault("upstream.timeout_seconds", 30)
	v.SetDefault("upstream.connectivity_timeout_seconds", 5)
	v.SetDefault("upstream.page_size", 100) // API maximum for `itens`
	v.SetDefault("upstream.max_pages", 0)
	v.SetDefault("upstream.page_delay_ms", 200)
	v.SetDefault("upstream.page_param", "pagina")
	v.SetDefault("upstream.size_param", "itens")
	v.SetDefault("upstream.user_agent", "legisync")

	// ETL
	v.SetDefault("etl.concurrency", 3)
	v.SetDefault("etl.retry_attempts", 3)
	v.SetDefault("etl.retry_delay_ms", 2000)
	v.SetDefault("etl.batch_size", 500)
	v.SetDefault("etl.progress_interval", 50)

	// Store
	v.SetDefault("store.emulator_host", "localhost:8080")
	v.SetDefault("store.mock_latency_ms", 25)
	v.SetDefault("store.root_collection", "congressoNacional/camaraDeputados")

	v.SetDefault("export.base_dir", "exports")
	v.SetDefault("database.path", "legisync.db")
	v.SetDefault("period.table_file", "")
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("store.token", "LEGISYNC_STORE_TOKEN")
	_ = v.BindEnv("store.credentials_file", "LEGISYNC_STORE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	_ = v.BindEnv("store.project_id", "LEGISYNC_STORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv("database.path", "LEGISYNC_DATABASE_PATH")
}

// Package config handles configuration loading using viper, shared
// between the server (ServerConfig, server.go) and job submission
// (JobSubmission, job.go) entry points.
package config

// ─── Control Plane ───

// ControlConfig contains local control plane settings — the unix socket
// start-server binds and submit-job/cancel dial (spec.md §6.1).
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Listen          string `mapstructure:"listen"`
	Path            string `mapstructure:"path"`
	CollectInterval string `mapstructure:"collect_interval"` // e.g. "5s", hot-reloadable
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig []OutputConfig

// OutputConfig is one logging sink (console/file/loki).
type OutputConfig struct {
	Type          string            `mapstructure:"type"`
	Path          string            `mapstructure:"path"`
	MaxSizeMB     int               `mapstructure:"max_size_mb"`
	MaxAgeDays    int               `mapstructure:"max_age_days"`
	MaxBackups    int               `mapstructure:"max_backups"`
	Compress      bool              `mapstructure:"compress"`
	Endpoint      string            `mapstructure:"endpoint"`
	Labels        map[string]string `mapstructure:"labels"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval string            `mapstructure:"flush_interval"`
}

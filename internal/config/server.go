package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ConnParams are the per-TCP-link transport parameters (spec.md §6.3).
type ConnParams struct {
	Nonblocking     bool   `mapstructure:"nonblocking"`
	ReadTimeoutMs   int    `mapstructure:"read_timeout_ms"`
	WriteTimeoutMs  int    `mapstructure:"write_timeout_ms"`
	SlabSize        int    `mapstructure:"slab_size"` // 0 = per-message
	Nodelay         bool   `mapstructure:"nodelay"`
	SendBufferBytes int    `mapstructure:"send_buffer_bytes"`
	HeartbeatSec    int    `mapstructure:"heartbeat_sec"` // default 5
	MaxPoolSize     int    `mapstructure:"max_pool_size"`
}

func (c *ConnParams) applyDefaults() {
	if c.HeartbeatSec == 0 {
		c.HeartbeatSec = 5
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 64
	}
}

// ServerConfig is the server process's static configuration — spec.md
// §6.1/§6.4's `start-server --config <toml>` input. It reuses the
// Control/Log/Metrics shapes already defined for the agent's own
// configuration (same mapstructure tags, same viper loading idiom) rather
// than inventing a parallel set of knobs for concerns those already cover.
type ServerConfig struct {
	Control    ControlConfig `mapstructure:"control"`
	Log        LogConfig     `mapstructure:"log"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Conn       ConnParams    `mapstructure:"conn"`
	MaxWorkers int           `mapstructure:"max_workers"`
}

type serverConfigRoot struct {
	Gflow ServerConfig `mapstructure:"gflow"`
}

// LoadServerConfig reads a TOML server config at path (spec.md §6.1's
// "start-server --config <toml>"), following the same viper
// read-then-unmarshal-then-default idiom as LoadJobSubmission.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read server config file: %w", err)
	}

	var root serverConfigRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}
	cfg := root.Gflow
	cfg.Conn.applyDefaults()
	if cfg.Control.Socket == "" {
		cfg.Control.Socket = "/tmp/gflow.sock"
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	return &cfg, nil
}

// WatchServerConfig reloads the whole ServerConfig with LoadServerConfig on
// every write or create event for path and passes the result (or the load
// error) to onReload. It applies no setting itself; what takes effect is
// up to onReload.
func WatchServerConfig(path string, onReload func(*ServerConfig, error)) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadServerConfig(path)
			onReload(cfg, err)
		}
	}()
	return w, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTmpToml(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write tmp file: %v", err)
	}
	return p
}

func TestLoadServerConfigAppliesDefaults(t *testing.T) {
	path := writeTmpToml(t, "server.toml", `
[gflow.control]
socket = "/tmp/test.sock"

[gflow.conn]
slab_size = 4096
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.Control.Socket != "/tmp/test.sock" {
		t.Fatalf("Socket = %q, want /tmp/test.sock", cfg.Control.Socket)
	}
	if cfg.Conn.HeartbeatSec != 5 {
		t.Fatalf("HeartbeatSec = %d, want default 5", cfg.Conn.HeartbeatSec)
	}
	if cfg.Conn.SlabSize != 4096 {
		t.Fatalf("SlabSize = %d, want 4096", cfg.Conn.SlabSize)
	}
	if cfg.MaxWorkers != 1 {
		t.Fatalf("MaxWorkers = %d, want default 1", cfg.MaxWorkers)
	}
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	if _, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadJobSubmissionAppliesDefaults(t *testing.T) {
	path := writeTmpToml(t, "job.toml", `
job_id = 42
job_name = "poc-query"
workers = 2
`)
	s, err := LoadJobSubmission(path)
	if err != nil {
		t.Fatalf("LoadJobSubmission: %v", err)
	}
	if s.BatchSize != 1024 || s.BatchCapacity != 64 {
		t.Fatalf("defaults not applied: %+v", s)
	}
	if s.Servers.Mode != "local" {
		t.Fatalf("Servers.Mode = %q, want local", s.Servers.Mode)
	}

	conf := s.ToJobConf(nil, []byte("src"), nil)
	if conf.JobID != 42 || conf.JobName != "poc-query" || conf.Workers != 2 {
		t.Fatalf("ToJobConf mismatch: %+v", conf)
	}
	if conf.Servers.Mode != "local" {
		t.Fatalf("ToJobConf Servers.Mode = %q, want local", conf.Servers.Mode)
	}
}

package config

import (
	"fmt"

	"github.com/spf13/viper"

	"firestige.xyz/gflow/pkg/pb"
)

// JobSubmission is the TOML-decodable shape of a submit-job input file —
// everything spec.md §6.1 says a submission carries except the plan
// itself and source/resource blobs, which are loaded separately (binary,
// not TOML-friendly) and attached by the caller before dialing.
type JobSubmission struct {
	JobID         uint64 `mapstructure:"job_id"`
	JobName       string `mapstructure:"job_name"`
	Workers       int32  `mapstructure:"workers"`
	BatchSize     int32  `mapstructure:"batch_size"`     // default 1024
	BatchCapacity int32  `mapstructure:"batch_capacity"` // default 64
	TimeLimitMs   int64  `mapstructure:"time_limit_ms"`  // 0 = none
	TraceEnable   bool   `mapstructure:"trace_enable"`
	Servers       struct {
		Mode string  `mapstructure:"mode"` // "local" | "partial" | "all"
		IDs  []int32 `mapstructure:"ids"`
	} `mapstructure:"servers"`
}

// applyDefaults fills BatchCapacity and Servers.Mode when left unset.
// BatchSize is defaulted to 1024 by LoadJobSubmission only when the file
// omits batch_size; an explicit batch_size = 0 is kept as-is and rejected
// by internal/plan.ValidateBatchSize instead of being silently coerced.
func (s *JobSubmission) applyDefaults() {
	if s.BatchCapacity == 0 {
		s.BatchCapacity = 64
	}
	if s.Servers.Mode == "" {
		s.Servers.Mode = "local"
	}
}

// LoadJobSubmission reads a submit-job TOML file at path.
func LoadJobSubmission(path string) (*JobSubmission, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read job submission file: %w", err)
	}
	var s JobSubmission
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job submission: %w", err)
	}
	if !v.IsSet("batch_size") {
		s.BatchSize = 1024
	}
	s.applyDefaults()
	return &s, nil
}

// ToJobConf builds the pb.JobConf to submit, attaching the already-built
// plan bytes and optional source/resource blobs the caller loaded
// separately.
func (s *JobSubmission) ToJobConf(planPB *pb.Plan, source, resource []byte) *pb.JobConf {
	return &pb.JobConf{
		JobID:         s.JobID,
		JobName:       s.JobName,
		Workers:       s.Workers,
		BatchSize:     s.BatchSize,
		BatchCapacity: s.BatchCapacity,
		TimeLimitMs:   s.TimeLimitMs,
		TraceEnable:   s.TraceEnable,
		Servers: &pb.ServerSelector{
			Mode:      s.Servers.Mode,
			ServerIDs: s.Servers.IDs,
		},
		Plan:     planPB,
		Source:   source,
		Resource: resource,
	}
}

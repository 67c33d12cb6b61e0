package cmd

import (
	"context"

	"firestige.xyz/gflow/pkg/pb"
)

// ClientInterface is every method submit-job/cancel needs from a server
// connection — small enough that tests substitute a mock for it instead
// of dialing a real gRPC connection.
type ClientInterface interface {
	SubmitJob(ctx context.Context, conf *pb.JobConf, onChunk func(*pb.JobResultChunk)) error
	Cancel(ctx context.Context, jobID uint64) error
	Close() error
}

package rpc

import (
	"context"
	"sync"

	"firestige.xyz/gflow/internal/plan"
	"firestige.xyz/gflow/pkg/pb"
)

// JobRunner is what Server delegates an admitted job to — internal/worker
// in production, a stub in tests. Run streams result chunks to sink and
// returns once the job's result stream is fully delivered (spec.md §7:
// "atomic at the result granularity").
type JobRunner interface {
	Run(ctx context.Context, jobID uint64, built *plan.Plan, conf *pb.JobConf, sink func(*pb.JobResultChunk)) error
}

// Server implements pb.JobServiceServer (spec.md §6.1), validating a
// submitted plan before admitting the job (spec.md §7: "fail submission
// before any worker starts" on a Build error) and otherwise delegating
// execution to a JobRunner.
type Server struct {
	pb.UnimplementedJobServiceServer

	runner JobRunner

	mu     sync.Mutex
	cancel map[uint64]context.CancelFunc
}

// NewServer constructs a Server dispatching admitted jobs to runner.
func NewServer(runner JobRunner) *Server {
	return &Server{runner: runner, cancel: make(map[uint64]context.CancelFunc)}
}

// SubmitJob validates req.Conf.Plan, admits the job, and streams result
// chunks until the runner reports completion or error (spec.md §6.1).
func (s *Server) SubmitJob(req *pb.SubmitJobRequest, stream pb.JobService_SubmitJobServer) error {
	if req == nil || req.Conf == nil {
		return stream.Send(&pb.JobResultChunk{Done: true, OK: false, ErrorMessage: "missing job configuration"})
	}
	conf := req.Conf

	if err := plan.ValidateBatchSize(conf.BatchSize); err != nil {
		return stream.Send(&pb.JobResultChunk{JobID: conf.JobID, Done: true, OK: false, ErrorMessage: err.Error()})
	}

	built, err := plan.Build(conf.Plan)
	if err != nil {
		return stream.Send(&pb.JobResultChunk{JobID: conf.JobID, Done: true, OK: false, ErrorMessage: err.Error()})
	}

	ctx, cancel := context.WithCancel(stream.Context())
	s.mu.Lock()
	s.cancel[conf.JobID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancel, conf.JobID)
		s.mu.Unlock()
		cancel()
	}()

	var sendErr error
	sink := func(chunk *pb.JobResultChunk) {
		if sendErr != nil {
			return
		}
		sendErr = stream.Send(chunk)
	}

	runErr := s.runner.Run(ctx, conf.JobID, built, conf, sink)
	if sendErr != nil {
		return sendErr
	}
	if runErr != nil {
		return stream.Send(&pb.JobResultChunk{JobID: conf.JobID, Done: true, OK: false, ErrorMessage: runErr.Error()})
	}
	return stream.Send(&pb.JobResultChunk{JobID: conf.JobID, Done: true, OK: true})
}

// Cancel cooperatively cancels a running job's context (spec.md §7:
// "Cancelled: client cancelled or time limit — sink receives cancellation,
// workers exit cleanly").
func (s *Server) Cancel(ctx context.Context, req *pb.CancelRequest) (*pb.CancelResponse, error) {
	s.mu.Lock()
	cancel, ok := s.cancel[req.JobID]
	s.mu.Unlock()
	if !ok {
		return &pb.CancelResponse{Accepted: false, Message: "job not found or already finished"}, nil
	}
	cancel()
	return &pb.CancelResponse{Accepted: true}, nil
}

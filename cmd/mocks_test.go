package cmd

import (
	"context"

	"github.com/stretchr/testify/mock"

	"firestige.xyz/gflow/pkg/pb"
)

// MockClient implements ClientInterface for submit-job/cancel tests.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) SubmitJob(ctx context.Context, conf *pb.JobConf, onChunk func(*pb.JobResultChunk)) error {
	args := m.Called(ctx, conf, onChunk)
	return args.Error(0)
}

func (m *MockClient) Cancel(ctx context.Context, jobID uint64) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

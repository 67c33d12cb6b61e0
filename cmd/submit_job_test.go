package cmd

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"firestige.xyz/gflow/pkg/pb"
)

func writePlanFile(t *testing.T, wire *pb.Plan) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "plan.gob")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create plan file: %v", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(wire); err != nil {
		t.Fatalf("encode plan file: %v", err)
	}
	return p
}

func writeJobFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "job.toml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write job file: %v", err)
	}
	return p
}

func pocPlanWire() *pb.Plan {
	return &pb.Plan{Operators: []*pb.OperatorDescriptor{
		{Kind: "source"},
		{Kind: "sink", Inputs: []*pb.PortRef{{OperatorIndex: 0}}},
	}}
}

func TestRunSubmitJob_Success(t *testing.T) {
	planPath := writePlanFile(t, pocPlanWire())
	jobPath := writeJobFile(t, "job_id = 1\njob_name = \"poc\"\n")

	mockClient := new(MockClient)
	mockClient.On("SubmitJob", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			onChunk := args.Get(2).(func(*pb.JobResultChunk))
			onChunk(&pb.JobResultChunk{JobID: 1, PayloadBytes: []byte("hello")})
			onChunk(&pb.JobResultChunk{JobID: 1, Done: true, OK: true})
		}).
		Return(nil)

	var buf bytes.Buffer
	err := runSubmitJob(context.Background(), mockClient, &buf, jobPath, planPath, "")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "✓ job completed")
	mockClient.AssertExpectations(t)
}

func TestRunSubmitJob_JobFailureChunk(t *testing.T) {
	planPath := writePlanFile(t, pocPlanWire())
	jobPath := writeJobFile(t, "job_id = 2\n")

	mockClient := new(MockClient)
	mockClient.On("SubmitJob", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			onChunk := args.Get(2).(func(*pb.JobResultChunk))
			onChunk(&pb.JobResultChunk{JobID: 2, Done: true, OK: false, ErrorMessage: "boom"})
		}).
		Return(nil)

	var buf bytes.Buffer
	err := runSubmitJob(context.Background(), mockClient, &buf, jobPath, planPath, "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunSubmitJob_StreamError(t *testing.T) {
	planPath := writePlanFile(t, pocPlanWire())
	jobPath := writeJobFile(t, "job_id = 3\n")

	mockClient := new(MockClient)
	mockClient.On("SubmitJob", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))

	var buf bytes.Buffer
	err := runSubmitJob(context.Background(), mockClient, &buf, jobPath, planPath, "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRunSubmitJob_RejectsInvalidPlan(t *testing.T) {
	planPath := writePlanFile(t, &pb.Plan{Operators: []*pb.OperatorDescriptor{{Kind: "not-a-real-kind"}}})
	jobPath := writeJobFile(t, "job_id = 4\n")

	mockClient := new(MockClient)

	var buf bytes.Buffer
	err := runSubmitJob(context.Background(), mockClient, &buf, jobPath, planPath, "")

	assert.Error(t, err)
	mockClient.AssertNotCalled(t, "SubmitJob", mock.Anything, mock.Anything, mock.Anything)
}

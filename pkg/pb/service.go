package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// JobService is the job-submission RPC surface (spec.md §6.1): a unary
// SubmitJob that returns a server-streaming result, and a unary Cancel.
// Hand-written in the shape protoc-gen-go-grpc would emit for a service
// with one server-streaming and one unary method.
const (
	jobServiceName          = "gflow.pb.JobService"
	jobServiceSubmitJobPath = "/" + jobServiceName + "/SubmitJob"
	jobServiceCancelPath    = "/" + jobServiceName + "/Cancel"
)

// JobServiceClient is the client API for JobService.
type JobServiceClient interface {
	SubmitJob(ctx context.Context, in *SubmitJobRequest, opts ...grpc.CallOption) (JobService_SubmitJobClient, error)
	Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error)
}

type jobServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewJobServiceClient wraps an existing connection with the JobService
// client stub.
func NewJobServiceClient(cc grpc.ClientConnInterface) JobServiceClient {
	return &jobServiceClient{cc: cc}
}

func (c *jobServiceClient) SubmitJob(ctx context.Context, in *SubmitJobRequest, opts ...grpc.CallOption) (JobService_SubmitJobClient, error) {
	stream, err := c.cc.NewStream(ctx, &jobServiceSubmitJobStreamDesc, jobServiceSubmitJobPath, opts...)
	if err != nil {
		return nil, err
	}
	x := &jobServiceSubmitJobClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *jobServiceClient) Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error) {
	out := new(CancelResponse)
	if err := c.cc.Invoke(ctx, jobServiceCancelPath, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// JobService_SubmitJobClient is the client-side handle on SubmitJob's
// result stream.
type JobService_SubmitJobClient interface {
	Recv() (*JobResultChunk, error)
	grpc.ClientStream
}

type jobServiceSubmitJobClient struct {
	grpc.ClientStream
}

func (x *jobServiceSubmitJobClient) Recv() (*JobResultChunk, error) {
	m := new(JobResultChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// JobServiceServer is the server API for JobService.
type JobServiceServer interface {
	SubmitJob(*SubmitJobRequest, JobService_SubmitJobServer) error
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
}

// UnimplementedJobServiceServer embeds in a real server implementation to
// satisfy JobServiceServer for methods it doesn't override, and to stay
// source-compatible if the interface grows a method later — the same
// forward-compatibility shim protoc-gen-go-grpc emits.
type UnimplementedJobServiceServer struct{}

func (UnimplementedJobServiceServer) SubmitJob(*SubmitJobRequest, JobService_SubmitJobServer) error {
	return status.Errorf(codes.Unimplemented, "method SubmitJob not implemented")
}

func (UnimplementedJobServiceServer) Cancel(context.Context, *CancelRequest) (*CancelResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Cancel not implemented")
}

// JobService_SubmitJobServer is the server-side handle on SubmitJob's
// result stream.
type JobService_SubmitJobServer interface {
	Send(*JobResultChunk) error
	grpc.ServerStream
}

type jobServiceSubmitJobServer struct {
	grpc.ServerStream
}

func (x *jobServiceSubmitJobServer) Send(m *JobResultChunk) error {
	return x.ServerStream.SendMsg(m)
}

func jobServiceSubmitJobHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubmitJobRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(JobServiceServer).SubmitJob(m, &jobServiceSubmitJobServer{stream})
}

func jobServiceCancelHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JobServiceServer).Cancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: jobServiceCancelPath}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(JobServiceServer).Cancel(ctx, req.(*CancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var jobServiceSubmitJobStreamDesc = grpc.StreamDesc{
	StreamName:    "SubmitJob",
	Handler:       jobServiceSubmitJobHandler,
	ServerStreams: true,
}

// JobServiceServiceDesc is the grpc.ServiceDesc for JobService, analogous
// to the _ServiceDesc var protoc-gen-go-grpc generates.
var JobServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: jobServiceName,
	HandlerType: (*JobServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Cancel", Handler: jobServiceCancelHandler},
	},
	Streams:  []grpc.StreamDesc{jobServiceSubmitJobStreamDesc},
	Metadata: "gflow.proto",
}

// RegisterJobServiceServer registers srv with s, the way protoc-gen-go-grpc's
// generated RegisterJobServiceServer would.
func RegisterJobServiceServer(s grpc.ServiceRegistrar, srv JobServiceServer) {
	s.RegisterService(&JobServiceServiceDesc, srv)
}

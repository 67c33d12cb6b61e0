package rpc

import (
	"context"
	"fmt"
	"io"
	"time"

	"firestige.xyz/gflow/pkg/pb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultSockPath is where Server listens and Client dials by default
// (spec.md §6.4's `start-server`/`submit-job` pair).
const DefaultSockPath = "/tmp/gflow.sock"

// Client is a thin wrapper over the generated JobService stub, dialing a
// unix socket the way the teacher's internal/rpc.Client does.
type Client struct {
	conn   *grpc.ClientConn
	client pb.JobServiceClient
}

// NewClient dials sockPath (DefaultSockPath if empty).
func NewClient(sockPath string) (*Client, error) {
	if sockPath == "" {
		sockPath = DefaultSockPath
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(
		ctx,
		"unix://"+sockPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gflow server: %w", err)
	}

	return &Client{conn: conn, client: pb.NewJobServiceClient(conn)}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// SubmitJob submits conf and returns every result chunk in order via fn,
// returning once the stream terminates (OK or error, spec.md §6.1).
func (c *Client) SubmitJob(ctx context.Context, conf *pb.JobConf, fn func(*pb.JobResultChunk)) error {
	stream, err := c.client.SubmitJob(ctx, &pb.SubmitJobRequest{Conf: conf})
	if err != nil {
		return err
	}
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fn(chunk)
		if chunk.Done {
			if !chunk.OK {
				return fmt.Errorf("job %d failed: %s", chunk.JobID, chunk.ErrorMessage)
			}
			return nil
		}
	}
}

// Cancel asks the server to cooperatively cancel jobID.
func (c *Client) Cancel(ctx context.Context, jobID uint64) error {
	resp, err := c.client.Cancel(ctx, &pb.CancelRequest{JobID: jobID})
	if err != nil {
		return err
	}
	if !resp.Accepted {
		return fmt.Errorf("cancel rejected: %s", resp.Message)
	}
	return nil
}

package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"firestige.xyz/gflow/internal/config"
	"firestige.xyz/gflow/internal/log"
	"firestige.xyz/gflow/internal/rpc"
	"firestige.xyz/gflow/internal/trace"
	"firestige.xyz/gflow/internal/worker"
	"firestige.xyz/gflow/pkg/pb"
)

var startServerCmd = &cobra.Command{
	Use:   "start-server",
	Short: "Bind a unix socket and serve job submissions",
	Long:  "start-server loads a server config and blocks, admitting submit-job/cancel RPCs until signalled.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStartServer(cmd, configFile, socketPath)
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
}

func runStartServer(cmd *cobra.Command, cfgPath, sockOverride string) error {
	cfg, err := config.LoadServerConfig(cfgPath)
	if err != nil {
		return configError(fmt.Errorf("loading server config: %w", err))
	}
	if err := log.Init(cfg.Log); err != nil {
		return configError(fmt.Errorf("initializing logger: %w", err))
	}

	sock := cfg.Control.Socket
	if sockOverride != "" {
		sock = sockOverride
	}
	_ = os.Remove(sock)

	lis, err := net.Listen("unix", sock)
	if err != nil {
		return connectionError(fmt.Errorf("binding socket %s: %w", sock, err))
	}

	watcher, err := config.WatchServerConfig(cfgPath, func(reloaded *config.ServerConfig, err error) {
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "config reload failed: %v\n", err)
			return
		}
		cfg = reloaded
		fmt.Fprintln(cmd.OutOrStdout(), "config reloaded")
	})
	if err == nil {
		defer watcher.Close()
	}

	tracer := trace.NewManager("gflow", sock, trace.LogSink{})
	runner := worker.NewLocalRunner(worker.NewRegistry()).WithTracer(tracer)

	grpcServer := grpc.NewServer()
	pb.RegisterJobServiceServer(grpcServer, rpc.NewServer(runner))

	errCh := make(chan error, 1)
	go func() { errCh <- grpcServer.Serve(lis) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintf(cmd.OutOrStdout(), "gflow server listening on %s\n", sock)

	select {
	case err := <-errCh:
		if err != nil {
			return connectionError(fmt.Errorf("server stopped: %w", err))
		}
		return nil
	case <-sigCh:
		grpcServer.GracefulStop()
		return nil
	}
}

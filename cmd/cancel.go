package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/gflow/internal/rpc"
)

var cancelJobID uint64

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cooperatively cancel a running job",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := rpc.NewClient(socketPath)
		if err != nil {
			return connectionError(err)
		}
		defer client.Close()
		return runCancel(cmd, client, cancelJobID)
	},
}

func init() {
	cancelCmd.Flags().Uint64Var(&cancelJobID, "job-id", 0, "job id to cancel")
	_ = cancelCmd.MarkFlagRequired("job-id")
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, client ClientInterface, jobID uint64) error {
	if err := client.Cancel(cmd.Context(), jobID); err != nil {
		return jobError(fmt.Errorf("cancel job %d: %w", jobID, err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ cancel accepted for job %d\n", jobID)
	return nil
}

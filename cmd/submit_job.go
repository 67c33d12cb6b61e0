package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/gflow/internal/config"
	"firestige.xyz/gflow/internal/plan"
	"firestige.xyz/gflow/internal/rpc"
	"firestige.xyz/gflow/pkg/pb"
)

var (
	submitJobFile    string
	submitPlanFile   string
	submitSourceFile string
)

var submitJobCmd = &cobra.Command{
	Use:   "submit-job",
	Short: "Submit a plan and stream its results",
	Long:  "submit-job reads a job submission TOML and a plan file, validates the plan locally, then streams results until the job finishes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := rpc.NewClient(socketPath)
		if err != nil {
			return connectionError(err)
		}
		defer client.Close()
		return runSubmitJob(cmd.Context(), client, cmd.OutOrStdout(), submitJobFile, submitPlanFile, submitSourceFile)
	},
}

func init() {
	submitJobCmd.Flags().StringVar(&submitJobFile, "job", "", "job submission TOML file")
	submitJobCmd.Flags().StringVar(&submitPlanFile, "plan", "", "plan wire file (gob-encoded pb.Plan)")
	submitJobCmd.Flags().StringVar(&submitSourceFile, "source", "", "source record file, newline-delimited")
	_ = submitJobCmd.MarkFlagRequired("job")
	_ = submitJobCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(submitJobCmd)
}

func runSubmitJob(ctx context.Context, client ClientInterface, out io.Writer, jobPath, planPath, sourcePath string) error {
	sub, err := config.LoadJobSubmission(jobPath)
	if err != nil {
		return configError(err)
	}

	if err := plan.ValidateBatchSize(sub.BatchSize); err != nil {
		return jobError(fmt.Errorf("job submission rejected: %w", err))
	}

	planPB, err := loadWirePlan(planPath)
	if err != nil {
		return configError(err)
	}
	if _, err := plan.Build(planPB); err != nil {
		return jobError(fmt.Errorf("plan rejected: %w", err))
	}

	var source []byte
	if sourcePath != "" {
		source, err = os.ReadFile(sourcePath)
		if err != nil {
			return configError(fmt.Errorf("reading source file: %w", err))
		}
	}

	conf := sub.ToJobConf(planPB, source, nil)

	var jobErr error
	err = client.SubmitJob(ctx, conf, func(chunk *pb.JobResultChunk) {
		if chunk.Done {
			if !chunk.OK {
				jobErr = fmt.Errorf("job %d failed: %s", chunk.JobID, chunk.ErrorMessage)
			}
			return
		}
		fmt.Fprintln(out, string(chunk.PayloadBytes))
	})
	if err != nil {
		return jobError(err)
	}
	if jobErr != nil {
		return jobError(jobErr)
	}
	fmt.Fprintln(out, "✓ job completed")
	return nil
}

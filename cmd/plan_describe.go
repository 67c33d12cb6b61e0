package cmd

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/gflow/internal/plan"
	"firestige.xyz/gflow/pkg/pb"
)

var describePlanFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect plan wire files",
}

var planDescribeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Render a plan as human-readable YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlanDescribe(cmd.OutOrStdout(), describePlanFile)
	},
}

func init() {
	planDescribeCmd.Flags().StringVar(&describePlanFile, "plan", "", "plan wire file (gob-encoded pb.Plan)")
	_ = planDescribeCmd.MarkFlagRequired("plan")
	planCmd.AddCommand(planDescribeCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlanDescribe(out io.Writer, path string) error {
	wire, err := loadWirePlan(path)
	if err != nil {
		return configError(err)
	}
	built, err := plan.Build(wire)
	if err != nil {
		return jobError(fmt.Errorf("plan rejected: %w", err))
	}
	rendered, err := plan.Describe(built)
	if err != nil {
		return jobError(err)
	}
	fmt.Fprint(out, rendered)
	return nil
}

// loadWirePlan decodes a gob-encoded pb.Plan from path — the same
// substitute wire encoding pkg/pb's gobCodec registers for gRPC, used
// here so a plan built by a future compiler front end round-trips
// through a file the CLI can load without a real protobuf descriptor.
func loadWirePlan(path string) (*pb.Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening plan file: %w", err)
	}
	defer f.Close()
	var wire pb.Plan
	if err := gob.NewDecoder(f).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding plan file: %w", err)
	}
	return &wire, nil
}

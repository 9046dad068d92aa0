package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show which targets would regenerate, without running anything",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().String("strategy", "", "execution strategy (isolated or global)")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	applyFlagOverrides(cmd)
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	parts, err := s.engine.Plan(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(parts) == 0 {
		fmt.Fprintln(out, "all targets up to date")
		return nil
	}
	for i, p := range parts {
		fmt.Fprintf(out, "partition %d (%s, %s): %s\n",
			i+1, p.Generator, p.Strategy, strings.Join(p.Nodes, ", "))
	}
	return nil
}

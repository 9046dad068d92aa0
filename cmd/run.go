package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one codegen round over the build graph",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().String("strategy", "", "execution strategy (isolated or global)")
	runCmd.Flags().Int("workers", 0, "max concurrent generator invocations")

	rootCmd.AddCommand(runCmd)
}

// applyFlagOverrides copies explicitly set flags into viper so they win over
// config file and environment values.
func applyFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("strategy") {
		v, _ := cmd.Flags().GetString("strategy")
		viper.Set("strategy", v)
	}
	if cmd.Flags().Changed("workers") {
		v, _ := cmd.Flags().GetInt("workers")
		viper.Set("workers", v)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	applyFlagOverrides(cmd)
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := s.engine.Run(ctx)
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(),
			"round %d: %d targets, %d regenerated, %d synthetic, %d invalidated downstream\n",
			report.Round, len(report.Relevant), len(report.Regenerated),
			len(report.Synthetics), report.Dirtied)
		for id, ferr := range report.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", id, ferr)
		}
	}
	return err
}

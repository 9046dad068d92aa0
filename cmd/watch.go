package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/codegen"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch source directories and regenerate on change",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("strategy", "", "execution strategy (isolated or global)")
	watchCmd.Flags().Int("workers", 0, "max concurrent generator invocations")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	applyFlagOverrides(cmd)
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	out := cmd.OutOrStdout()

	// Initial round before waiting on changes.
	if report, err := s.engine.Run(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "round %d failed: %v\n", report.Round, err)
	} else {
		fmt.Fprintf(out, "round %d: %d regenerated\n", report.Round, len(report.Regenerated))
	}

	w, err := codegen.NewWatcher(s.sourceDirs())
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(out, "watching for changes, ^C to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case file, ok := <-w.Changes:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(s.buildRoot, file)
			if err != nil {
				rel = file
			}
			if marked := s.engine.Invalidate(rel); marked == 0 {
				continue
			}
			fmt.Fprintf(out, "changed: %s\n", rel)
			if report, err := s.engine.Run(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "round %d failed: %v\n", report.Round, err)
			} else {
				fmt.Fprintf(out, "round %d: %d regenerated\n", report.Round, len(report.Regenerated))
			}
		}
	}
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the build graph in dependency order",
	RunE:  runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	order, err := s.graph.TopologicalSort()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range order {
		n := s.graph.Node(id)
		line := id
		if s.graph.IsRoot(id) {
			line += " (root)"
		}
		if n != nil && n.Synthetic {
			line += " (synthetic)"
		}
		if deps := s.graph.Dependencies(id); len(deps) > 0 {
			line += " -> " + strings.Join(deps, ", ")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"questionnaire-service/internal/catalog"
	"questionnaire-service/internal/flow"

	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a question graph for dangling edges and cycles",
		Long: `Load a YAML question graph and run the construction checks: unique ids,
known types and registered functions, no dangling branch targets and no
cycle over any possible branch. Without a file the built-in graph is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, source, err := loadGraph(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d questions, %d rules, start %s)\n",
				source, g.Len(), len(g.Rules()), g.Start())
			return nil
		},
	}
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph [file]",
		Short: "Print the questions and their possible next questions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := loadGraph(args)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSECTION\tTYPE\tFLAGS\tNEXT")
			for _, q := range g.Questions() {
				edges, err := g.Edges(q.ID)
				if err != nil {
					return err
				}
				next := strings.Join(edges, ",")
				if next == "" {
					next = "(end)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", q.ID, q.Section, q.Type, flags(q), next)
			}
			return w.Flush()
		},
	}
}

func loadGraph(args []string) (*flow.Graph, string, error) {
	if len(args) == 0 {
		g, err := catalog.Default()
		return g, "built-in questionnaire", err
	}
	g, err := catalog.Load(args[0])
	return g, args[0], err
}

func flags(q flow.Question) string {
	var out []string
	if q.Checkpoint {
		out = append(out, "checkpoint")
	}
	if q.SkipIf != "" {
		out = append(out, "skip_if="+q.SkipIf)
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, " ")
}

package docgraph

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/docgraph/pkg/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Build and query the knowledge graph of a batch",
}

var graphExportCmd = &cobra.Command{
	Use:   "export [batch-file]",
	Short: "Export the knowledge graph as JSON, YAML or Parquet",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGraphExport,
}

var graphRelatedCmd = &cobra.Command{
	Use:   "related [batch-file]",
	Short: "Find content related to a query, or the path between two nodes",
	Long: `Find content related to a query by traversing the knowledge graph from the
nodes whose entities or topics the query mentions.

With --from and --to, print the shortest path between two nodes instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGraphRelated,
}

var graphStatsCmd = &cobra.Command{
	Use:   "stats [batch-file]",
	Short: "Print knowledge graph statistics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGraphStats,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphExportCmd, graphRelatedCmd, graphStatsCmd)

	graphExportCmd.Flags().StringP("output", "o", "", "write output to this file instead of stdout")
	graphExportCmd.Flags().StringP("format", "f", "json", "export format (json, yaml, parquet)")

	addOutputFlags(graphRelatedCmd)
	graphRelatedCmd.Flags().StringP("query", "q", "", "query whose entities and topics seed the traversal")
	graphRelatedCmd.Flags().String("strategy", "", "traversal strategy (breadth_first, weighted, semantic, centrality)")
	graphRelatedCmd.Flags().Int("max-hops", graph.UseDefault, "maximum traversal depth (0 returns only the seeds, negative uses the configured default)")
	graphRelatedCmd.Flags().Int("max-results", 0, "maximum number of results (0 uses the configured default)")
	graphRelatedCmd.Flags().Float64("min-weight", graph.UseDefault, "ignore edges lighter than this (negative uses the configured default)")
	graphRelatedCmd.Flags().String("combination", "", "path weight combination (product, minimum)")
	graphRelatedCmd.Flags().String("from", "", "node id to start a shortest path from")
	graphRelatedCmd.Flags().String("to", "", "node id to end a shortest path at")

	addOutputFlags(graphStatsCmd)
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if _, err := graph.ParseExportFormat(format); err != nil {
		return err
	}

	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	data, err := client.ExportGraph(cmd.Context(), batch.Results, format)
	if err != nil {
		return err
	}
	out, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(data)
	return err
}

func runGraphRelated(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	if (from == "") != (to == "") {
		return fmt.Errorf("--from and --to must be given together")
	}
	if from == "" && strings.TrimSpace(query) == "" {
		return fmt.Errorf("either --query or --from/--to is required")
	}

	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	if from != "" {
		kg, err := client.BuildGraph(cmd.Context(), batch.Results)
		if err != nil {
			return err
		}
		path := kg.Graph().ShortestPath(from, to)
		if path == nil {
			return fmt.Errorf("no path between %s and %s", from, to)
		}
		return writeOutput(cmd, map[string]any{"from": from, "to": to, "path": path, "hops": len(path) - 1})
	}

	strategy, _ := cmd.Flags().GetString("strategy")
	maxHops, _ := cmd.Flags().GetInt("max-hops")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	minWeight, _ := cmd.Flags().GetFloat64("min-weight")
	combination, _ := cmd.Flags().GetString("combination")

	results, err := client.Related(cmd.Context(), batch.Results, query, graph.TraversalOptions{
		Strategy:    graph.Strategy(strings.ToLower(strategy)),
		MaxHops:     maxHops,
		MaxResults:  maxResults,
		MinWeight:   minWeight,
		Combination: graph.WeightCombination(strings.ToLower(combination)),
	})
	if err != nil {
		return err
	}
	return writeOutput(cmd, results)
}

func runGraphStats(cmd *cobra.Command, args []string) error {
	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.GraphStatistics(cmd.Context(), batch.Results)
	if err != nil {
		return err
	}
	return writeOutput(cmd, stats)
}

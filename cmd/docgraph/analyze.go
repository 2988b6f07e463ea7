package docgraph

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [batch-file]",
	Short: "Run the full cross-document analysis over a batch",
	Long: `Run similarity, clustering, citation, complementary content and conflict
analysis over a batch and print the combined report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var relationshipsCmd = &cobra.Command{
	Use:   "relationships [batch-file]",
	Short: "List documents related to one document of a batch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRelationships,
}

var clustersCmd = &cobra.Command{
	Use:   "clusters [batch-file]",
	Short: "Cluster the documents of a batch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClusters,
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts [batch-file]",
	Short: "Detect factual conflicts between the documents of a batch",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConflicts,
}

func init() {
	rootCmd.AddCommand(analyzeCmd, relationshipsCmd, clustersCmd, conflictsCmd)

	for _, cmd := range []*cobra.Command{analyzeCmd, relationshipsCmd, clustersCmd, conflictsCmd} {
		addOutputFlags(cmd)
	}

	relationshipsCmd.Flags().String("target", "", "id of the document to find relationships for")
	relationshipsCmd.Flags().StringSlice("kinds", nil, "relationship kinds (similar, complementary, conflicting, cites, cited_by, same_cluster)")
	_ = relationshipsCmd.MarkFlagRequired("target")

	clustersCmd.Flags().String("strategy", "", "clustering strategy (entity_based, topic_based, project_based, mixed_features, community)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	report, err := client.Analyze(cmd.Context(), batch.Results)
	if err != nil {
		return err
	}
	return writeOutput(cmd, report)
}

func runRelationships(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("target")
	kinds, _ := cmd.Flags().GetStringSlice("kinds")

	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	related, err := client.Relationships(cmd.Context(), target, batch.Results, kinds)
	if err != nil {
		return err
	}
	return writeOutput(cmd, map[string]any{"target_id": target, "relationships": related})
}

func runClusters(cmd *cobra.Command, args []string) error {
	strategy, _ := cmd.Flags().GetString("strategy")

	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	clusters, err := client.Clusters(cmd.Context(), batch.Results, strategy)
	if err != nil {
		return err
	}
	return writeOutput(cmd, clusters)
}

func runConflicts(cmd *cobra.Command, args []string) error {
	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	analysis, err := client.Conflicts(cmd.Context(), batch.Results)
	if err != nil {
		return err
	}
	return writeOutput(cmd, map[string]any{
		"summary":           analysis.GetConflictSummary(),
		"conflicting_pairs": analysis.ConflictingPairs,
	})
}

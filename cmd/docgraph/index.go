package docgraph

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [batch-file]",
	Short: "Embed a batch and write the vectors to the vector store",
	Long: `Embed every result of a batch with the configured embedding provider and
store the vectors in the configured vector store, keyed by result id. Conflict
detection later reads these vectors to decide which document pairs to compare.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	batch, err := readBatch(args)
	if err != nil {
		return err
	}
	client, cfg, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := client.Index(cmd.Context(), batch.Results)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d embeddings into %s\n", n, cfg.VectorStore.Backend)
	return nil
}

package docgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/loader"
)

// addOutputFlags registers --output and --format on cmd.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "write output to this file instead of stdout")
	cmd.Flags().StringP("format", "f", "json", "output format (json, yaml)")
}

// newClient loads configuration and wires a client from it.
func newClient(ctx context.Context) (*docgraph.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	client, err := docgraph.NewClientFromConfig(ctx, cfg, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize docgraph: %w", err)
	}
	return client, cfg, nil
}

// readBatch loads the batch named by the first positional argument.
func readBatch(args []string) (*loader.Batch, error) {
	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	batch, err := loader.ReadFile(path, slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded batch", "path", path, "results", len(batch.Results), "dropped", batch.Dropped, "repaired", batch.Repaired)
	return batch, nil
}

// openOutput returns the --output file or stdout.
func openOutput(cmd *cobra.Command) (io.WriteCloser, error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// writeOutput encodes v as JSON or YAML according to --format.
func writeOutput(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("format")
	out, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer out.Close()

	switch strings.ToLower(format) {
	case "json", "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

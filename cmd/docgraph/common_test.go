package docgraph

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutputCommand(t *testing.T, format string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	require.NoError(t, cmd.Flags().Set("format", format))
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestWriteOutput(t *testing.T) {
	payload := map[string]any{"target_id": "a1", "relationships": map[string][]string{"similar": {"b1"}}}

	cmd, buf := newOutputCommand(t, "json")
	require.NoError(t, writeOutput(cmd, payload))
	assert.JSONEq(t, `{"target_id":"a1","relationships":{"similar":["b1"]}}`, buf.String())

	cmd, buf = newOutputCommand(t, "yaml")
	require.NoError(t, writeOutput(cmd, payload))
	assert.Contains(t, buf.String(), "target_id: a1")
	assert.Contains(t, buf.String(), "- b1")

	cmd, _ = newOutputCommand(t, "xml")
	assert.Error(t, writeOutput(cmd, payload))
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	cmd, buf := newOutputCommand(t, "json")
	require.NoError(t, cmd.Flags().Set("output", path))

	require.NoError(t, writeOutput(cmd, []string{"x"}))
	assert.Empty(t, buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["x"]`, string(data))
}

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","text":"OAuth tokens"},]`), 0o600))

	batch, err := readBatch([]string{path})
	require.NoError(t, err)
	assert.True(t, batch.Repaired)
	require.Len(t, batch.Results, 1)
}

func TestGraphRelatedRequiresQueryOrPath(t *testing.T) {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "related"}
		addOutputFlags(cmd)
		cmd.Flags().String("query", "", "")
		cmd.Flags().String("from", "", "")
		cmd.Flags().String("to", "", "")
		return cmd
	}

	cmd := newCmd()
	require.NoError(t, cmd.Flags().Set("from", "doc:a"))
	assert.ErrorContains(t, runGraphRelated(cmd, nil), "--from and --to")

	assert.ErrorContains(t, runGraphRelated(newCmd(), nil), "--query")
}

// Package loader decodes batches of search results at the input boundary.
//
// A batch is either a bare array of results or an object with a "results"
// field. JSON that fails to parse is passed through jsonrepair once before
// giving up, so truncated or hand-edited batches still load. Every decoded
// batch is normalised with types.NormalizeResults.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/docgraph/pkg/types"
)

// Format is an input encoding.
type Format string

const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	// ErrEmptyInput is returned when the input holds no data.
	ErrEmptyInput = errors.New("empty input")
	// ErrUnsupportedFormat is returned for encodings other than JSON and YAML.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// Batch is the decoded and normalised input.
type Batch struct {
	Query   string               `json:"query,omitempty" yaml:"query,omitempty"`
	Results []types.SearchResult `json:"results" yaml:"results"`
	// Dropped counts results removed as unusable during normalisation.
	Dropped int `json:"-" yaml:"-"`
	// Repaired is true when the JSON had to be repaired before decoding.
	Repaired bool `json:"-" yaml:"-"`
}

// ParseFormat maps a name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
}

// DecodeResults decodes data in the given format. FormatAuto treats input
// starting with '[' or '{' as JSON and anything else as YAML.
func DecodeResults(data []byte, format Format, logger *slog.Logger) (*Batch, error) {
	if logger == nil {
		logger = slog.Default()
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyInput
	}
	if format == FormatAuto {
		format = FormatYAML
		if trimmed[0] == '[' || trimmed[0] == '{' {
			format = FormatJSON
		}
	}

	var (
		batch *Batch
		err   error
	)
	switch format {
	case FormatJSON:
		batch, err = decodeJSON(trimmed, logger)
	case FormatYAML:
		batch, err = decodeYAML(trimmed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	batch.Results, batch.Dropped = types.NormalizeResults(batch.Results)
	if batch.Dropped > 0 {
		logger.Warn("Dropped unusable results", "dropped", batch.Dropped, "kept", len(batch.Results))
	}
	return batch, nil
}

// Read decodes everything from r.
func Read(r io.Reader, format Format, logger *slog.Logger) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return DecodeResults(data, format, logger)
}

// ReadFile decodes a file, choosing the format from its extension. A path
// of "-" reads standard input.
func ReadFile(path string, logger *slog.Logger) (*Batch, error) {
	if path == "-" {
		return Read(os.Stdin, FormatAuto, logger)
	}
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		format = FormatAuto
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeResults(data, format, logger)
}

func decodeJSON(data []byte, logger *slog.Logger) (*Batch, error) {
	batch, err := unmarshalJSON(data)
	if err == nil {
		return batch, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return nil, fmt.Errorf("failed to decode JSON input: %w", err)
	}
	batch, err2 := unmarshalJSON([]byte(repaired))
	if err2 != nil {
		return nil, fmt.Errorf("failed to decode JSON input: %w", err)
	}
	logger.Warn("Repaired malformed JSON input", "error", err)
	batch.Repaired = true
	return batch, nil
}

func unmarshalJSON(data []byte) (*Batch, error) {
	if len(data) > 0 && data[0] == '[' {
		var results []types.SearchResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, err
		}
		return &Batch{Results: results}, nil
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}

func decodeYAML(data []byte) (*Batch, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to decode YAML input: %w", err)
	}
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind == yaml.SequenceNode {
		var results []types.SearchResult
		if err := root.Decode(&results); err != nil {
			return nil, fmt.Errorf("failed to decode YAML input: %w", err)
		}
		return &Batch{Results: results}, nil
	}
	var batch Batch
	if err := root.Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode YAML input: %w", err)
	}
	return &batch, nil
}
